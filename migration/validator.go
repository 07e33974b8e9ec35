package migration

import (
	"errors"
	"fmt"
)

// MigrationValidator validates migrations against history and dependencies.
type MigrationValidator struct {
	history *MigrationHistory
}

// NewMigrationValidator creates a new migration validator.
func NewMigrationValidator(history *MigrationHistory) *MigrationValidator {
	return &MigrationValidator{
		history: history,
	}
}

// Validate performs comprehensive validation on a set of migrations.
func (v *MigrationValidator) Validate(migrations []*Migration) *ValidationResult {
	result := &ValidationResult{
		Valid:             true,
		Conflicts:         make([]MigrationConflict, 0),
		PendingMigrations: make([]string, 0),
		AppliedMigrations: v.history.GetAppliedMigrations(),
	}

	migrationMap := make(map[string]*Migration)
	for _, m := range migrations {
		migrationMap[m.ID] = m
	}

	for _, migration := range migrations {
		if v.history.IsApplied(migration.ID) {
			// Applied migrations must not have been edited since
			if err := v.history.ValidateChecksum(migration); err != nil {
				var checksumErr *MigrationError
				if errors.As(err, &checksumErr) && checksumErr.Code == "E_CHECKSUM_MISMATCH" {
					result.Valid = false
					result.Conflicts = append(result.Conflicts, MigrationConflict{
						Type:        ChecksumMismatch,
						MigrationID: migration.ID,
						Message:     checksumErr.Message,
						Expected:    checksumErr.Details["expected"].(string),
						Actual:      checksumErr.Details["actual"].(string),
					})
				}
			}
		} else {
			result.PendingMigrations = append(result.PendingMigrations, migration.ID)

			conflicts := v.validateDependencies(migration, migrationMap)
			if len(conflicts) > 0 {
				result.Valid = false
				result.Conflicts = append(result.Conflicts, conflicts...)
			}
		}
	}

	orderConflicts := v.validateOrdering(migrations)
	if len(orderConflicts) > 0 {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, orderConflicts...)
	}

	return result
}

// validateDependencies checks if all dependencies for a migration are satisfied.
func (v *MigrationValidator) validateDependencies(migration *Migration, allMigrations map[string]*Migration) []MigrationConflict {
	conflicts := make([]MigrationConflict, 0)

	for _, depID := range migration.Dependencies {
		if _, exists := allMigrations[depID]; !exists {
			conflicts = append(conflicts, MigrationConflict{
				Type:        DependencyConflict,
				MigrationID: migration.ID,
				Message:     fmt.Sprintf("dependency %q does not exist", depID),
				Expected:    depID,
				Actual:      "not_found",
			})
			continue
		}

		// A dependency earlier in the same pending set is fine; it will
		// have been applied by the time this migration runs.
		if !v.history.IsApplied(depID) && depID >= migration.ID {
			conflicts = append(conflicts, MigrationConflict{
				Type:        DependencyConflict,
				MigrationID: migration.ID,
				Message:     fmt.Sprintf("dependency %q has not been applied", depID),
				Expected:    "applied",
				Actual:      "pending",
			})
		}
	}

	return conflicts
}

// validateOrdering ensures no pending migration sorts before the newest
// applied one. IDs are compared lexicographically, which is why timestamped
// IDs are the convention.
func (v *MigrationValidator) validateOrdering(migrations []*Migration) []MigrationConflict {
	conflicts := make([]MigrationConflict, 0)
	appliedMigrations := v.history.GetAppliedMigrations()

	if len(appliedMigrations) == 0 {
		return conflicts
	}

	lastApplied := appliedMigrations[len(appliedMigrations)-1]

	for _, migration := range migrations {
		if !v.history.IsApplied(migration.ID) {
			if migration.ID < lastApplied {
				conflicts = append(conflicts, MigrationConflict{
					Type:        OrderConflict,
					MigrationID: migration.ID,
					Message:     fmt.Sprintf("migration ID %q is out of order (last applied: %q)", migration.ID, lastApplied),
					Expected:    fmt.Sprintf("> %s", lastApplied),
					Actual:      migration.ID,
				})
			}
		}
	}

	return conflicts
}

// CanRollback checks if a migration can be safely rolled back.
func (v *MigrationValidator) CanRollback(migrationID string, allMigrations []*Migration) error {
	if !v.history.IsApplied(migrationID) {
		return ErrMigrationNotFound(migrationID)
	}

	// Applied migrations that depend on this one block the rollback
	dependents := make([]string, 0)
	for _, migration := range allMigrations {
		if v.history.IsApplied(migration.ID) {
			for _, depID := range migration.Dependencies {
				if depID == migrationID {
					dependents = append(dependents, migration.ID)
					break
				}
			}
		}
	}

	if len(dependents) > 0 {
		return &MigrationError{
			Code:    "E_CANNOT_ROLLBACK",
			Type:    "MIGRATION_ERROR",
			Message: fmt.Sprintf("migration %q cannot be rolled back; other migrations depend on it", migrationID),
			Details: map[string]any{
				"migrationId": migrationID,
				"dependents":  dependents,
			},
		}
	}

	return nil
}
