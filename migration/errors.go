package migration

import (
	"fmt"
)

// MigrationError is the structured error type for migration operations.
type MigrationError struct {
	Code    string         `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// ErrMigrationNotFound creates an error for when a migration doesn't exist.
func ErrMigrationNotFound(migrationID string) error {
	return &MigrationError{
		Code:    "E_MIGRATION_NOT_FOUND",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration %q not found", migrationID),
		Details: map[string]any{
			"migrationId": migrationID,
		},
	}
}

// ErrMigrationFailed creates an error for when a migration execution fails.
func ErrMigrationFailed(migrationID string, cause error) error {
	return &MigrationError{
		Code:    "E_MIGRATION_FAILED",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration %q failed to execute", migrationID),
		Details: map[string]any{
			"migrationId": migrationID,
		},
		Cause: cause,
	}
}

// ErrChecksumMismatch creates an error for when migration checksums don't match.
func ErrChecksumMismatch(migrationID, expected, actual string) error {
	return &MigrationError{
		Code:    "E_CHECKSUM_MISMATCH",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration %q has been modified (checksum mismatch)", migrationID),
		Details: map[string]any{
			"migrationId": migrationID,
			"expected":    expected,
			"actual":      actual,
		},
	}
}

// ErrDependencyNotMet creates an error for when migration dependencies aren't satisfied.
func ErrDependencyNotMet(migrationID string, missingDeps []string) error {
	return &MigrationError{
		Code:    "E_DEPENDENCY_NOT_MET",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration %q has unmet dependencies", migrationID),
		Details: map[string]any{
			"migrationId":         migrationID,
			"missingDependencies": missingDeps,
		},
	}
}

// ErrInvalidMigrationFile creates an error for malformed migration files.
func ErrInvalidMigrationFile(filename string, cause error) error {
	return &MigrationError{
		Code:    "E_INVALID_MIGRATION_FILE",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration file %q is invalid", filename),
		Details: map[string]any{
			"filename": filename,
		},
		Cause: cause,
	}
}

// ErrRollbackNotSupported creates an error for migrations that cannot be rolled back.
func ErrRollbackNotSupported(migrationID string) error {
	return &MigrationError{
		Code:    "E_ROLLBACK_NOT_SUPPORTED",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration %q does not support rollback", migrationID),
		Details: map[string]any{
			"migrationId": migrationID,
		},
	}
}

// ErrMigrationConflict creates an error for when validation detects conflicts.
func ErrMigrationConflict(conflicts []MigrationConflict) error {
	conflictDetails := make([]map[string]any, len(conflicts))
	for i, c := range conflicts {
		conflictDetails[i] = map[string]any{
			"type":        c.Type,
			"migrationId": c.MigrationID,
			"message":     c.Message,
			"expected":    c.Expected,
			"actual":      c.Actual,
		}
	}

	return &MigrationError{
		Code:    "E_MIGRATION_CONFLICT",
		Type:    "MIGRATION_ERROR",
		Message: fmt.Sprintf("found %d migration conflict(s)", len(conflicts)),
		Details: map[string]any{
			"conflicts": conflictDetails,
			"count":     len(conflicts),
		},
	}
}

// ErrHistoryUnavailable creates an error for when the history table cannot be
// read or written.
func ErrHistoryUnavailable(cause error) error {
	return &MigrationError{
		Code:    "E_HISTORY_UNAVAILABLE",
		Type:    "MIGRATION_ERROR",
		Message: "migration history table is unavailable",
		Cause:   cause,
	}
}

// ErrLockHeld creates an error for when the advisory lock is held elsewhere.
func ErrLockHeld(holder, hostname string, pid int64, heldFor string) error {
	return &MigrationError{
		Code: "E_LOCK_HELD",
		Type: "MIGRATION_ERROR",
		Message: fmt.Sprintf("migration lock is held by %s@%s (PID %d) since %s ago; "+
			"wait for the migration to complete or force-unlock if the process is stuck",
			holder, hostname, pid, heldFor),
		Details: map[string]any{
			"holder":   holder,
			"hostname": hostname,
			"pid":      pid,
			"heldFor":  heldFor,
		},
	}
}
