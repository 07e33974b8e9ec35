package migration

import (
	"errors"
	"testing"
)

func TestMigrationValidator_Validate(t *testing.T) {
	history := NewMigrationHistory()
	validator := NewMigrationValidator(history)

	migrations := []*Migration{
		{
			ID:   "0001_create_users",
			Name: "Create users table",
			Up:   []string{`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`},
			Down: []string{`DROP TABLE users;`},
		},
	}

	result := validator.Validate(migrations)

	if result == nil {
		t.Fatal("expected validation result, got nil")
	}

	if len(result.PendingMigrations) == 0 {
		t.Error("expected pending migrations")
	}
}

func TestMigrationValidator_DetectChecksumMismatch(t *testing.T) {
	history := NewMigrationHistory()

	migration := &Migration{
		ID:   "0001_create_users",
		Name: "Create users table",
		Up:   []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
		Down: []string{`DROP TABLE users;`},
	}

	checksum := CalculateChecksum(migration)
	history.RecordMigration("0001_create_users", Applied, 100, checksum, nil)

	// Edit the migration after it was applied
	migration.Up[0] = `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`

	validator := NewMigrationValidator(history)
	result := validator.Validate([]*Migration{migration})

	if len(result.Conflicts) == 0 {
		t.Error("expected conflicts for checksum mismatch")
	}

	foundMismatch := false
	for _, conflict := range result.Conflicts {
		if conflict.Type == ChecksumMismatch {
			foundMismatch = true
			break
		}
	}

	if !foundMismatch {
		t.Error("expected ChecksumMismatch conflict type")
	}
}

func TestMigrationValidator_ValidDependencies(t *testing.T) {
	history := NewMigrationHistory()

	migrations := []*Migration{
		{
			ID:           "0001_create_users",
			Name:         "Create users table",
			Up:           []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
			Down:         []string{`DROP TABLE users;`},
			Dependencies: []string{},
		},
		{
			ID:           "0002_create_posts",
			Name:         "Create posts table",
			Up:           []string{`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER)`},
			Down:         []string{`DROP TABLE posts;`},
			Dependencies: []string{"0001_create_users"},
		},
	}

	checksum := CalculateChecksum(migrations[0])
	history.RecordMigration("0001_create_users", Applied, 100, checksum, nil)

	validator := NewMigrationValidator(history)
	result := validator.Validate(migrations)

	if !result.Valid {
		t.Errorf("expected valid result, got conflicts: %v", result.Conflicts)
	}
}

func TestMigrationValidator_PendingDependency(t *testing.T) {
	history := NewMigrationHistory()
	validator := NewMigrationValidator(history)

	// Both pending, dependency sorts first: applied earlier in the same run
	migrations := []*Migration{
		{
			ID:           "0001_create_users",
			Name:         "Create users table",
			Up:           []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
			Dependencies: []string{},
		},
		{
			ID:           "0002_create_posts",
			Name:         "Create posts table",
			Up:           []string{`CREATE TABLE posts (id INTEGER PRIMARY KEY)`},
			Dependencies: []string{"0001_create_users"},
		},
	}

	result := validator.Validate(migrations)

	if !result.Valid {
		t.Errorf("expected pending dependency earlier in the set to be valid, got conflicts: %v", result.Conflicts)
	}
}

func TestMigrationValidator_DependencyAfterDependent(t *testing.T) {
	history := NewMigrationHistory()
	validator := NewMigrationValidator(history)

	// The dependency sorts after its dependent, so it cannot have run first
	migrations := []*Migration{
		{
			ID:           "0001_create_posts",
			Name:         "Create posts table",
			Up:           []string{`CREATE TABLE posts (id INTEGER PRIMARY KEY)`},
			Dependencies: []string{"0002_create_users"},
		},
		{
			ID:           "0002_create_users",
			Name:         "Create users table",
			Up:           []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
			Dependencies: []string{},
		},
	}

	result := validator.Validate(migrations)

	if result.Valid {
		t.Error("expected invalid result for dependency that sorts after its dependent")
	}
}

func TestMigrationValidator_MissingDependency(t *testing.T) {
	history := NewMigrationHistory()
	validator := NewMigrationValidator(history)

	migrations := []*Migration{
		{
			ID:           "0002_create_posts",
			Name:         "Create posts table",
			Up:           []string{`CREATE TABLE posts (id INTEGER PRIMARY KEY)`},
			Down:         []string{`DROP TABLE posts;`},
			Dependencies: []string{"0001_missing"},
		},
	}

	result := validator.Validate(migrations)

	if result.Valid {
		t.Error("expected invalid result for missing dependency")
	}

	foundDepConflict := false
	for _, conflict := range result.Conflicts {
		if conflict.Type == DependencyConflict {
			foundDepConflict = true
			break
		}
	}

	if !foundDepConflict {
		t.Error("expected DependencyConflict")
	}
}

func TestMigrationValidator_OrderConflict(t *testing.T) {
	history := NewMigrationHistory()
	history.RecordMigration("0002_create_posts", Applied, 100, "", nil)

	validator := NewMigrationValidator(history)

	// A new migration sorting before the newest applied one is out of order
	migrations := []*Migration{
		{
			ID:   "0001_create_users",
			Name: "Create users table",
			Up:   []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
		},
	}

	result := validator.Validate(migrations)

	if result.Valid {
		t.Error("expected invalid result for out-of-order migration")
	}

	foundOrderConflict := false
	for _, conflict := range result.Conflicts {
		if conflict.Type == OrderConflict {
			foundOrderConflict = true
			break
		}
	}

	if !foundOrderConflict {
		t.Error("expected OrderConflict")
	}
}

func TestCanRollback_BlockedByDependents(t *testing.T) {
	history := NewMigrationHistory()

	migrations := []*Migration{
		{ID: "0001_create_users", Up: []string{`CREATE TABLE users (id INTEGER)`}},
		{ID: "0002_create_posts", Up: []string{`CREATE TABLE posts (id INTEGER)`}, Dependencies: []string{"0001_create_users"}},
	}

	history.RecordMigration("0001_create_users", Applied, 100, "", nil)
	history.RecordMigration("0002_create_posts", Applied, 100, "", nil)

	validator := NewMigrationValidator(history)

	err := validator.CanRollback("0001_create_users", migrations)
	if err == nil {
		t.Fatal("expected rollback to be blocked by dependents, got nil")
	}

	var migErr *MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected MigrationError, got %T", err)
	}
	if migErr.Code != "E_CANNOT_ROLLBACK" {
		t.Errorf("expected code E_CANNOT_ROLLBACK, got %s", migErr.Code)
	}
}

func TestCanRollback_NotApplied(t *testing.T) {
	history := NewMigrationHistory()
	validator := NewMigrationValidator(history)

	err := validator.CanRollback("0001_create_users", nil)
	if err == nil {
		t.Error("expected error when rolling back a migration that was never applied")
	}
}
