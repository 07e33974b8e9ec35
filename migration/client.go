// Package migration applies versioned SQL migrations through the pipeline
// client. Each migration's statements run atomically in a single
// transactional exchange, history persists in the database itself, and an
// advisory lease keeps concurrent runners from interleaving.
package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/mapper"
	"github.com/lukeed/hrana/protocol"
)

// Executor is the client surface migrations run through.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (*protocol.StmtResult, error)
	Query(ctx context.Context, sql string, args ...any) ([]mapper.Row, error)
	Transaction(ctx context.Context, mode client.TxMode, stmts []protocol.Stmt) (*client.TransactionResult, error)
}

var _ Executor = (*client.Client)(nil)

// Client orchestrates migration planning, execution and rollback.
type Client struct {
	exec      Executor
	history   *MigrationHistory
	validator *MigrationValidator
	generator *RollbackGenerator
	lock      *MigrationLock
	logger    client.Logger
}

// NewClient creates a migration client over an executor.
func NewClient(exec Executor) *Client {
	history := NewMigrationHistory()
	return &Client{
		exec:      exec,
		history:   history,
		validator: NewMigrationValidator(history),
		generator: NewRollbackGenerator(),
		logger:    client.NewNoopLogger(),
	}
}

// SetLogger routes the runner's progress reporting through the given logger.
func (c *Client) SetLogger(logger client.Logger) {
	if logger == nil {
		logger = client.NewNoopLogger()
	}
	c.logger = logger
	if c.lock != nil {
		c.lock.logger = logger
	}
}

// LoadHistory hydrates the in-memory history from the history table,
// creating the table on first use. Call this before planning.
func (c *Client) LoadHistory(ctx context.Context) error {
	return c.history.Load(ctx, c.exec)
}

// Plan validates the given migrations and returns the pending ones in order.
func (c *Client) Plan(migrations []*Migration) (*MigrationPlan, error) {
	validation := c.validator.Validate(migrations)
	if !validation.Valid {
		return nil, ErrMigrationConflict(validation.Conflicts)
	}

	pending := make([]*Migration, 0)
	for _, migration := range migrations {
		if !c.history.IsApplied(migration.ID) {
			pending = append(pending, migration)
		}
	}

	return &MigrationPlan{
		Migrations: pending,
		Direction:  Up,
		TotalCount: len(pending),
	}, nil
}

// Apply executes a migration plan. Each migration runs in its own
// transaction; a failure stops the run and keeps earlier migrations applied.
func (c *Client) Apply(ctx context.Context, plan *MigrationPlan) error {
	if plan.Direction != Up {
		return fmt.Errorf("only %q plans can be applied", Up)
	}

	// In dry-run mode, skip execution but preserve validation
	if plan.DryRun {
		return nil
	}

	if c.lock != nil {
		if err := c.lock.Acquire(ctx); err != nil {
			return err
		}
		defer func() {
			if err := c.lock.Release(ctx); err != nil {
				c.logger.Warn("failed to release migration lock", client.Error("error", err))
			}
		}()
	}

	for _, migration := range plan.Migrations {
		if err := c.applyMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

// applyMigration runs a single migration's Up statements and records the
// outcome in the history table.
func (c *Client) applyMigration(ctx context.Context, migration *Migration) error {
	start := time.Now()
	checksum := CalculateChecksum(migration)

	c.logger.Info("applying migration",
		client.String("migration_id", migration.ID),
		client.Int("statements", len(migration.Up)))

	err := c.runStatements(ctx, migration.Up)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		c.history.RecordMigration(migration.ID, Failed, elapsed, checksum, err)
		if rec, ok := c.history.GetRecord(migration.ID); ok {
			// Best effort; the statement failure is the error that matters
			if saveErr := c.history.save(ctx, c.exec, rec); saveErr != nil {
				c.logger.Warn("failed to record migration failure",
					client.String("migration_id", migration.ID),
					client.Error("error", saveErr))
			}
		}
		return ErrMigrationFailed(migration.ID, err)
	}

	c.history.RecordMigration(migration.ID, Applied, elapsed, checksum, nil)
	rec, _ := c.history.GetRecord(migration.ID)
	if err := c.history.save(ctx, c.exec, rec); err != nil {
		return fmt.Errorf("migration %q applied but could not be recorded: %w", migration.ID, err)
	}

	c.logger.Info("migration applied",
		client.String("migration_id", migration.ID),
		client.Int64("execution_time_ms", elapsed))

	return nil
}

// runStatements executes SQL statements atomically in a single exchange.
func (c *Client) runStatements(ctx context.Context, statements []string) error {
	if len(statements) == 0 {
		return nil
	}

	stmts := make([]protocol.Stmt, len(statements))
	for i, sql := range statements {
		stmts[i] = protocol.Stmt{SQL: sql}
	}

	res, err := c.exec.Transaction(ctx, client.TxImmediate, stmts)
	if err != nil {
		return err
	}
	return res.Err()
}

// Rollback rolls back a specific migration. Missing Down statements are
// generated automatically when the Up statements are reversible.
func (c *Client) Rollback(ctx context.Context, migrationID string, allMigrations []*Migration) error {
	if err := c.validator.CanRollback(migrationID, allMigrations); err != nil {
		return err
	}

	var migration *Migration
	for _, m := range allMigrations {
		if m.ID == migrationID {
			migration = m
			break
		}
	}

	if migration == nil {
		return ErrMigrationNotFound(migrationID)
	}

	if len(migration.Down) == 0 {
		count, err := c.GenerateDownCommands(migration)
		if err != nil {
			return fmt.Errorf("cannot rollback %q: %w", migrationID, err)
		}
		if count == 0 {
			return ErrRollbackNotSupported(migrationID)
		}
	}

	c.logger.Info("rolling back migration",
		client.String("migration_id", migrationID),
		client.Int("statements", len(migration.Down)))

	if err := c.runStatements(ctx, migration.Down); err != nil {
		return ErrMigrationFailed(migrationID, err)
	}

	if err := c.history.RecordRollback(migrationID); err != nil {
		return err
	}
	rec, _ := c.history.GetRecord(migrationID)
	if err := c.history.saveRollback(ctx, c.exec, migrationID, *rec.RolledBackAt); err != nil {
		return fmt.Errorf("migration %q rolled back but could not be recorded: %w", migrationID, err)
	}

	return nil
}

// Validate performs validation on migrations without executing them.
func (c *Client) Validate(migrations []*Migration) *ValidationResult {
	return c.validator.Validate(migrations)
}

// GetAppliedMigrations returns a sorted list of all applied migration IDs.
func (c *Client) GetAppliedMigrations() []string {
	return c.history.GetAppliedMigrations()
}

// GetMigrationRecord retrieves the record for a specific migration.
func (c *Client) GetMigrationRecord(migrationID string) (*MigrationRecord, bool) {
	return c.history.GetRecord(migrationID)
}

// History returns all records ordered by application time.
func (c *Client) History() []*MigrationRecord {
	return c.history.GetAllRecords()
}

// ClearHistory resets the in-memory history. The history table is untouched;
// use LoadHistory to re-hydrate.
func (c *Client) ClearHistory() {
	c.history.Clear()
}

// GenerateDownCommands fills in a migration's Down statements from its Up
// statements. Returns the number of statements generated; zero means the
// migration already had them or had nothing to reverse.
func (c *Client) GenerateDownCommands(migration *Migration) (int, error) {
	if len(migration.Down) > 0 {
		return 0, nil
	}

	if len(migration.Up) == 0 {
		return 0, nil
	}

	downStatements, err := c.generator.GenerateDown(migration.Up)
	if err != nil {
		return 0, fmt.Errorf("failed to generate down statements for migration %q: %w", migration.ID, err)
	}

	migration.Down = downStatements
	return len(downStatements), nil
}

// GenerateAllDownCommands generates Down statements for every migration that
// lacks them. Returns a map of migration ID to statements generated.
func (c *Client) GenerateAllDownCommands(migrations []*Migration) (map[string]int, error) {
	result := make(map[string]int)

	for _, migration := range migrations {
		count, err := c.GenerateDownCommands(migration)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			result[migration.ID] = count
		}
	}

	return result, nil
}

// CanAutoRollback checks if a migration can be rolled back without
// hand-written Down statements.
func (c *Client) CanAutoRollback(migration *Migration) bool {
	if len(migration.Down) > 0 {
		return true
	}

	for _, up := range migration.Up {
		if !c.generator.CanGenerateDown(up) {
			return false
		}
	}

	return len(migration.Up) > 0
}

// WithLocking enables the advisory lock around Apply. A zero timeout falls
// back to HRANA_LOCK_TIMEOUT, then to one hour.
func (c *Client) WithLocking(timeout time.Duration) error {
	lock, err := NewMigrationLock(c.exec, timeout)
	if err != nil {
		return err
	}
	lock.logger = c.logger
	c.lock = lock
	return nil
}

// WithLockRetry configures retry behavior for lock acquisition.
// Useful for CI/CD environments with brief contention.
func (c *Client) WithLockRetry(maxRetries int, backoff time.Duration) error {
	if c.lock == nil {
		return fmt.Errorf("locking not configured, call WithLocking first")
	}
	return c.lock.SetRetry(maxRetries, backoff)
}

// Preview creates a migration plan in dry-run mode.
func (c *Client) Preview(migrations []*Migration) (*MigrationPlan, error) {
	plan, err := c.Plan(migrations)
	if err != nil {
		return nil, err
	}
	plan.DryRun = true
	return plan, nil
}

// FormatPreview formats a migration plan for human-readable output.
func FormatPreview(plan *MigrationPlan) string {
	var sb strings.Builder

	sb.WriteString("=== Migration Preview ===\n\n")

	if len(plan.Migrations) == 0 {
		sb.WriteString("No migrations to apply.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Total migrations: %d\n\n", plan.TotalCount))

	for i, migration := range plan.Migrations {
		sb.WriteString(fmt.Sprintf("Migration %d: %s\n", i+1, migration.ID))
		sb.WriteString(fmt.Sprintf("  Name: %s\n", migration.Name))
		sb.WriteString(fmt.Sprintf("  Timestamp: %s\n", migration.Timestamp.Format(time.RFC3339)))

		if len(migration.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("  Dependencies: %v\n", migration.Dependencies))
		}

		sb.WriteString("\n  Up:\n")
		for j, stmt := range migration.Up {
			sb.WriteString(fmt.Sprintf("    %d. %s\n", j+1, stmt))
		}

		if len(migration.Down) > 0 {
			sb.WriteString("\n  Down:\n")
			for j, stmt := range migration.Down {
				sb.WriteString(fmt.Sprintf("    %d. %s\n", j+1, stmt))
			}
		} else {
			sb.WriteString("\n  Down: (auto-generated if possible)\n")
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateFile writes pending migrations to files in the given directory.
func (c *Client) GenerateFile(migrations []*Migration, dir string) ([]string, error) {
	if len(migrations) == 0 {
		return nil, fmt.Errorf("no migrations to generate")
	}

	plan, err := c.Plan(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migrations: %w", err)
	}

	var filePaths []string
	for _, migration := range plan.Migrations {
		path, err := WriteMigrationFile(migration, dir)
		if err != nil {
			return filePaths, fmt.Errorf("failed to write migration %s: %w", migration.ID, err)
		}
		filePaths = append(filePaths, path)
	}

	return filePaths, nil
}

// LoadFromFile loads a migration from a file.
func (c *Client) LoadFromFile(path string) (*Migration, error) {
	return ReadMigrationFile(path)
}

// ApplyFromDirectory scans a directory and applies pending migrations.
func (c *Client) ApplyFromDirectory(ctx context.Context, dir string) error {
	migrations, err := ListMigrationFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}

	if len(migrations) == 0 {
		return nil
	}

	plan, err := c.Plan(migrations)
	if err != nil {
		return fmt.Errorf("failed to plan migrations: %w", err)
	}

	return c.Apply(ctx, plan)
}
