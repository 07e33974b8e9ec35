package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/lukeed/hrana/client"
)

// LockTable holds the advisory lease that serializes concurrent migration
// runs. The single-row constraint makes acquisition a plain INSERT: whoever
// inserts the row holds the lock, and a constraint violation means someone
// else does.
const LockTable = "_hrana_lock"

const createLockTableSQL = `CREATE TABLE IF NOT EXISTS ` + LockTable + ` (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    holder TEXT NOT NULL,
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    acquired_at TEXT NOT NULL
)`

const (
	insertLockSQL = `INSERT INTO ` + LockTable + ` (id, holder, hostname, pid, acquired_at) VALUES (1, ?, ?, ?, ?)`
	selectLockSQL = `SELECT holder, hostname, pid, acquired_at FROM ` + LockTable + ` WHERE id = 1`
	deleteLockSQL = `DELETE FROM ` + LockTable + ` WHERE id = 1`
)

// LockMetadata describes who holds the migration lock.
type LockMetadata struct {
	Holder     string    `json:"holder"`
	Hostname   string    `json:"hostname"`
	PID        int64     `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// MigrationLock is a database-backed advisory lock. Unlike a file lock it
// coordinates runners on different machines, which is the normal deployment
// shape for a remote database.
type MigrationLock struct {
	exec         Executor
	logger       client.Logger
	staleTimeout time.Duration
	maxRetries   int
	retryBackoff time.Duration
}

// NewMigrationLock creates a migration lock over the given executor.
// A zero timeout falls back to HRANA_LOCK_TIMEOUT, then to 1 hour.
func NewMigrationLock(exec Executor, timeout time.Duration) (*MigrationLock, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}

	if timeout == 0 {
		var err error
		timeout, err = parseLockTimeout()
		if err != nil {
			return nil, fmt.Errorf("failed to parse lock timeout: %w", err)
		}
	}

	return &MigrationLock{
		exec:         exec,
		logger:       client.NewNoopLogger(),
		staleTimeout: timeout,
	}, nil
}

// SetRetry configures retry behavior for lock acquisition. Useful for CI
// environments with brief contention.
func (l *MigrationLock) SetRetry(maxRetries int, backoff time.Duration) error {
	if maxRetries < 0 {
		return fmt.Errorf("maxRetries cannot be negative")
	}
	if maxRetries > 10 {
		return fmt.Errorf("maxRetries cannot exceed 10")
	}
	if backoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	if backoff > time.Minute {
		return fmt.Errorf("backoff cannot exceed 1 minute")
	}

	l.maxRetries = maxRetries
	l.retryBackoff = backoff
	return nil
}

// Acquire takes the migration lock, cleaning up a stale lease and retrying
// with exponential backoff when configured.
func (l *MigrationLock) Acquire(ctx context.Context) error {
	if _, err := l.exec.Exec(ctx, createLockTableSQL); err != nil {
		return fmt.Errorf("failed to prepare lock table: %w", err)
	}

	meta := currentLockMetadata()
	cleanedStale := false

	for attempt := 0; ; attempt++ {
		_, err := l.exec.Exec(ctx, insertLockSQL,
			meta.Holder, meta.Hostname, meta.PID,
			time.Now().UTC().Format(time.RFC3339Nano))
		if err == nil {
			return nil
		}
		if !isConstraintViolation(err) {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}

		held, ok, rerr := l.read(ctx)
		if rerr != nil {
			return rerr
		}

		// One stale cleanup per acquisition; a lease that keeps coming
		// back stale means something else is wrong.
		if ok && !cleanedStale && time.Since(held.AcquiredAt) > l.staleTimeout {
			l.logger.Warn("cleaning up stale migration lock",
				client.String("holder", held.Holder),
				client.String("hostname", held.Hostname),
				client.Duration("held_for", time.Since(held.AcquiredAt)))
			if derr := l.Release(ctx); derr != nil {
				return fmt.Errorf("failed to clean up stale lock: %w", derr)
			}
			cleanedStale = true
			continue
		}

		if attempt < l.maxRetries {
			backoff := l.retryBackoff * time.Duration(1<<uint(attempt))
			if backoff > time.Minute {
				backoff = time.Minute
			}

			l.logger.Info("migration lock held, retrying",
				lockHolderFields(held, ok,
					client.Duration("backoff", backoff),
					client.Int("attempt", attempt+1),
					client.Int("max_retries", l.maxRetries))...)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		return lockConflictError(held, ok)
	}
}

// Release drops the lease row. Releasing an unheld lock is not an error.
func (l *MigrationLock) Release(ctx context.Context) error {
	if _, err := l.exec.Exec(ctx, deleteLockSQL); err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	return nil
}

// ForceUnlock removes the lease regardless of holder. When the lease belongs
// to a live process on this host the unlock is refused, since that process is
// presumably mid-migration.
func (l *MigrationLock) ForceUnlock(ctx context.Context) error {
	held, ok, err := l.read(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	hostname, _ := os.Hostname()
	if hostname != "" && held.Hostname == hostname && isProcessActive(held.PID) {
		return fmt.Errorf("cannot force unlock: process %d appears to be active on this host", held.PID)
	}

	l.logger.Warn("force unlocking migration lock",
		client.String("holder", held.Holder),
		client.String("hostname", held.Hostname),
		client.Int64("pid", held.PID))

	return l.Release(ctx)
}

// Holder returns the current lease metadata, if any.
func (l *MigrationLock) Holder(ctx context.Context) (*LockMetadata, bool, error) {
	return l.read(ctx)
}

// read fetches the lease row.
func (l *MigrationLock) read(ctx context.Context) (*LockMetadata, bool, error) {
	rows, err := l.exec.Query(ctx, selectLockSQL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read migration lock: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	row := rows[0]
	meta := &LockMetadata{
		Holder:   rowString(row, "holder"),
		Hostname: rowString(row, "hostname"),
		PID:      rowInt64(row, "pid"),
	}
	// A malformed timestamp leaves AcquiredAt zero, which reads as stale
	if at, err := time.Parse(time.RFC3339Nano, rowString(row, "acquired_at")); err == nil {
		meta.AcquiredAt = at
	}

	return meta, true, nil
}

// isConstraintViolation reports whether an execution error is the server
// rejecting a duplicate lock row.
func isConstraintViolation(err error) bool {
	var protoErr *client.ProtocolError
	if errors.As(err, &protoErr) {
		return strings.HasPrefix(protoErr.Code, "SQLITE_CONSTRAINT")
	}
	return false
}

// lockConflictError builds the error returned when all retries are exhausted.
func lockConflictError(held *LockMetadata, known bool) error {
	if !known {
		return &MigrationError{
			Code:    "E_LOCK_HELD",
			Type:    "MIGRATION_ERROR",
			Message: "migration lock is held by another process",
		}
	}

	age := time.Since(held.AcquiredAt)
	return ErrLockHeld(held.Holder, held.Hostname, held.PID, age.Round(time.Second).String())
}

// lockHolderFields builds log fields for the current holder, tolerating an
// unknown one.
func lockHolderFields(held *LockMetadata, known bool, extra ...client.Field) []client.Field {
	fields := make([]client.Field, 0, len(extra)+3)
	if known {
		fields = append(fields,
			client.String("holder", held.Holder),
			client.String("hostname", held.Hostname),
			client.Int64("pid", held.PID))
	}
	return append(fields, extra...)
}

// currentLockMetadata identifies this process for the lease row.
func currentLockMetadata() LockMetadata {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME") // Windows fallback
		if user == "" {
			user = "unknown"
		}
	}

	return LockMetadata{
		Holder:   user,
		Hostname: hostname,
		PID:      int64(os.Getpid()),
	}
}

// parseLockTimeout parses the stale timeout from HRANA_LOCK_TIMEOUT.
// Returns a 1 hour default if not set.
func parseLockTimeout() (time.Duration, error) {
	envTimeout := os.Getenv("HRANA_LOCK_TIMEOUT")
	if envTimeout == "" {
		return time.Hour, nil
	}

	timeout, err := time.ParseDuration(envTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid HRANA_LOCK_TIMEOUT value %q: %w", envTimeout, err)
	}

	if timeout <= 0 {
		return 0, fmt.Errorf("HRANA_LOCK_TIMEOUT must be positive, got %s", timeout)
	}

	return timeout, nil
}

// isProcessActive checks if a process with the given PID is alive. Best
// effort; only meaningful on the host the process runs on.
func isProcessActive(pid int64) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(int(pid))
	if err != nil {
		return false
	}

	// Signal 0 probes for existence without delivering anything
	return process.Signal(syscall.Signal(0)) == nil
}
