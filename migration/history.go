package migration

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash"

	"github.com/lukeed/hrana/mapper"
)

// HistoryTable is the table migration records persist in. It is created on
// first load and excluded from schema introspection.
const HistoryTable = "_hrana_migrations"

const createHistoryTableSQL = `CREATE TABLE IF NOT EXISTS ` + HistoryTable + ` (
    id TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL,
    rolled_back_at TEXT,
    status TEXT NOT NULL,
    execution_time_ms INTEGER NOT NULL DEFAULT 0,
    checksum TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
)`

const selectHistorySQL = `SELECT id, applied_at, rolled_back_at, status, execution_time_ms, checksum, error FROM ` + HistoryTable

const insertHistorySQL = `INSERT OR REPLACE INTO ` + HistoryTable +
	` (id, applied_at, rolled_back_at, status, execution_time_ms, checksum, error) VALUES (?, ?, ?, ?, ?, ?, ?)`

const rollbackHistorySQL = `UPDATE ` + HistoryTable + ` SET status = ?, rolled_back_at = ? WHERE id = ?`

// MigrationHistory tracks applied migrations. It mirrors the rows of the
// history table in memory; Load hydrates it and the record methods write
// through when given an executor.
type MigrationHistory struct {
	records map[string]*MigrationRecord
}

// NewMigrationHistory creates an empty migration history tracker.
func NewMigrationHistory() *MigrationHistory {
	return &MigrationHistory{
		records: make(map[string]*MigrationRecord),
	}
}

// Load hydrates the history from the database, creating the history table if
// it does not exist yet.
func (h *MigrationHistory) Load(ctx context.Context, exec Executor) error {
	if _, err := exec.Exec(ctx, createHistoryTableSQL); err != nil {
		return ErrHistoryUnavailable(err)
	}

	rows, err := exec.Query(ctx, selectHistorySQL)
	if err != nil {
		return ErrHistoryUnavailable(err)
	}

	records := make(map[string]*MigrationRecord, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return ErrHistoryUnavailable(err)
		}
		records[rec.MigrationID] = rec
	}
	h.records = records

	return nil
}

// RecordMigration records a migration execution in memory.
func (h *MigrationHistory) RecordMigration(migrationID string, status MigrationStatus, executionTimeMs int64, checksum string, err error) {
	record := &MigrationRecord{
		MigrationID:     migrationID,
		AppliedAt:       time.Now(),
		Status:          status,
		ExecutionTimeMs: executionTimeMs,
		Checksum:        checksum,
	}

	if err != nil {
		record.Error = err.Error()
	}

	h.records[migrationID] = record
}

// RecordRollback marks a previously applied migration as rolled back.
func (h *MigrationHistory) RecordRollback(migrationID string) error {
	record, exists := h.records[migrationID]
	if !exists {
		return ErrMigrationNotFound(migrationID)
	}

	now := time.Now()
	record.RolledBackAt = &now
	record.Status = RolledBack

	return nil
}

// save writes one record to the history table.
func (h *MigrationHistory) save(ctx context.Context, exec Executor, record *MigrationRecord) error {
	var rolledBackAt any
	if record.RolledBackAt != nil {
		rolledBackAt = record.RolledBackAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := exec.Exec(ctx, insertHistorySQL,
		record.MigrationID,
		record.AppliedAt.UTC().Format(time.RFC3339Nano),
		rolledBackAt,
		string(record.Status),
		record.ExecutionTimeMs,
		record.Checksum,
		record.Error,
	)
	if err != nil {
		return ErrHistoryUnavailable(err)
	}
	return nil
}

// saveRollback updates one record's status and rollback time in the history
// table.
func (h *MigrationHistory) saveRollback(ctx context.Context, exec Executor, migrationID string, at time.Time) error {
	_, err := exec.Exec(ctx, rollbackHistorySQL,
		string(RolledBack),
		at.UTC().Format(time.RFC3339Nano),
		migrationID,
	)
	if err != nil {
		return ErrHistoryUnavailable(err)
	}
	return nil
}

// GetRecord retrieves the record for a specific migration.
func (h *MigrationHistory) GetRecord(migrationID string) (*MigrationRecord, bool) {
	record, exists := h.records[migrationID]
	return record, exists
}

// IsApplied checks if a migration has been successfully applied.
func (h *MigrationHistory) IsApplied(migrationID string) bool {
	record, exists := h.records[migrationID]
	return exists && record.Status == Applied && record.RolledBackAt == nil
}

// GetAppliedMigrations returns a sorted list of all applied migration IDs.
func (h *MigrationHistory) GetAppliedMigrations() []string {
	var applied []string
	for id, record := range h.records {
		if record.Status == Applied && record.RolledBackAt == nil {
			applied = append(applied, id)
		}
	}
	sort.Strings(applied)
	return applied
}

// GetAllRecords returns all migration records sorted by application time.
func (h *MigrationHistory) GetAllRecords() []*MigrationRecord {
	records := make([]*MigrationRecord, 0, len(h.records))
	for _, record := range h.records {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})

	return records
}

// ValidateChecksum verifies that a migration's checksum matches the recorded one.
func (h *MigrationHistory) ValidateChecksum(migration *Migration) error {
	record, exists := h.records[migration.ID]
	if !exists {
		// No record exists, so no checksum to validate
		return nil
	}

	actualChecksum := CalculateChecksum(migration)
	if actualChecksum != record.Checksum {
		return ErrChecksumMismatch(migration.ID, record.Checksum, actualChecksum)
	}

	return nil
}

// Clear removes all in-memory records. The history table is untouched.
func (h *MigrationHistory) Clear() {
	h.records = make(map[string]*MigrationRecord)
}

// CalculateChecksum computes a content hash for a migration. The hash covers
// the ID, name and every statement, so any edit to an already-applied
// migration surfaces as drift.
func CalculateChecksum(migration *Migration) string {
	var b strings.Builder
	b.WriteString(migration.ID)
	b.WriteByte('\n')
	b.WriteString(migration.Name)
	for _, stmt := range migration.Up {
		b.WriteByte('\n')
		b.WriteString(stmt)
	}
	for _, stmt := range migration.Down {
		b.WriteByte('\n')
		b.WriteString(stmt)
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// recordFromRow decodes one history table row.
func recordFromRow(row mapper.Row) (*MigrationRecord, error) {
	rec := &MigrationRecord{
		MigrationID:     rowString(row, "id"),
		Status:          MigrationStatus(rowString(row, "status")),
		ExecutionTimeMs: rowInt64(row, "execution_time_ms"),
		Checksum:        rowString(row, "checksum"),
		Error:           rowString(row, "error"),
	}
	if rec.MigrationID == "" {
		return nil, fmt.Errorf("history row has no id: %v", row)
	}

	appliedAt, err := time.Parse(time.RFC3339Nano, rowString(row, "applied_at"))
	if err != nil {
		return nil, fmt.Errorf("history row %q has malformed applied_at: %w", rec.MigrationID, err)
	}
	rec.AppliedAt = appliedAt

	if raw := rowString(row, "rolled_back_at"); raw != "" {
		rolledBackAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("history row %q has malformed rolled_back_at: %w", rec.MigrationID, err)
		}
		rec.RolledBackAt = &rolledBackAt
	}

	return rec, nil
}

// rowString reads a text cell, tolerating nulls.
func rowString(row mapper.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

// rowInt64 reads an integer cell under any of the client's integer modes.
func rowInt64(row mapper.Row, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case *big.Int:
		return v.Int64()
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
