package main

import (
	"math/big"
	"testing"
	"time"

	"github.com/lukeed/hrana/migration"
)

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"null", nil, "NULL"},
		{"text", "hello", "hello"},
		{"blob", []byte{0xde, 0xad}, "x'dead'"},
		{"float", 3.5, "3.5"},
		{"whole float", float64(42), "42"},
		{"int64", int64(-7), "-7"},
		{"bigint", big.NewInt(9007199254740993), "9007199254740993"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCell(tt.value); got != tt.want {
				t.Errorf("formatCell(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestTruncateSQL(t *testing.T) {
	got := truncateSQL("SELECT *\n  FROM   users", 60)
	if got != "SELECT * FROM users" {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}

	long := truncateSQL("SELECT 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'", 20)
	if len([]rune(long)) != 20 {
		t.Errorf("expected 20 runes, got %d (%q)", len([]rune(long)), long)
	}
	if long[len(long)-3:] != "..." {
		t.Errorf("expected trailing ellipsis, got %q", long)
	}
}

func TestNextMigrationID(t *testing.T) {
	dir := t.TempDir()

	id := nextMigrationID(dir, "Add Users-Table")
	if id != "0001_add_users_table" {
		t.Errorf("expected 0001_add_users_table, got %q", id)
	}

	_, err := migration.WriteMigrationFile(&migration.Migration{
		ID:        "0004_later",
		Name:      "later",
		Up:        []string{"CREATE TABLE t (id INTEGER);"},
		Timestamp: time.Now(),
	}, dir)
	if err != nil {
		t.Fatalf("write migration: %v", err)
	}

	if id := nextMigrationID(dir, "next"); id != "0005_next" {
		t.Errorf("expected 0005_next, got %q", id)
	}
}

func TestPad(t *testing.T) {
	if got := pad("ab", 5); got != "ab   " {
		t.Errorf("expected %q, got %q", "ab   ", got)
	}
	if got := pad("abcdef", 3); got != "abcdef" {
		t.Errorf("expected unpadded string, got %q", got)
	}
}
