// Package schema introspects a live database schema over the pipeline and
// diffs it against a local snapshot. Diffs serialize back to DDL, so a
// snapshot file can drive the live schema toward a desired shape.
package schema

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/lukeed/hrana/mapper"
)

// Executor is the read-only client surface introspection runs through.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) ([]mapper.Row, error)
}

// Bookkeeping tables created by the migration runner are invisible to
// introspection, like SQLite's own internal tables.
const internalPrefix = "_hrana_"

// Introspect reads the live schema through sqlite_schema and PRAGMA
// queries, one table at a time.
func Introspect(ctx context.Context, exec Executor) (*SchemaDefinition, error) {
	rows, err := exec.Query(ctx, "SELECT name FROM sqlite_schema WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	schema := &SchemaDefinition{Tables: make([]TableDefinition, 0, len(rows))}

	for _, row := range rows {
		name := rowString(row, "name")
		if name == "" || strings.HasPrefix(name, "sqlite_") || strings.HasPrefix(name, internalPrefix) {
			continue
		}

		table, err := introspectTable(ctx, exec, name)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, *table)
	}

	return schema, nil
}

// introspectTable reads one table's columns, indexes and foreign keys.
func introspectTable(ctx context.Context, exec Executor, name string) (*TableDefinition, error) {
	table := &TableDefinition{Name: name}

	cols, err := exec.Query(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %q: %w", name, err)
	}
	for _, row := range cols {
		col := ColumnDefinition{
			Name:       rowString(row, "name"),
			Type:       rowString(row, "type"),
			NotNull:    rowInt64(row, "notnull") != 0,
			PrimaryKey: rowInt64(row, "pk") != 0,
		}
		if v, ok := row["dflt_value"].(string); ok {
			col.Default = &v
		}
		table.Columns = append(table.Columns, col)
	}

	indexes, err := exec.Query(ctx, "PRAGMA index_list("+quoteIdent(name)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %q: %w", name, err)
	}
	for _, row := range indexes {
		// Origin "c" marks CREATE INDEX; "u" and "pk" indexes are implied
		// by the table definition and excluded from the snapshot
		if rowString(row, "origin") != "c" {
			continue
		}
		idx := IndexDefinition{
			Name:   rowString(row, "name"),
			Unique: rowInt64(row, "unique") != 0,
		}
		info, err := exec.Query(ctx, "PRAGMA index_info("+quoteIdent(idx.Name)+")")
		if err != nil {
			return nil, fmt.Errorf("failed to read index %q: %w", idx.Name, err)
		}
		for _, infoRow := range info {
			idx.Columns = append(idx.Columns, rowString(infoRow, "name"))
		}
		table.Indexes = append(table.Indexes, idx)
	}

	fks, err := exec.Query(ctx, "PRAGMA foreign_key_list("+quoteIdent(name)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %q: %w", name, err)
	}
	// Rows sharing an id are the column pairs of one composite key
	byID := make(map[int64]*ForeignKeyDefinition)
	var order []int64
	for _, row := range fks {
		id := rowInt64(row, "id")
		fk, ok := byID[id]
		if !ok {
			fk = &ForeignKeyDefinition{
				Table:    rowString(row, "table"),
				OnDelete: fkAction(rowString(row, "on_delete")),
				OnUpdate: fkAction(rowString(row, "on_update")),
			}
			byID[id] = fk
			order = append(order, id)
		}
		fk.From = append(fk.From, rowString(row, "from"))
		fk.To = append(fk.To, rowString(row, "to"))
	}
	for _, id := range order {
		table.ForeignKeys = append(table.ForeignKeys, *byID[id])
	}

	return table, nil
}

// SQLite reports NO ACTION for unspecified clauses; the snapshot format
// leaves them empty.
func fkAction(v string) string {
	if v == "NO ACTION" {
		return ""
	}
	return v
}

// CompareSchemas diffs a local snapshot against the live schema. Tables
// present only in local come back as "create"; tables present only in
// live as "drop".
func CompareSchemas(local, live *SchemaDefinition) *SchemaDiff {
	diff := &SchemaDiff{
		TableChanges: make([]TableChange, 0),
		HasChanges:   false,
	}

	// Create maps for efficient lookup
	localTables := make(map[string]*TableDefinition)
	liveTables := make(map[string]*TableDefinition)

	for i := range local.Tables {
		localTables[local.Tables[i].Name] = &local.Tables[i]
	}
	for i := range live.Tables {
		liveTables[live.Tables[i].Name] = &live.Tables[i]
	}

	// Find created and modified tables
	for i := range local.Tables {
		localTable := &local.Tables[i]
		liveTable, exists := liveTables[localTable.Name]
		if !exists {
			diff.TableChanges = append(diff.TableChanges, TableChange{
				Type:          "create",
				TableName:     localTable.Name,
				NewDefinition: localTable,
			})
			diff.HasChanges = true
			continue
		}

		columnChanges := compareColumns(localTable.Columns, liveTable.Columns)
		indexChanges := compareIndexes(localTable.Indexes, liveTable.Indexes)
		fkChanges := compareForeignKeys(localTable.ForeignKeys, liveTable.ForeignKeys)

		if len(columnChanges) > 0 || len(indexChanges) > 0 || len(fkChanges) > 0 {
			diff.TableChanges = append(diff.TableChanges, TableChange{
				Type:              "modify",
				TableName:         localTable.Name,
				OldDefinition:     liveTable,
				NewDefinition:     localTable,
				ColumnChanges:     columnChanges,
				IndexChanges:      indexChanges,
				ForeignKeyChanges: fkChanges,
			})
			diff.HasChanges = true
		}
	}

	// Find removed tables
	for i := range live.Tables {
		liveTable := &live.Tables[i]
		if _, exists := localTables[liveTable.Name]; !exists {
			diff.TableChanges = append(diff.TableChanges, TableChange{
				Type:          "drop",
				TableName:     liveTable.Name,
				OldDefinition: liveTable,
			})
			diff.HasChanges = true
		}
	}

	return diff
}

// compareColumns compares two column lists and returns the changes.
func compareColumns(localColumns, liveColumns []ColumnDefinition) []ColumnChange {
	changes := make([]ColumnChange, 0)

	localMap := make(map[string]*ColumnDefinition)
	liveMap := make(map[string]*ColumnDefinition)

	for i := range localColumns {
		localMap[localColumns[i].Name] = &localColumns[i]
	}
	for i := range liveColumns {
		liveMap[liveColumns[i].Name] = &liveColumns[i]
	}

	// Find added and modified columns
	for i := range localColumns {
		localCol := &localColumns[i]
		liveCol, exists := liveMap[localCol.Name]
		if !exists {
			changes = append(changes, ColumnChange{
				Type:       "add",
				ColumnName: localCol.Name,
				NewColumn:  localCol,
			})
		} else if !columnsEqual(localCol, liveCol) {
			changes = append(changes, ColumnChange{
				Type:       "modify",
				ColumnName: localCol.Name,
				OldColumn:  liveCol,
				NewColumn:  localCol,
			})
		}
	}

	// Find removed columns
	for i := range liveColumns {
		liveCol := &liveColumns[i]
		if _, exists := localMap[liveCol.Name]; !exists {
			changes = append(changes, ColumnChange{
				Type:       "remove",
				ColumnName: liveCol.Name,
				OldColumn:  liveCol,
			})
		}
	}

	return changes
}

// columnsEqual compares two columns. Type names compare case-insensitively
// since SQLite preserves whatever casing the DDL used.
func columnsEqual(a, b *ColumnDefinition) bool {
	if !strings.EqualFold(a.Type, b.Type) {
		return false
	}
	if a.NotNull != b.NotNull || a.PrimaryKey != b.PrimaryKey {
		return false
	}
	if a.Default == nil || b.Default == nil {
		return a.Default == nil && b.Default == nil
	}
	return *a.Default == *b.Default
}

// compareIndexes compares two index lists and returns the changes.
func compareIndexes(localIndexes, liveIndexes []IndexDefinition) []IndexChange {
	changes := make([]IndexChange, 0)

	localMap := make(map[string]*IndexDefinition)
	liveMap := make(map[string]*IndexDefinition)

	for i := range localIndexes {
		localMap[localIndexes[i].Name] = &localIndexes[i]
	}
	for i := range liveIndexes {
		liveMap[liveIndexes[i].Name] = &liveIndexes[i]
	}

	// Find added and modified indexes
	for i := range localIndexes {
		localIdx := &localIndexes[i]
		liveIdx, exists := liveMap[localIdx.Name]
		if !exists {
			changes = append(changes, IndexChange{
				Type:     "add",
				NewIndex: localIdx,
			})
		} else if !indexesEqual(localIdx, liveIdx) {
			changes = append(changes, IndexChange{
				Type:     "modify",
				OldIndex: liveIdx,
				NewIndex: localIdx,
			})
		}
	}

	// Find removed indexes
	for i := range liveIndexes {
		liveIdx := &liveIndexes[i]
		if _, exists := localMap[liveIdx.Name]; !exists {
			changes = append(changes, IndexChange{
				Type:     "remove",
				OldIndex: liveIdx,
			})
		}
	}

	return changes
}

// indexesEqual compares two indexes for equality.
func indexesEqual(a, b *IndexDefinition) bool {
	if a.Unique != b.Unique || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

// compareForeignKeys matches keys by their full shape. Foreign keys carry
// no names in SQLite, so a changed key shows up as a remove plus an add.
func compareForeignKeys(localKeys, liveKeys []ForeignKeyDefinition) []ForeignKeyChange {
	changes := make([]ForeignKeyChange, 0)

	localSet := make(map[string]bool)
	liveSet := make(map[string]bool)

	for i := range localKeys {
		localSet[foreignKeyID(&localKeys[i])] = true
	}
	for i := range liveKeys {
		liveSet[foreignKeyID(&liveKeys[i])] = true
	}

	for i := range localKeys {
		localKey := &localKeys[i]
		if !liveSet[foreignKeyID(localKey)] {
			changes = append(changes, ForeignKeyChange{
				Type:   "add",
				NewKey: localKey,
			})
		}
	}
	for i := range liveKeys {
		liveKey := &liveKeys[i]
		if !localSet[foreignKeyID(liveKey)] {
			changes = append(changes, ForeignKeyChange{
				Type:   "remove",
				OldKey: liveKey,
			})
		}
	}

	return changes
}

func foreignKeyID(fk *ForeignKeyDefinition) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", fk.Table,
		strings.Join(fk.From, ","), strings.Join(fk.To, ","),
		fk.OnDelete, fk.OnUpdate)
}

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
