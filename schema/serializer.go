package schema

import (
	"fmt"
	"strings"
)

// SerializeCreateTable generates a CREATE TABLE statement, including
// table-level PRIMARY KEY and FOREIGN KEY constraints.
func SerializeCreateTable(table *TableDefinition) string {
	var parts []string

	pkCount := 0
	for _, col := range table.Columns {
		if col.PrimaryKey {
			pkCount++
		}
	}

	for i := range table.Columns {
		parts = append(parts, "    "+columnDDL(&table.Columns[i], pkCount == 1))
	}

	// Composite keys become a table constraint
	if pkCount > 1 {
		var pkCols []string
		for _, col := range table.Columns {
			if col.PrimaryKey {
				pkCols = append(pkCols, quoteIdent(col.Name))
			}
		}
		parts = append(parts, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(pkCols, ", ")))
	}

	for i := range table.ForeignKeys {
		parts = append(parts, "    "+foreignKeyDDL(&table.ForeignKeys[i]))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);",
		quoteIdent(table.Name), strings.Join(parts, ",\n"))
}

// columnDDL renders a single column clause. inlinePK declares a one-column
// primary key on the column itself.
func columnDDL(col *ColumnDefinition, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(quoteIdent(col.Name))
	if col.Type != "" {
		b.WriteString(" ")
		b.WriteString(col.Type)
	}
	if col.PrimaryKey && inlinePK {
		b.WriteString(" PRIMARY KEY")
	}
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.Default)
	}
	return b.String()
}

func foreignKeyDDL(fk *ForeignKeyDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s)",
		strings.Join(quoteAll(fk.From), ", "),
		quoteIdent(fk.Table),
		strings.Join(quoteAll(fk.To), ", "))
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + fk.OnUpdate)
	}
	return b.String()
}

// SerializeCreateIndex generates a CREATE INDEX statement.
func SerializeCreateIndex(index *IndexDefinition, tableName string) string {
	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, quoteIdent(index.Name), quoteIdent(tableName),
		strings.Join(quoteAll(index.Columns), ", "))
}

// SerializeDropIndex generates a DROP INDEX statement.
func SerializeDropIndex(indexName string) string {
	return fmt.Sprintf("DROP INDEX %s;", quoteIdent(indexName))
}

// SerializeDropTable generates a DROP TABLE statement.
func SerializeDropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdent(tableName))
}

// SerializeAlterTable generates the ALTER TABLE statements for a "modify"
// table change. Column modifications and foreign key changes cannot be
// expressed as ALTERs in SQLite; they return an error naming the table so
// callers can fall back to a rebuild migration.
func SerializeAlterTable(change *TableChange) ([]string, error) {
	var statements []string

	for _, columnChange := range change.ColumnChanges {
		switch columnChange.Type {
		case "add":
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;",
				quoteIdent(change.TableName), columnDDL(columnChange.NewColumn, false)))

		case "remove":
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
				quoteIdent(change.TableName), quoteIdent(columnChange.ColumnName)))

		case "modify":
			return nil, fmt.Errorf("column %q of table %q changed in place: table must be rebuilt",
				columnChange.ColumnName, change.TableName)
		}
	}

	if len(change.ForeignKeyChanges) > 0 {
		return nil, fmt.Errorf("foreign keys of table %q changed: table must be rebuilt",
			change.TableName)
	}

	for _, indexChange := range change.IndexChanges {
		switch indexChange.Type {
		case "add":
			statements = append(statements, SerializeCreateIndex(indexChange.NewIndex, change.TableName))

		case "remove":
			statements = append(statements, SerializeDropIndex(indexChange.OldIndex.Name))

		case "modify":
			statements = append(statements,
				SerializeDropIndex(indexChange.OldIndex.Name),
				SerializeCreateIndex(indexChange.NewIndex, change.TableName))
		}
	}

	return statements, nil
}

// GenerateDDL turns a schema diff into the DDL statements that bring the
// live schema in line with the local snapshot.
func GenerateDDL(diff *SchemaDiff) ([]string, error) {
	var statements []string

	for i := range diff.TableChanges {
		change := &diff.TableChanges[i]
		switch change.Type {
		case "create":
			statements = append(statements, SerializeCreateTable(change.NewDefinition))
			for j := range change.NewDefinition.Indexes {
				statements = append(statements,
					SerializeCreateIndex(&change.NewDefinition.Indexes[j], change.TableName))
			}

		case "drop":
			statements = append(statements, SerializeDropTable(change.TableName))

		case "modify":
			alters, err := SerializeAlterTable(change)
			if err != nil {
				return nil, err
			}
			statements = append(statements, alters...)
		}
	}

	return statements, nil
}

// quoteIdent double-quotes an identifier, escaping embedded quotes. Also
// used for PRAGMA interpolation, since PRAGMAs take no bound parameters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	return quoted
}
