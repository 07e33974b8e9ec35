package migration

import (
	"fmt"
	"regexp"
	"strings"
)

// RollbackGenerator derives Down statements from Up statements, so simple
// schema migrations roll back without hand-written reverses. Only structural
// statements with an obvious inverse are supported; anything touching data or
// dropping objects needs an explicit Down.
type RollbackGenerator struct{}

// NewRollbackGenerator creates a new rollback generator.
func NewRollbackGenerator() *RollbackGenerator {
	return &RollbackGenerator{}
}

// ident matches one SQL identifier: double-quoted, backquoted, bracketed or
// bare.
const ident = `("[^"]+"|` + "`[^`]+`" + `|\[[^\]]+\]|[\w$]+)`

var (
	createTableRe   = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	createIndexRe   = regexp.MustCompile(`(?is)^CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	createViewRe    = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	createTriggerRe = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?TRIGGER\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident)
	addColumnRe     = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+` + ident + `\s+ADD\s+(?:COLUMN\s+)?` + ident)
	renameTableRe   = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+` + ident + `\s+RENAME\s+TO\s+` + ident)
	renameColumnRe  = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+` + ident + `\s+RENAME\s+(?:COLUMN\s+)?` + ident + `\s+TO\s+` + ident)
)

// GenerateDown derives Down statements from Up statements. Statements are
// reversed in order, so objects unwind in the opposite sequence they were
// built in.
func (g *RollbackGenerator) GenerateDown(upStatements []string) ([]string, error) {
	downStatements := make([]string, 0, len(upStatements))

	for i := len(upStatements) - 1; i >= 0; i-- {
		down, err := g.generateSingleDown(upStatements[i])
		if err != nil {
			return nil, fmt.Errorf("failed to generate down statement for up[%d]: %w", i, err)
		}
		downStatements = append(downStatements, down)
	}

	return downStatements, nil
}

// generateSingleDown produces the inverse of one statement.
func (g *RollbackGenerator) generateSingleDown(upStatement string) (string, error) {
	normalized := strings.TrimSpace(upStatement)
	upper := strings.ToUpper(normalized)

	switch {
	case strings.HasPrefix(upper, "CREATE"):
		if m := createTableRe.FindStringSubmatch(normalized); m != nil {
			return fmt.Sprintf("DROP TABLE %s;", quoteIdent(unquoteIdent(m[1]))), nil
		}
		if m := createIndexRe.FindStringSubmatch(normalized); m != nil {
			return fmt.Sprintf("DROP INDEX %s;", quoteIdent(unquoteIdent(m[1]))), nil
		}
		if m := createViewRe.FindStringSubmatch(normalized); m != nil {
			return fmt.Sprintf("DROP VIEW %s;", quoteIdent(unquoteIdent(m[1]))), nil
		}
		if m := createTriggerRe.FindStringSubmatch(normalized); m != nil {
			return fmt.Sprintf("DROP TRIGGER %s;", quoteIdent(unquoteIdent(m[1]))), nil
		}
		return "", fmt.Errorf("cannot reverse CREATE statement: %s", firstLine(normalized))

	case strings.HasPrefix(upper, "ALTER"):
		if m := addColumnRe.FindStringSubmatch(normalized); m != nil {
			table := quoteIdent(unquoteIdent(m[1]))
			column := quoteIdent(unquoteIdent(m[2]))
			return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", table, column), nil
		}
		// RENAME TO before RENAME COLUMN: both start with RENAME
		if m := renameTableRe.FindStringSubmatch(normalized); m != nil {
			oldName := quoteIdent(unquoteIdent(m[1]))
			newName := quoteIdent(unquoteIdent(m[2]))
			return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", newName, oldName), nil
		}
		if m := renameColumnRe.FindStringSubmatch(normalized); m != nil {
			table := quoteIdent(unquoteIdent(m[1]))
			oldCol := quoteIdent(unquoteIdent(m[2]))
			newCol := quoteIdent(unquoteIdent(m[3]))
			return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", table, newCol, oldCol), nil
		}
		return "", fmt.Errorf("ALTER TABLE statement cannot be automatically reversed (dropped or rebuilt columns need the original definition): %s", firstLine(normalized))

	case strings.HasPrefix(upper, "DROP"):
		return "", fmt.Errorf("DROP cannot be automatically reversed (the dropped definition is required): %s", firstLine(normalized))

	case strings.HasPrefix(upper, "INSERT"):
		return "", fmt.Errorf("INSERT cannot be automatically reversed without tracking inserted row IDs")

	case strings.HasPrefix(upper, "DELETE"):
		return "", fmt.Errorf("DELETE cannot be automatically reversed (the deleted rows are required)")

	case strings.HasPrefix(upper, "UPDATE"):
		return "", fmt.Errorf("UPDATE cannot be automatically reversed (the original values are required)")
	}

	return "", fmt.Errorf("cannot automatically reverse statement: %s", firstLine(normalized))
}

// CanGenerateDown reports whether a statement has a derivable inverse.
func (g *RollbackGenerator) CanGenerateDown(upStatement string) bool {
	_, err := g.generateSingleDown(upStatement)
	return err == nil
}

// ValidateDownCommands checks that a Down list plausibly reverses an Up list.
func (g *RollbackGenerator) ValidateDownCommands(upStatements, downStatements []string) error {
	if len(downStatements) > len(upStatements) {
		return fmt.Errorf("more down statements (%d) than up statements (%d)", len(downStatements), len(upStatements))
	}

	reversibleCount := 0
	for _, up := range upStatements {
		if g.CanGenerateDown(up) {
			reversibleCount++
		}
	}

	if len(downStatements) != reversibleCount {
		return fmt.Errorf("expected %d down statements for %d reversible up statements, got %d",
			reversibleCount, reversibleCount, len(downStatements))
	}

	return nil
}

// quoteIdent wraps an identifier in double quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// unquoteIdent strips one layer of identifier quoting, if present.
func unquoteIdent(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		case s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		case s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// firstLine trims a statement to its first line for error messages.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return s
}
