package client

import (
	"fmt"

	"github.com/lukeed/hrana/protocol"
)

// StmtBuilder assembles a protocol statement from Go values. Methods chain;
// the first binding failure is remembered and surfaced by Build, so call
// sites stay linear:
//
//	stmt, err := client.NewStmt("SELECT * FROM users WHERE id = ?").
//	    Bind(42).
//	    Build()
type StmtBuilder struct {
	stmt protocol.Stmt
	err  error
}

// NewStmt starts building a statement. Rows are requested by default; use
// WantRows(false) for writes where the result rows are irrelevant.
func NewStmt(sql string) *StmtBuilder {
	return &StmtBuilder{
		stmt: protocol.Stmt{SQL: sql, WantRows: true},
	}
}

// Bind appends positional arguments. Supported Go types are the ones
// protocol.EncodeValue accepts; anything else fails the build.
func (b *StmtBuilder) Bind(args ...any) *StmtBuilder {
	for i, arg := range args {
		v, err := protocol.EncodeValue(arg)
		if err != nil {
			b.fail(fmt.Errorf("positional arg %d: %w", i, err))
			return b
		}
		b.stmt.Args = append(b.stmt.Args, v)
	}
	return b
}

// BindNamed appends one named argument. The name is sent as given; servers
// match it against :name, @name and $name placeholders.
func (b *StmtBuilder) BindNamed(name string, arg any) *StmtBuilder {
	v, err := protocol.EncodeValue(arg)
	if err != nil {
		b.fail(fmt.Errorf("named arg %q: %w", name, err))
		return b
	}
	b.stmt.NamedArgs = append(b.stmt.NamedArgs, protocol.NamedArg{Name: name, Value: v})
	return b
}

// WantRows sets whether the server should return result rows.
func (b *StmtBuilder) WantRows(want bool) *StmtBuilder {
	b.stmt.WantRows = want
	return b
}

// Build finalizes the statement, returning the first binding error if any
// Bind or BindNamed call failed.
func (b *StmtBuilder) Build() (*protocol.Stmt, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.stmt.SQL == "" {
		return nil, fmt.Errorf("statement has no SQL text")
	}
	stmt := b.stmt
	return &stmt, nil
}

// fail records the first error; later ones are dropped.
func (b *StmtBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
