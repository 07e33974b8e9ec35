// Package mapper projects column-oriented statement results into named rows.
package mapper

import (
	"fmt"
	"strings"

	"github.com/lukeed/hrana/protocol"
)

// Row is one projected result row keyed by column name.
type Row map[string]any

// Transform post-processes a decoded cell value. It runs after wire decoding,
// so it sees Go values (string, float64, *big.Int, []byte, nil), not wire
// values.
type Transform func(value any) (any, error)

// Option configures a projection.
type Option func(*config)

type config struct {
	mode       protocol.IntegerMode
	transforms map[string]Transform
}

// WithIntegerMode selects the representation of decoded integers.
func WithIntegerMode(mode protocol.IntegerMode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// WithTransform registers a per-column transform, replacing any previous
// transform for that column.
func WithTransform(column string, fn Transform) Option {
	return func(c *config) {
		if c.transforms == nil {
			c.transforms = make(map[string]Transform)
		}
		c.transforms[column] = fn
	}
}

// WithTransforms registers transforms for several columns at once.
func WithTransforms(transforms map[string]Transform) Option {
	return func(c *config) {
		if c.transforms == nil {
			c.transforms = make(map[string]Transform, len(transforms))
		}
		for column, fn := range transforms {
			c.transforms[column] = fn
		}
	}
}

// Columns returns the named column labels in declaration order. Unnamed
// columns are dropped, mirroring Rows.
func Columns(res *protocol.StmtResult) []string {
	if res == nil {
		return nil
	}
	cols := make([]string, 0, len(res.Cols))
	for _, col := range res.Cols {
		if col.Name != nil {
			cols = append(cols, *col.Name)
		}
	}
	return cols
}

// Rows projects a statement result into named rows. Each cell is retagged by
// its column's declared type when one is present, decoded to its Go
// representation, then passed through the column's transform if registered.
// Columns without a name are dropped from every row.
func Rows(res *protocol.StmtResult, opts ...Option) ([]Row, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.mode.Valid() {
		return nil, protocol.IntegerModeError(cfg.mode)
	}

	if res == nil {
		return nil, nil
	}

	rows := make([]Row, 0, len(res.Rows))
	for ri, cells := range res.Rows {
		if len(cells) != len(res.Cols) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", ri, len(cells), len(res.Cols))
		}

		row := make(Row, len(res.Cols))
		for ci, col := range res.Cols {
			if col.Name == nil {
				continue
			}
			name := *col.Name

			cell := cells[ci]
			if col.Decltype != nil {
				retagged, err := retag(cell, *col.Decltype)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", name, err)
				}
				cell = retagged
			}

			decoded, err := protocol.DecodeValue(cell, cfg.mode)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}

			if fn, ok := cfg.transforms[name]; ok {
				decoded, err = fn(decoded)
				if err != nil {
					return nil, fmt.Errorf("transform for column %q: %w", name, err)
				}
			}

			row[name] = decoded
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// retag reinterprets a cell under its column's declared type. The declared
// type must belong to the wire vocabulary after lower-casing. NULL cells pass
// through untouched since SQL NULL is NULL in every column. Reinterpretation
// moves the string payload between the text-like variants; float payloads
// cannot be reinterpreted and reject any cross-type declaration.
func retag(cell protocol.Value, decltype string) (protocol.Value, error) {
	target := protocol.ValueType(strings.ToLower(decltype))
	switch target {
	case protocol.TypeNull, protocol.TypeText, protocol.TypeInteger, protocol.TypeFloat, protocol.TypeBlob:
	default:
		return cell, fmt.Errorf("declared type %q is not a wire type", decltype)
	}

	if cell.Type == protocol.TypeNull || cell.Type == target {
		return cell, nil
	}
	if target == protocol.TypeNull {
		return protocol.Null(), nil
	}
	if cell.Type == protocol.TypeFloat || target == protocol.TypeFloat {
		return cell, fmt.Errorf("cannot reinterpret %s value as declared type %q", cell.Type, decltype)
	}

	payload := cell.Text
	if cell.Type == protocol.TypeBlob {
		payload = cell.Base64
	}
	if target == protocol.TypeBlob {
		return protocol.Value{Type: protocol.TypeBlob, Base64: payload}, nil
	}
	return protocol.Value{Type: target, Text: payload}, nil
}
