package protocol

import (
	"encoding/json"
	"strconv"
)

// ValueType identifies the active variant of a wire Value.
type ValueType string

const (
	// TypeNull is the SQL NULL variant
	TypeNull ValueType = "null"

	// TypeText carries a UTF-8 string in the value field
	TypeText ValueType = "text"

	// TypeInteger carries a 64-bit integer as a decimal string in the value field
	TypeInteger ValueType = "integer"

	// TypeFloat carries a JSON number in the value field
	TypeFloat ValueType = "float"

	// TypeBlob carries base64-encoded bytes in the base64 field
	TypeBlob ValueType = "blob"
)

// Value is a single result cell or bound argument in wire form. Exactly one
// variant is active, identified by Type. Text and integer variants keep their
// payload in Text (integers travel as decimal strings so 64-bit values survive
// JSON), floats in Float, and blobs in Base64.
type Value struct {
	Type   ValueType
	Text   string
	Float  float64
	Base64 string
}

// Null returns the SQL NULL wire value.
func Null() Value {
	return Value{Type: TypeNull}
}

// Text returns a text wire value.
func Text(s string) Value {
	return Value{Type: TypeText, Text: s}
}

// Integer returns an integer wire value holding i as a decimal string.
func Integer(i int64) Value {
	return Value{Type: TypeInteger, Text: strconv.FormatInt(i, 10)}
}

// Float returns a float wire value.
func Float(f float64) Value {
	return Value{Type: TypeFloat, Float: f}
}

// Blob returns a blob wire value holding b encoded as standard base64.
func Blob(b []byte) Value {
	return Value{Type: TypeBlob, Base64: EncodeBase64(b)}
}

// stringValue is the wire shape shared by text and integer variants
type stringValue struct {
	Type  ValueType `json:"type"`
	Value string    `json:"value"`
}

// floatValue is the wire shape of the float variant
type floatValue struct {
	Type  ValueType `json:"type"`
	Value float64   `json:"value"`
}

// blobValue is the wire shape of the blob variant
type blobValue struct {
	Type   ValueType `json:"type"`
	Base64 string    `json:"base64"`
}

// nullValue is the wire shape of the null variant
type nullValue struct {
	Type ValueType `json:"type"`
}

// MarshalJSON encodes the active variant into its tagged wire shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case TypeNull, "":
		return json.Marshal(nullValue{Type: TypeNull})
	case TypeText, TypeInteger:
		return json.Marshal(stringValue{Type: v.Type, Value: v.Text})
	case TypeFloat:
		return json.Marshal(floatValue{Type: TypeFloat, Value: v.Float})
	case TypeBlob:
		return json.Marshal(blobValue{Type: TypeBlob, Base64: v.Base64})
	default:
		return nil, UnknownValueTypeError(v.Type)
	}
}

// UnmarshalJSON decodes a tagged wire value. Unknown tags are preserved in
// Type so callers decide whether to fail; the payload fields stay zero.
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type   ValueType       `json:"type"`
		Value  json.RawMessage `json:"value"`
		Base64 string          `json:"base64"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return EnvelopeError("malformed wire value", err)
	}

	*v = Value{Type: probe.Type}
	switch probe.Type {
	case TypeNull:
	case TypeText, TypeInteger:
		if err := json.Unmarshal(probe.Value, &v.Text); err != nil {
			return EnvelopeError("non-string payload for "+string(probe.Type)+" value", err)
		}
	case TypeFloat:
		if err := json.Unmarshal(probe.Value, &v.Float); err != nil {
			return EnvelopeError("non-numeric payload for float value", err)
		}
	case TypeBlob:
		v.Base64 = probe.Base64
	}
	return nil
}

// NamedArg binds a wire value to a named SQL parameter. Name may carry the
// parameter prefix (":", "@" or "$") or omit it.
type NamedArg struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Stmt is a single SQL statement with its bound arguments. WantRows tells the
// server whether to return result rows; leave it false for statements executed
// only for their side effects.
type Stmt struct {
	SQL       string     `json:"sql"`
	Args      []Value    `json:"args,omitempty"`
	NamedArgs []NamedArg `json:"named_args,omitempty"`
	WantRows  bool       `json:"want_rows"`
}

// Col describes one result column. Name is nil when the server did not name
// the column. Decltype is the declared column type from the schema, when known.
type Col struct {
	Name     *string `json:"name"`
	Decltype *string `json:"decltype"`
}

// StmtResult is the server's response to one executed statement. Rows is
// column-oriented per row: each inner slice aligns with Cols.
type StmtResult struct {
	Cols             []Col     `json:"cols"`
	Rows             [][]Value `json:"rows"`
	AffectedRowCount uint64    `json:"affected_row_count"`
	LastInsertRowID  *string   `json:"last_insert_rowid"`
	RowsRead         uint64    `json:"rows_read"`
	RowsWritten      uint64    `json:"rows_written"`
	QueryDurationMS  float64   `json:"query_duration_ms"`
	ReplicationIndex *uint64   `json:"replication_index,omitempty"`
}

// LastInsertID parses the last inserted row id, when the server reported one.
func (r *StmtResult) LastInsertID() (int64, bool) {
	if r == nil || r.LastInsertRowID == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(*r.LastInsertRowID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Error is a structured failure reported by the server for a statement, a
// batch step, or a whole pipeline entry.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// BatchCond gates the execution of a batch step. Type selects the variant:
// "ok" and "error" reference an earlier step by index, "not" negates Cond,
// "and"/"or" combine Conds, and "is_autocommit" probes the connection state.
type BatchCond struct {
	Type  string      `json:"type"`
	Step  *int32      `json:"step,omitempty"`
	Cond  *BatchCond  `json:"cond,omitempty"`
	Conds []BatchCond `json:"conds,omitempty"`
}

// CondOk is true when the step at the given index executed and succeeded.
func CondOk(step int32) BatchCond {
	return BatchCond{Type: "ok", Step: &step}
}

// CondError is true when the step at the given index executed and failed.
func CondError(step int32) BatchCond {
	return BatchCond{Type: "error", Step: &step}
}

// CondNot negates a condition.
func CondNot(cond BatchCond) BatchCond {
	return BatchCond{Type: "not", Cond: &cond}
}

// CondAnd is true when every combined condition is true.
func CondAnd(conds ...BatchCond) BatchCond {
	return BatchCond{Type: "and", Conds: conds}
}

// CondOr is true when any combined condition is true.
func CondOr(conds ...BatchCond) BatchCond {
	return BatchCond{Type: "or", Conds: conds}
}

// CondIsAutocommit is true while the connection is outside an explicit
// transaction.
func CondIsAutocommit() BatchCond {
	return BatchCond{Type: "is_autocommit"}
}

// BatchStep is one statement in a batch, optionally gated by a condition.
// An unconditional step always executes.
type BatchStep struct {
	Stmt      Stmt       `json:"stmt"`
	Condition *BatchCond `json:"condition,omitempty"`
}

// Batch is an ordered list of conditional steps executed server-side in a
// single round trip.
type Batch struct {
	Steps            []BatchStep `json:"steps"`
	ReplicationIndex *uint64     `json:"replication_index,omitempty"`
}

// Add appends an unconditional step.
func (b *Batch) Add(stmt Stmt) {
	b.Steps = append(b.Steps, BatchStep{Stmt: stmt})
}

// AddConditional appends a step gated by cond.
func (b *Batch) AddConditional(stmt Stmt, cond BatchCond) {
	b.Steps = append(b.Steps, BatchStep{Stmt: stmt, Condition: &cond})
}

// BatchResult reports the outcome of every batch step. StepResults and
// StepErrors are index-aligned with the submitted steps; a step that was
// skipped by its condition has nil in both.
type BatchResult struct {
	StepResults      []*StmtResult `json:"step_results"`
	StepErrors       []*Error      `json:"step_errors"`
	ReplicationIndex *uint64       `json:"replication_index,omitempty"`
}
