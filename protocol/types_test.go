package protocol

import (
	"encoding/json"
	"testing"
)

func TestValueMarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{
			name:  "null",
			value: Null(),
			want:  `{"type":"null"}`,
		},
		{
			name:  "zero value marshals as null",
			value: Value{},
			want:  `{"type":"null"}`,
		},
		{
			name:  "text",
			value: Text("hello"),
			want:  `{"type":"text","value":"hello"}`,
		},
		{
			name:  "empty text keeps its value field",
			value: Text(""),
			want:  `{"type":"text","value":""}`,
		},
		{
			name:  "integer travels as a decimal string",
			value: Integer(9223372036854775807),
			want:  `{"type":"integer","value":"9223372036854775807"}`,
		},
		{
			name:  "float",
			value: Float(34.5),
			want:  `{"type":"float","value":34.5}`,
		},
		{
			name:  "blob",
			value: Blob([]byte("hi")),
			want:  `{"type":"blob","base64":"aGk="}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValueUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{
			name:  "null",
			input: `{"type":"null"}`,
			want:  Null(),
		},
		{
			name:  "text",
			input: `{"type":"text","value":"hello"}`,
			want:  Text("hello"),
		},
		{
			name:  "integer",
			input: `{"type":"integer","value":"42"}`,
			want:  Integer(42),
		},
		{
			name:  "float",
			input: `{"type":"float","value":34.5}`,
			want:  Float(34.5),
		},
		{
			name:  "blob",
			input: `{"type":"blob","base64":"aGk="}`,
			want:  Value{Type: TypeBlob, Base64: "aGk="},
		},
		{
			name:  "unknown tag is preserved for the decode layer",
			input: `{"type":"decimal","value":"1.5"}`,
			want:  Value{Type: "decimal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Value
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %#v, want %#v", got, tt.want)
			}
		})
	}

	t.Run("text without payload is malformed", func(t *testing.T) {
		var v Value
		if err := json.Unmarshal([]byte(`{"type":"text"}`), &v); err == nil {
			t.Fatal("Unmarshal() error = nil, want error")
		}
	})
}

func TestStmtMarshalJSON(t *testing.T) {
	stmt := Stmt{
		SQL:      "SELECT * FROM users WHERE id = ?",
		Args:     []Value{Integer(1)},
		WantRows: true,
	}

	got, err := json.Marshal(stmt)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"sql":"SELECT * FROM users WHERE id = ?","args":[{"type":"integer","value":"1"}],"want_rows":true}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	t.Run("bare statement omits arg lists", func(t *testing.T) {
		got, err := json.Marshal(Stmt{SQL: "COMMIT"})
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		want := `{"sql":"COMMIT","want_rows":false}`
		if string(got) != want {
			t.Errorf("Marshal() = %s, want %s", got, want)
		}
	})

	t.Run("named args carry their parameter names", func(t *testing.T) {
		stmt := Stmt{
			SQL:       "SELECT :a",
			NamedArgs: []NamedArg{{Name: ":a", Value: Text("x")}},
			WantRows:  true,
		}
		got, err := json.Marshal(stmt)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		want := `{"sql":"SELECT :a","named_args":[{"name":":a","value":{"type":"text","value":"x"}}],"want_rows":true}`
		if string(got) != want {
			t.Errorf("Marshal() = %s, want %s", got, want)
		}
	})
}

func TestBatchCondJSON(t *testing.T) {
	cond := CondAnd(CondOk(2), CondNot(CondIsAutocommit()))

	got, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"and","conds":[{"type":"ok","step":2},{"type":"not","cond":{"type":"is_autocommit"}}]}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestBatchSteps(t *testing.T) {
	var batch Batch
	batch.Add(Stmt{SQL: "BEGIN deferred"})
	batch.AddConditional(Stmt{SQL: "COMMIT"}, CondOk(0))

	if len(batch.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(batch.Steps))
	}
	if batch.Steps[0].Condition != nil {
		t.Error("unconditional step has a condition")
	}
	if batch.Steps[1].Condition == nil || batch.Steps[1].Condition.Type != "ok" {
		t.Errorf("conditional step condition = %+v, want ok", batch.Steps[1].Condition)
	}

	got, err := json.Marshal(batch.Steps[1])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"stmt":{"sql":"COMMIT","want_rows":false},"condition":{"type":"ok","step":0}}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestPipelineRequestMarshalJSON(t *testing.T) {
	req := PipelineRequest{
		Requests: []StreamRequest{
			ExecuteRequest(&Stmt{SQL: "SELECT 1", WantRows: true}),
			CloseRequest(),
		},
	}

	got, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"baton":null,"requests":[{"type":"execute","stmt":{"sql":"SELECT 1","want_rows":true}},{"type":"close"}]}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestPipelineResponseUnmarshalJSON(t *testing.T) {
	body := `{
		"baton": null,
		"base_url": "https://db.example.com",
		"results": [
			{
				"type": "ok",
				"response": {
					"type": "execute",
					"result": {
						"cols": [{"name": "id", "decltype": "INTEGER"}],
						"rows": [[{"type": "integer", "value": "1"}]],
						"affected_row_count": 0,
						"last_insert_rowid": null,
						"rows_read": 1,
						"rows_written": 0,
						"query_duration_ms": 0.125
					}
				}
			},
			{"type": "ok", "response": {"type": "close"}}
		]
	}`

	var resp PipelineResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if resp.Baton != nil {
		t.Errorf("Baton = %v, want nil", *resp.Baton)
	}
	if resp.BaseURL != "https://db.example.com" {
		t.Errorf("BaseURL = %q", resp.BaseURL)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(resp.Results))
	}

	first := resp.Results[0]
	if first.Type != ResultOk {
		t.Fatalf("Results[0].Type = %q, want ok", first.Type)
	}
	res := first.Response.Execute
	if res == nil {
		t.Fatal("execute result missing")
	}
	if len(res.Cols) != 1 || res.Cols[0].Name == nil || *res.Cols[0].Name != "id" {
		t.Errorf("Cols = %+v, want one column named id", res.Cols)
	}
	if res.Cols[0].Decltype == nil || *res.Cols[0].Decltype != "INTEGER" {
		t.Errorf("Decltype = %v, want INTEGER", res.Cols[0].Decltype)
	}
	if res.QueryDurationMS != 0.125 {
		t.Errorf("QueryDurationMS = %v, want 0.125", res.QueryDurationMS)
	}

	if resp.Results[1].Response.Type != RequestClose {
		t.Errorf("Results[1].Response.Type = %q, want close", resp.Results[1].Response.Type)
	}
}

func TestStreamResultErrorEntry(t *testing.T) {
	body := `{"type": "error", "error": {"message": "no such table: missing", "code": "SQLITE_ERROR"}}`

	var result StreamResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if result.Type != ResultError {
		t.Fatalf("Type = %q, want error", result.Type)
	}
	if result.Error == nil || result.Error.Code != "SQLITE_ERROR" {
		t.Fatalf("Error = %+v, want SQLITE_ERROR", result.Error)
	}
	if got := result.Error.Error(); got != "SQLITE_ERROR: no such table: missing" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStreamResponseBatchRoundTrip(t *testing.T) {
	in := StreamResponse{
		Type: RequestBatch,
		Batch: &BatchResult{
			StepResults: []*StmtResult{{AffectedRowCount: 1}, nil},
			StepErrors:  []*Error{nil, {Message: "boom"}},
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out StreamResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Type != RequestBatch || out.Batch == nil {
		t.Fatalf("round trip lost batch payload: %+v", out)
	}
	if len(out.Batch.StepResults) != 2 || out.Batch.StepResults[0].AffectedRowCount != 1 {
		t.Errorf("StepResults = %+v", out.Batch.StepResults)
	}
	if out.Batch.StepResults[1] != nil {
		t.Error("skipped step result should stay nil")
	}
	if out.Batch.StepErrors[1] == nil || out.Batch.StepErrors[1].Message != "boom" {
		t.Errorf("StepErrors = %+v", out.Batch.StepErrors)
	}
}

func TestLastInsertID(t *testing.T) {
	id := "7"
	res := &StmtResult{LastInsertRowID: &id}

	got, ok := res.LastInsertID()
	if !ok || got != 7 {
		t.Errorf("LastInsertID() = %d, %v, want 7, true", got, ok)
	}

	if _, ok := (&StmtResult{}).LastInsertID(); ok {
		t.Error("LastInsertID() reported an id for a nil rowid")
	}
}
