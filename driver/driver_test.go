package driver

import (
	"database/sql"
	gosqldriver "database/sql/driver"
	"errors"
	"testing"

	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/protocol"
)

func TestClientFromDSN(t *testing.T) {
	c, err := clientFromDSN("http://db.example.com:8080")
	if err != nil {
		t.Fatalf("clientFromDSN() error: %v", err)
	}
	defer c.Close()

	if got := c.BaseURL(); got != "http://db.example.com:8080" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://db.example.com:8080")
	}
}

func TestClientFromDSNParams(t *testing.T) {
	c, err := clientFromDSN("https://db.example.com?authToken=tok&timeout=5s")
	if err != nil {
		t.Fatalf("clientFromDSN() error: %v", err)
	}
	defer c.Close()

	if got := c.BaseURL(); got != "https://db.example.com" {
		t.Errorf("BaseURL() = %q, want the DSN without its params", got)
	}
}

func TestClientFromDSNErrors(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"bad timeout", "http://db.example.com?timeout=soon"},
		{"unknown param", "http://db.example.com?mode=fast"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := clientFromDSN(tt.dsn); err == nil {
				t.Errorf("clientFromDSN(%q) expected error, got nil", tt.dsn)
			}
		})
	}
}

func TestClientFromDSNEmptyURL(t *testing.T) {
	_, err := clientFromDSN("")

	var cfgErr *client.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Code != "E_CONFIG_URL" {
		t.Errorf("Code = %q, want E_CONFIG_URL", cfgErr.Code)
	}
}

func TestTxModeMapping(t *testing.T) {
	tests := []struct {
		name    string
		opts    gosqldriver.TxOptions
		want    client.TxMode
		wantErr bool
	}{
		{"default", gosqldriver.TxOptions{}, client.TxDeferred, false},
		{"serializable", gosqldriver.TxOptions{Isolation: gosqldriver.IsolationLevel(sql.LevelSerializable)}, client.TxImmediate, false},
		{"read only", gosqldriver.TxOptions{ReadOnly: true}, client.TxReadOnly, false},
		{"read only wins", gosqldriver.TxOptions{ReadOnly: true, Isolation: gosqldriver.IsolationLevel(sql.LevelSerializable)}, client.TxReadOnly, false},
		{"unsupported", gosqldriver.TxOptions{Isolation: gosqldriver.IsolationLevel(sql.LevelLinearizable)}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := txMode(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("txMode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("txMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToDriverValue(t *testing.T) {
	tests := []struct {
		name  string
		input protocol.Value
		want  gosqldriver.Value
	}{
		{"null", protocol.Null(), nil},
		{"text", protocol.Text("hello"), "hello"},
		{"integer", protocol.Integer(42), int64(42)},
		{"large integer", protocol.Integer(9007199254740993), int64(9007199254740993)},
		{"float", protocol.Float(3.5), float64(3.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toDriverValue(tt.input)
			if err != nil {
				t.Fatalf("toDriverValue() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("toDriverValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestToDriverValueBlob(t *testing.T) {
	got, err := toDriverValue(protocol.Blob([]byte{0x01, 0x02}))
	if err != nil {
		t.Fatalf("toDriverValue() error: %v", err)
	}
	b, ok := got.([]byte)
	if !ok || len(b) != 2 || b[0] != 0x01 || b[1] != 0x02 {
		t.Errorf("toDriverValue() = %v, want the decoded bytes", got)
	}
}

func TestToDriverValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		input protocol.Value
	}{
		{"malformed integer", protocol.Value{Type: protocol.TypeInteger, Text: "abc"}},
		{"malformed blob", protocol.Value{Type: protocol.TypeBlob, Base64: "!!!"}},
		{"unknown type", protocol.Value{Type: "decimal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toDriverValue(tt.input); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestResultFrom(t *testing.T) {
	id := "42"
	res := resultFrom(&protocol.StmtResult{AffectedRowCount: 3, LastInsertRowID: &id})

	if got, _ := res.RowsAffected(); got != 3 {
		t.Errorf("RowsAffected() = %d, want 3", got)
	}
	if got, _ := res.LastInsertId(); got != 42 {
		t.Errorf("LastInsertId() = %d, want 42", got)
	}
}

func TestBufferedResult(t *testing.T) {
	var res bufferedResult

	if _, err := res.RowsAffected(); err == nil {
		t.Error("RowsAffected() expected error before commit")
	}
	if _, err := res.LastInsertId(); err == nil {
		t.Error("LastInsertId() expected error before commit")
	}
}

func TestBuildStmt(t *testing.T) {
	stmt, err := buildStmt("SELECT * FROM t WHERE id = ? AND name = :name", []gosqldriver.NamedValue{
		{Ordinal: 1, Value: int64(7)},
		{Name: "name", Ordinal: 2, Value: "alice"},
	}, true)
	if err != nil {
		t.Fatalf("buildStmt() error: %v", err)
	}

	if !stmt.WantRows {
		t.Error("expected WantRows to be set")
	}
	if len(stmt.Args) != 1 || stmt.Args[0].Text != "7" {
		t.Errorf("Args = %+v, want one integer 7", stmt.Args)
	}
	if len(stmt.NamedArgs) != 1 || stmt.NamedArgs[0].Name != "name" {
		t.Errorf("NamedArgs = %+v, want one named arg", stmt.NamedArgs)
	}
}

func TestBuildStmtUnsupportedArg(t *testing.T) {
	_, err := buildStmt("SELECT ?", []gosqldriver.NamedValue{
		{Ordinal: 1, Value: make(chan int)},
	}, true)
	if err == nil {
		t.Fatal("expected error for unsupported bind type")
	}
}
