package client

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel. Unknown names map to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// Helper functions for creating fields
func String(key, val string) Field          { return Field{Key: key, Value: val} }
func Int(key string, val int) Field         { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field     { return Field{Key: key, Value: val} }
func Uint64(key string, val uint64) Field   { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field       { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}
func Error(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// defaultLogger emits one JSON object per line via the standard log package.
type defaultLogger struct {
	logger     *log.Logger
	minLevel   LogLevel
	baseFields []Field
}

// NewLogger creates a logger with the given minimum level writing to output.
// A nil output falls back to stderr.
func NewLogger(level string, output io.Writer) Logger {
	if output == nil {
		output = os.Stderr
	}
	return &defaultLogger{
		logger:   log.New(output, "", 0),
		minLevel: ParseLogLevel(level),
	}
}

// NewDefaultLogger creates a logger with INFO level writing to stderr.
func NewDefaultLogger() Logger {
	return NewLogger("INFO", os.Stderr)
}

func (l *defaultLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields) }
func (l *defaultLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields) }
func (l *defaultLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields) }
func (l *defaultLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields) }

func (l *defaultLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.baseFields)+len(fields))
	merged = append(merged, l.baseFields...)
	merged = append(merged, fields...)
	return &defaultLogger{
		logger:     l.logger,
		minLevel:   l.minLevel,
		baseFields: merged,
	}
}

func (l *defaultLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.minLevel {
		return
	}

	entry := make(map[string]any, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	for _, field := range l.baseFields {
		entry[field.Key] = redact(field)
	}
	for _, field := range fields {
		entry[field.Key] = redact(field)
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":"ERROR","message":"failed to marshal log","error":"%s"}`, err.Error())
		return
	}
	l.logger.Println(string(jsonBytes))
}

// sensitiveKeys are field names whose values never reach the log output
var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"auth_token":    true,
	"authtoken":     true,
	"secret":        true,
	"authorization": true,
	"api_key":       true,
	"apikey":        true,
	"auth":          true,
	"jwt":           true,
}

// redact masks values for sensitive keys.
func redact(field Field) any {
	if sensitiveKeys[strings.ToLower(field.Key)] {
		return "[REDACTED]"
	}
	return field.Value
}

// noopLogger implements Logger but does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, fields ...Field) {}
func (n *noopLogger) Info(msg string, fields ...Field)  {}
func (n *noopLogger) Warn(msg string, fields ...Field)  {}
func (n *noopLogger) Error(msg string, fields ...Field) {}
func (n *noopLogger) WithFields(fields ...Field) Logger { return n }

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
