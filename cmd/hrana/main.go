// Command hrana is a SQL shell for Hrana v3 pipeline servers such as sqld,
// libsql-server and Turso. It runs a single statement given on the command
// line, or an interactive prompt when none is given. Connections come from
// flags, the HRANA_URL / HRANA_TOKEN environment variables, or named
// profiles in a YAML config file, in that order of precedence.
//
// Usage:
//
//	hrana [flags] [sql...]
//	hrana migrate <command> [options]
//	hrana version
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	hrana "github.com/lukeed/hrana"
	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/mapper"
	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/schema"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			handleMigrate(args[1:])
			return
		case "version":
			fmt.Printf("hrana %s\n", client.Version)
			return
		case "help":
			printUsage()
			return
		}
	}
	runShell(args)
}

func printUsage() {
	printHeader("hrana " + client.Version)
	fmt.Println("SQL shell for Hrana v3 pipeline servers (sqld, libsql-server, Turso).")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hrana [flags] " + colorYellow("[sql...]"))
	fmt.Println("  hrana migrate " + colorYellow("<command>") + " [options]")
	fmt.Println("  hrana version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  " + colorGreen("-url") + "      database URL (env " + colorCyan("HRANA_URL") + ")")
	fmt.Println("  " + colorGreen("-token") + "    bearer token (env " + colorCyan("HRANA_TOKEN") + ")")
	fmt.Println("  " + colorGreen("-profile") + "  named profile from the config file")
	fmt.Println("  " + colorGreen("-mode") + "     integer decoding: number, bigint or string")
	fmt.Println("  " + colorGreen("-timeout") + "  request timeout, e.g. 10s")
	fmt.Println("  " + colorGreen("-json") + "     print rows as JSON lines")
	fmt.Println()
	fmt.Println("Without a SQL argument the shell starts an interactive prompt.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  " + colorDim("# One-shot query"))
	fmt.Println("  hrana -url http://127.0.0.1:8080 \"SELECT * FROM users\"")
	fmt.Println()
	fmt.Println("  " + colorDim("# Interactive shell against a saved profile"))
	fmt.Println("  hrana -profile prod")
	fmt.Println()
	fmt.Println("  " + colorDim("# Apply pending migrations"))
	fmt.Println("  hrana migrate up -dir ./migrations")
	fmt.Println()
	fmt.Println("Config file: " + colorCyan(configPathHint()))
}

func configPathHint() string {
	if path := defaultConfigPath(); path != "" {
		return path
	}
	return "~/.config/hrana/config.yml"
}

func runShell(args []string) {
	fs := flag.NewFlagSet("hrana", flag.ExitOnError)
	url := fs.String("url", os.Getenv("HRANA_URL"), "database URL")
	token := fs.String("token", os.Getenv("HRANA_TOKEN"), "bearer token")
	profile := fs.String("profile", "", "named profile from the config file")
	mode := fs.String("mode", "", "integer decoding: number, bigint or string")
	timeout := fs.Duration("timeout", 0, "request timeout")
	jsonOut := fs.Bool("json", false, "print rows as JSON lines")
	fs.Usage = printUsage
	fs.Parse(args)

	settings, err := resolveSettings(*url, *token, *mode, *timeout, *profile)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	opts := []hrana.Option{
		hrana.WithIntegerMode(settings.mode),
		hrana.WithLogLevel("WARN"),
	}
	if settings.token != "" {
		opts = append(opts, hrana.WithAuthToken(settings.token))
	}
	if settings.timeout > 0 {
		opts = append(opts, hrana.WithTimeout(settings.timeout))
	}

	ctx := context.Background()
	c, err := hrana.Connect(ctx, settings.url, opts...)
	if err != nil {
		printError(fmt.Sprintf("connect %s: %v", settings.url, err))
		os.Exit(1)
	}
	defer c.Close()

	sh := &shell{
		c:         c,
		mode:      settings.mode,
		jsonOut:   *jsonOut,
		sessionID: uuid.New().String(),
	}

	if rest := fs.Args(); len(rest) > 0 {
		if err := sh.run(ctx, strings.Join(rest, " ")); err != nil {
			printError(err.Error())
			os.Exit(1)
		}
		return
	}
	sh.repl(ctx)
}

type shellSettings struct {
	url     string
	token   string
	mode    protocol.IntegerMode
	timeout time.Duration
}

// errNoURL reports that no database URL was given by flag, environment or
// profile. Subcommands that can run offline branch on it.
var errNoURL = errors.New("no database URL configured")

// resolveSettings merges flag, environment and profile values. The flag
// defaults already carry HRANA_URL and HRANA_TOKEN, so flags and environment
// win; the profile only fills what is still unset.
func resolveSettings(url, token, mode string, timeout time.Duration, profileName string) (*shellSettings, error) {
	if profileName != "" || url == "" {
		p, err := lookupProfile(profileName)
		if err != nil && profileName != "" {
			return nil, err
		}
		if p != nil {
			if url == "" {
				url = p.URL
			}
			if token == "" {
				token = p.Token
			}
			if mode == "" {
				mode = p.Mode
			}
			if timeout == 0 && p.Timeout != "" {
				d, derr := time.ParseDuration(p.Timeout)
				if derr != nil {
					return nil, fmt.Errorf("profile timeout %q: %w", p.Timeout, derr)
				}
				timeout = d
			}
		}
	}

	if url == "" {
		return nil, fmt.Errorf("%w: pass -url, set HRANA_URL, or configure a profile in %s", errNoURL, configPathHint())
	}

	parsed, err := protocol.ParseIntegerMode(mode)
	if err != nil {
		return nil, err
	}

	return &shellSettings{url: url, token: token, mode: parsed, timeout: timeout}, nil
}

// lookupProfile loads the config file and picks a profile. Callers that did
// not name a profile treat any error here as "no profile configured".
func lookupProfile(name string) (*Profile, error) {
	cfg, err := loadConfig(defaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg.Profile(name)
}

type shell struct {
	c         *hrana.Client
	mode      protocol.IntegerMode
	jsonOut   bool
	sessionID string
	history   []historyEntry
}

// historyEntry records one executed statement. The fingerprint is the same
// xxhash the client writes to its debug logs, so a shell session can be
// correlated against server-side traces.
type historyEntry struct {
	fingerprint string
	sql         string
	duration    time.Duration
	failed      bool
}

func (sh *shell) run(ctx context.Context, sql string) error {
	stmt, err := client.NewStmt(sql).Build()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := sh.c.Execute(ctx, stmt)
	elapsed := time.Since(start)

	sh.history = append(sh.history, historyEntry{
		fingerprint: client.Fingerprint(sql),
		sql:         sql,
		duration:    elapsed,
		failed:      err != nil,
	})
	if err != nil {
		return err
	}
	return sh.printResult(res, elapsed)
}

func (sh *shell) printResult(res *protocol.StmtResult, elapsed time.Duration) error {
	if len(res.Cols) == 0 {
		msg := fmt.Sprintf("%d row(s) affected", res.AffectedRowCount)
		if id, ok := res.LastInsertID(); ok {
			msg += fmt.Sprintf(", last insert id %d", id)
		}
		printSuccess(msg + " " + colorDim(elapsed.Round(time.Millisecond).String()))
		return nil
	}

	rows, err := mapper.Rows(res, mapper.WithIntegerMode(sh.mode))
	if err != nil {
		return err
	}
	cols := mapper.Columns(res)

	if sh.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(cols))
		for i, col := range cols {
			line[i] = formatCell(row[col])
		}
		cells = append(cells, line)
	}
	printTable(cols, cells)
	fmt.Println(colorDim(fmt.Sprintf("%d row(s) in %s", len(rows), elapsed.Round(time.Millisecond))))
	return nil
}

// formatCell renders a decoded value for table output. Blobs print as SQLite
// hex literals so binary data stays on one line.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return fmt.Sprintf("x'%x'", val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func (sh *shell) repl(ctx context.Context) {
	fmt.Println(colorBold("hrana "+client.Version) + colorDim("  session "+sh.sessionID))
	fmt.Println(colorDim("connected to " + sh.c.BaseURL()))
	fmt.Println(colorDim(`type ".help" for shell commands`))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Print(colorCyan("hrana> "))
		} else {
			fmt.Print(colorCyan("  ...> "))
		}
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if buf.Len() == 0 {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				if sh.command(ctx, trimmed) {
					return
				}
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}
		sql := strings.TrimSpace(buf.String())
		buf.Reset()
		if err := sh.run(ctx, sql); err != nil {
			printError(err.Error())
		}
	}
}

// command executes a dot command. The returned bool reports whether the
// shell should exit.
func (sh *shell) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		sh.printHelp()
	case ".json":
		if len(fields) > 1 {
			sh.jsonOut = fields[1] == "on"
		}
		if sh.jsonOut {
			printInfo("row output: JSON lines")
		} else {
			printInfo("row output: table")
		}
	case ".tables":
		sh.showTables(ctx)
	case ".schema":
		var table string
		if len(fields) > 1 {
			table = fields[1]
		}
		sh.showSchema(ctx, table)
	case ".history":
		sh.showHistory()
	case ".metrics":
		sh.showMetrics()
	default:
		printError(fmt.Sprintf("unknown command %s; try \".help\"", fields[0]))
	}
	return false
}

func (sh *shell) printHelp() {
	fmt.Println("  " + colorGreen(".tables") + "          list user tables")
	fmt.Println("  " + colorGreen(".schema [table]") + "  print CREATE statements")
	fmt.Println("  " + colorGreen(".history") + "         statements run this session")
	fmt.Println("  " + colorGreen(".metrics") + "         transport counters")
	fmt.Println("  " + colorGreen(".json on|off") + "     toggle JSON row output")
	fmt.Println("  " + colorGreen(".quit") + "            exit the shell")
	fmt.Println()
	fmt.Println("  Statements end with " + colorYellow(";") + " and may span lines.")
}

func (sh *shell) showTables(ctx context.Context) {
	def, err := schema.Introspect(ctx, sh.c)
	if err != nil {
		printError(err.Error())
		return
	}
	if len(def.Tables) == 0 {
		printInfo("no user tables")
		return
	}
	rows := make([][]string, 0, len(def.Tables))
	for i := range def.Tables {
		table := &def.Tables[i]
		rows = append(rows, []string{
			table.Name,
			strconv.Itoa(len(table.Columns)),
			strconv.Itoa(len(table.Indexes)),
		})
	}
	printTable([]string{"Table", "Columns", "Indexes"}, rows)
}

func (sh *shell) showSchema(ctx context.Context, table string) {
	def, err := schema.Introspect(ctx, sh.c)
	if err != nil {
		printError(err.Error())
		return
	}
	printed := false
	for i := range def.Tables {
		t := &def.Tables[i]
		if table != "" && t.Name != table {
			continue
		}
		fmt.Println(schema.SerializeCreateTable(t))
		for j := range t.Indexes {
			fmt.Println(schema.SerializeCreateIndex(&t.Indexes[j], t.Name))
		}
		printed = true
	}
	if printed {
		return
	}
	if table != "" {
		printWarning("no such table: " + table)
	} else {
		printInfo("no user tables")
	}
}

func (sh *shell) showHistory() {
	if len(sh.history) == 0 {
		printInfo("no statements yet")
		return
	}
	rows := make([][]string, 0, len(sh.history))
	for _, entry := range sh.history {
		status := "ok"
		if entry.failed {
			status = "error"
		}
		rows = append(rows, []string{
			entry.fingerprint,
			entry.duration.Round(time.Millisecond).String(),
			status,
			truncateSQL(entry.sql, 60),
		})
	}
	printTable([]string{"Fingerprint", "Time", "Status", "SQL"}, rows)
}

func (sh *shell) showMetrics() {
	m := sh.c.Metrics()
	rows := [][]string{
		{"requests", strconv.FormatInt(m.TotalRequests, 10)},
		{"errors", strconv.FormatInt(m.TotalErrors, 10)},
		{"avg latency", m.AverageLatency.Round(time.Microsecond).String()},
		{"bytes sent", strconv.FormatInt(m.BytesSent, 10)},
		{"bytes received", strconv.FormatInt(m.BytesReceived, 10)},
	}
	if m.LastError != nil {
		rows = append(rows, []string{"last error", m.LastError.Error()})
	}
	printTable([]string{"Metric", "Value"}, rows)
}

// truncateSQL collapses whitespace and clips long statements for history
// display.
func truncateSQL(sql string, max int) string {
	sql = strings.Join(strings.Fields(sql), " ")
	runes := []rune(sql)
	if len(runes) <= max {
		return sql
	}
	return string(runes[:max-3]) + "..."
}
