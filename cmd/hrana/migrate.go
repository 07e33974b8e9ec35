package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	hrana "github.com/lukeed/hrana"
	"github.com/lukeed/hrana/migration"
	"github.com/lukeed/hrana/schema"
)

func handleMigrate(args []string) {
	if len(args) == 0 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]

	switch subcommand {
	case "init":
		handleMigrateInit(args[1:])
	case "generate":
		handleMigrateGenerate(args[1:])
	case "up":
		handleMigrateUp(args[1:])
	case "down":
		handleMigrateDown(args[1:])
	case "status":
		handleMigrateStatus(args[1:])
	case "validate":
		handleMigrateValidate(args[1:])
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		printError(fmt.Sprintf("Unknown migrate subcommand: %s", subcommand))
		printMigrateUsage()
		os.Exit(1)
	}
}

func printMigrateUsage() {
	printHeader("Migration Commands")
	fmt.Println("Usage:")
	fmt.Println("  hrana migrate " + colorYellow("<command>") + " [options]\n")
	fmt.Println("Commands:")
	fmt.Println("  " + colorGreen("init") + "       Initialize migration directory and sample schema")
	fmt.Println("  " + colorGreen("generate") + "   Generate a migration from schema snapshot changes")
	fmt.Println("  " + colorGreen("up") + "         Apply pending migrations")
	fmt.Println("  " + colorGreen("down") + "       Roll back the latest applied migration")
	fmt.Println("  " + colorGreen("status") + "     Show migration status")
	fmt.Println("  " + colorGreen("validate") + "   Validate migration files")
	fmt.Println("\nExamples:")
	fmt.Println("  " + colorDim("# Initialize project"))
	fmt.Println("  hrana migrate init")
	fmt.Println()
	fmt.Println("  " + colorDim("# Create a migration from schema.yml changes"))
	fmt.Println("  hrana migrate generate -name add_users_table")
	fmt.Println()
	fmt.Println("  " + colorDim("# Apply migrations (with preview)"))
	fmt.Println("  hrana migrate up -dry-run")
	fmt.Println("  hrana migrate up")
	fmt.Println()
	fmt.Println("  " + colorDim("# Check status"))
	fmt.Println("  hrana migrate status")
}

// connOpts holds the connection flags shared by the migrate subcommands that
// talk to a database.
type connOpts struct {
	url     *string
	token   *string
	profile *string
	timeout *time.Duration
}

func connFlags(fs *flag.FlagSet) *connOpts {
	return &connOpts{
		url:     fs.String("url", os.Getenv("HRANA_URL"), "database URL"),
		token:   fs.String("token", os.Getenv("HRANA_TOKEN"), "bearer token"),
		profile: fs.String("profile", "", "named profile from the config file"),
		timeout: fs.Duration("timeout", 0, "request timeout"),
	}
}

func (o *connOpts) connect(ctx context.Context) (*hrana.Client, error) {
	settings, err := resolveSettings(*o.url, *o.token, "", *o.timeout, *o.profile)
	if err != nil {
		return nil, err
	}
	opts := []hrana.Option{hrana.WithLogLevel("WARN")}
	if settings.token != "" {
		opts = append(opts, hrana.WithAuthToken(settings.token))
	}
	if settings.timeout > 0 {
		opts = append(opts, hrana.WithTimeout(settings.timeout))
	}
	return hrana.Connect(ctx, settings.url, opts...)
}

// handleMigrateInit initializes a new migration project
func handleMigrateInit(args []string) {
	fs := flag.NewFlagSet("migrate init", flag.ExitOnError)
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	schemaFile := fs.String("schema", defaultSchemaFile(), "schema snapshot path")
	force := fs.Bool("force", false, "overwrite existing files")
	fs.Parse(args)

	printHeader("Initialize Migration Project")

	if _, err := os.Stat(*dir); err == nil && !*force {
		printError(fmt.Sprintf("Directory %s already exists. Use -force to overwrite.", *dir))
		os.Exit(1)
	}

	if err := migration.InitMigrationDirectory(*dir); err != nil {
		printError(fmt.Sprintf("Failed to create directory: %v", err))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Created migration directory: %s", colorCyan(*dir)))

	createdAt := "CURRENT_TIMESTAMP"
	sample := &schema.SchemaDefinition{
		Tables: []schema.TableDefinition{
			{
				Name: "users",
				Columns: []schema.ColumnDefinition{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "email", Type: "TEXT", NotNull: true},
					{Name: "name", Type: "TEXT", NotNull: true},
					{Name: "created_at", Type: "TEXT", NotNull: true, Default: &createdAt},
				},
				Indexes: []schema.IndexDefinition{
					{Name: "idx_users_email", Unique: true, Columns: []string{"email"}},
				},
			},
		},
	}

	if err := os.MkdirAll(filepath.Dir(*schemaFile), 0755); err != nil {
		printError(fmt.Sprintf("Failed to create schema directory: %v", err))
		os.Exit(1)
	}
	if err := schema.WriteSchemaFile(sample, *schemaFile); err != nil {
		printError(fmt.Sprintf("Failed to write schema snapshot: %v", err))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Created sample schema: %s", colorCyan(*schemaFile)))

	readmePath := filepath.Join(*dir, "README.md")
	readme := `# Database Migrations

This directory contains versioned migrations for a Hrana pipeline database.

## Workflow

1. Edit your schema snapshot in ` + "`schema.yml`" + `
2. Generate a migration: ` + "`hrana migrate generate -name <description>`" + `
3. Review the generated migration file
4. Apply migrations: ` + "`hrana migrate up`" + `

## Commands

- ` + "`hrana migrate status`" + ` - View migration status
- ` + "`hrana migrate up -dry-run`" + ` - Preview changes
- ` + "`hrana migrate down`" + ` - Roll back the latest migration
- ` + "`hrana migrate validate`" + ` - Validate migration files
`
	if err := os.WriteFile(readmePath, []byte(readme), 0644); err != nil {
		printWarning(fmt.Sprintf("Failed to create README: %v", err))
	} else {
		printSuccess(fmt.Sprintf("Created README: %s", colorCyan(readmePath)))
	}

	fmt.Println()
	printInfo("Next steps:")
	fmt.Println("  1. Edit " + colorCyan(*schemaFile) + " to define your schema")
	fmt.Println("  2. Run " + colorCyan("hrana migrate generate -name initial_schema"))
	fmt.Println("  3. Run " + colorCyan("hrana migrate up") + " to apply migrations")
}

// handleMigrateGenerate diffs the schema snapshot against the live database
// and writes the DDL as a new migration file.
func handleMigrateGenerate(args []string) {
	fs := flag.NewFlagSet("migrate generate", flag.ExitOnError)
	name := fs.String("name", "", "migration name (required)")
	schemaFile := fs.String("schema", defaultSchemaFile(), "schema snapshot path")
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	offline := fs.Bool("offline", false, "diff against an empty schema instead of the live database")
	conn := connFlags(fs)
	fs.Parse(args)

	if *name == "" {
		printError("Migration name is required")
		fmt.Println("\nUsage: hrana migrate generate -name <name>")
		os.Exit(1)
	}

	printHeader(fmt.Sprintf("Generate Migration: %s", *name))

	local, err := schema.ReadSchemaFile(*schemaFile)
	if err != nil {
		printError(fmt.Sprintf("Failed to read schema snapshot: %v", err))
		printInfo("Run " + colorCyan("hrana migrate init") + " to create one")
		os.Exit(1)
	}
	printInfo(fmt.Sprintf("Found %d table(s) in %s", len(local.Tables), *schemaFile))

	live := &schema.SchemaDefinition{}
	ctx := context.Background()
	if !*offline {
		c, err := conn.connect(ctx)
		if err != nil {
			printError(fmt.Sprintf("Failed to connect: %v", err))
			printInfo("Use -offline to generate a full CREATE migration without a database")
			os.Exit(1)
		}
		defer c.Close()

		live, err = schema.Introspect(ctx, c)
		if err != nil {
			printError(fmt.Sprintf("Failed to introspect database: %v", err))
			os.Exit(1)
		}
		printInfo(fmt.Sprintf("Live database has %d table(s)", len(live.Tables)))
	}

	diff := schema.CompareSchemas(local, live)
	if !diff.HasChanges {
		printSuccess("Schema is up to date; nothing to generate")
		return
	}

	up, err := schema.GenerateDDL(diff)
	if err != nil {
		printError(fmt.Sprintf("Cannot express schema change as DDL: %v", err))
		printInfo("Write this migration by hand (copy data into a rebuilt table)")
		os.Exit(1)
	}

	down, err := migration.NewRollbackGenerator().GenerateDown(up)
	if err != nil {
		printWarning(fmt.Sprintf("Could not auto-generate down commands: %v", err))
		down = nil
	}

	mig := &migration.Migration{
		ID:        nextMigrationID(*dir, *name),
		Name:      *name,
		Up:        up,
		Down:      down,
		Timestamp: time.Now().UTC(),
	}

	filePath, err := migration.WriteMigrationFile(mig, *dir)
	if err != nil {
		printError(fmt.Sprintf("Failed to write migration file: %v", err))
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Created migration: %s", colorCyan(filepath.Base(filePath))))
	fmt.Println()
	printInfo("Migration preview:")
	fmt.Println(colorDim(fmt.Sprintf("  UP statements:   %d", len(up))))
	fmt.Println(colorDim(fmt.Sprintf("  DOWN statements: %d", len(down))))
	fmt.Println()
	printInfo("Next steps:")
	fmt.Println("  1. Review the migration file: " + colorCyan(filePath))
	fmt.Println("  2. Run " + colorCyan("hrana migrate up -dry-run") + " to preview")
	fmt.Println("  3. Run " + colorCyan("hrana migrate up") + " to apply")
}

// handleMigrateUp applies pending migrations
func handleMigrateUp(args []string) {
	fs := flag.NewFlagSet("migrate up", flag.ExitOnError)
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	dryRun := fs.Bool("dry-run", false, "show what would be applied without executing")
	steps := fs.Int("steps", 0, "number of migrations to apply (0 = all)")
	force := fs.Bool("force", false, "skip confirmation prompt")
	lockTimeout := fs.Duration("lock-timeout", 30*time.Second, "advisory lock timeout (0 disables locking)")
	conn := connFlags(fs)
	fs.Parse(args)

	printHeader("Apply Migrations")

	migrations, err := migration.ListMigrationFiles(*dir)
	if err != nil {
		printError(fmt.Sprintf("Failed to list migrations: %v", err))
		os.Exit(1)
	}

	if len(migrations) == 0 {
		printWarning("No migration files found in " + *dir)
		printInfo("Run " + colorCyan("hrana migrate generate") + " to create a migration")
		return
	}

	printInfo(fmt.Sprintf("Found %d migration(s)", len(migrations)))

	ctx := context.Background()
	c, err := conn.connect(ctx)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}
	defer c.Close()

	mc := migration.NewClient(c)
	if err := mc.LoadHistory(ctx); err != nil {
		printError(fmt.Sprintf("Failed to load migration history: %v", err))
		os.Exit(1)
	}
	if *lockTimeout > 0 {
		if err := mc.WithLocking(*lockTimeout); err != nil {
			printError(fmt.Sprintf("Failed to configure locking: %v", err))
			os.Exit(1)
		}
	}

	plan, err := mc.Plan(migrations)
	if err != nil {
		printError(fmt.Sprintf("Failed to create migration plan: %v", err))
		os.Exit(1)
	}

	if len(plan.Migrations) == 0 {
		printSuccess("All migrations are up to date!")
		return
	}

	if *steps > 0 && len(plan.Migrations) > *steps {
		plan.Migrations = plan.Migrations[:*steps]
		plan.TotalCount = *steps
	}

	fmt.Println()
	printInfo(fmt.Sprintf("Pending migrations: %d", plan.TotalCount))
	for i, mig := range plan.Migrations {
		fmt.Printf("  %d. %s [%s]\n", i+1, colorBold(mig.Name), colorYellow("pending"))
		fmt.Printf("     %s (%d up, %d down)\n", colorDim(mig.ID), len(mig.Up), len(mig.Down))
	}

	if *dryRun {
		fmt.Println()
		printInfo(colorYellow("DRY RUN") + " - no changes will be applied")
		return
	}

	if !*force {
		fmt.Println()
		if !promptConfirm(fmt.Sprintf("Apply %d migration(s)?", plan.TotalCount)) {
			printInfo("Cancelled")
			return
		}
	}

	fmt.Println()
	printHeader("Applying Migrations")

	plan.DryRun = false
	if err := mc.Apply(ctx, plan); err != nil {
		printError(fmt.Sprintf("Migration failed: %v", err))
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Applied %d migration(s) successfully!", plan.TotalCount))
}

// handleMigrateDown rolls back an applied migration
func handleMigrateDown(args []string) {
	fs := flag.NewFlagSet("migrate down", flag.ExitOnError)
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	id := fs.String("id", "", "migration to roll back (default: latest applied)")
	dryRun := fs.Bool("dry-run", false, "show what would be rolled back without executing")
	force := fs.Bool("force", false, "skip confirmation prompt")
	conn := connFlags(fs)
	fs.Parse(args)

	printHeader("Rollback Migration")

	migrations, err := migration.ListMigrationFiles(*dir)
	if err != nil {
		printError(fmt.Sprintf("Failed to list migrations: %v", err))
		os.Exit(1)
	}

	if len(migrations) == 0 {
		printWarning("No migrations found")
		return
	}

	ctx := context.Background()
	c, err := conn.connect(ctx)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}
	defer c.Close()

	mc := migration.NewClient(c)
	if err := mc.LoadHistory(ctx); err != nil {
		printError(fmt.Sprintf("Failed to load migration history: %v", err))
		os.Exit(1)
	}

	targetID := *id
	if targetID == "" {
		applied := mc.GetAppliedMigrations()
		if len(applied) == 0 {
			printWarning("No applied migrations to roll back")
			return
		}
		targetID = applied[len(applied)-1]
	}

	var target *migration.Migration
	for _, mig := range migrations {
		if mig.ID == targetID {
			target = mig
			break
		}
	}
	if target == nil {
		printError(fmt.Sprintf("Migration %s has no file in %s", targetID, *dir))
		os.Exit(1)
	}

	printInfo(fmt.Sprintf("Rolling back: %s", colorBold(target.Name)))
	fmt.Println(colorDim("  ID: " + target.ID))
	if len(target.Down) > 0 {
		fmt.Println(colorDim(fmt.Sprintf("  DOWN statements: %d", len(target.Down))))
	} else if mc.CanAutoRollback(target) {
		fmt.Println(colorDim("  DOWN statements: auto-generated"))
	} else {
		printError("Migration has no down statements and cannot be auto-reversed")
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println()
		printInfo(colorYellow("DRY RUN") + " - no changes will be applied")
		return
	}

	if !*force {
		fmt.Println()
		if !promptConfirm("Rollback this migration?") {
			printInfo("Cancelled")
			return
		}
	}

	fmt.Println()
	printHeader("Rolling Back")

	if err := mc.Rollback(ctx, target.ID, migrations); err != nil {
		printError(fmt.Sprintf("Rollback failed: %v", err))
		os.Exit(1)
	}

	printSuccess("Migration rolled back successfully!")
}

// handleMigrateStatus shows the status of migrations
func handleMigrateStatus(args []string) {
	fs := flag.NewFlagSet("migrate status", flag.ExitOnError)
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	conn := connFlags(fs)
	fs.Parse(args)

	printHeader("Migration Status")

	migrations, err := migration.ListMigrationFiles(*dir)
	if err != nil {
		printError(fmt.Sprintf("Failed to list migrations: %v", err))
		os.Exit(1)
	}

	if len(migrations) == 0 {
		printWarning("No migration files found in " + *dir)
		printInfo("Run " + colorCyan("hrana migrate generate") + " to create a migration")
		return
	}

	ctx := context.Background()
	var mc *migration.Client
	c, err := conn.connect(ctx)
	switch {
	case err == nil:
		defer c.Close()
		mc = migration.NewClient(c)
		if err := mc.LoadHistory(ctx); err != nil {
			printError(fmt.Sprintf("Failed to load migration history: %v", err))
			os.Exit(1)
		}
	case errors.Is(err, errNoURL):
		// No connection configured; show file status only.
	default:
		printError(fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}

	fmt.Println()
	applied := 0
	rows := make([][]string, 0, len(migrations))
	for _, mig := range migrations {
		status := string(migration.Pending)
		appliedAt := ""
		if mc != nil {
			if record, ok := mc.GetMigrationRecord(mig.ID); ok {
				status = string(record.Status)
				if record.Status == migration.Applied {
					applied++
					appliedAt = record.AppliedAt.Format("2006-01-02 15:04")
				}
			}
		}
		rows = append(rows, []string{
			mig.ID,
			mig.Name,
			status,
			appliedAt,
		})
	}

	printTable(
		[]string{"ID", "Name", "Status", "Applied At"},
		rows,
	)

	fmt.Println()
	printInfo(fmt.Sprintf("Total migrations: %d", len(migrations)))

	if mc != nil {
		printInfo(fmt.Sprintf("Applied: %d, pending: %d", applied, len(migrations)-applied))
	} else {
		printInfo("Not connected - showing file status only")
		fmt.Println(colorDim("  Use -url or a profile to check applied migrations"))
	}
}

// handleMigrateValidate validates migration files
func handleMigrateValidate(args []string) {
	fs := flag.NewFlagSet("migrate validate", flag.ExitOnError)
	dir := fs.String("dir", defaultMigrationsDir(), "migration directory")
	conn := connFlags(fs)
	fs.Parse(args)

	printHeader("Validate Migrations")

	migrations, err := migration.ListMigrationFiles(*dir)
	if err != nil {
		printError(fmt.Sprintf("Failed to list migrations: %v", err))
		os.Exit(1)
	}

	if len(migrations) == 0 {
		printWarning("No migration files found")
		return
	}

	printInfo(fmt.Sprintf("Validating %d migration(s)...", len(migrations)))
	fmt.Println()

	// Against a live database the validator also checks checksums of the
	// applied migrations; offline it checks structure and ordering only.
	ctx := context.Background()
	var validation *migration.ValidationResult
	c, err := conn.connect(ctx)
	switch {
	case err == nil:
		defer c.Close()
		mc := migration.NewClient(c)
		if err := mc.LoadHistory(ctx); err != nil {
			printError(fmt.Sprintf("Failed to load migration history: %v", err))
			os.Exit(1)
		}
		validation = mc.Validate(migrations)
	case errors.Is(err, errNoURL):
		validator := migration.NewMigrationValidator(migration.NewMigrationHistory())
		validation = validator.Validate(migrations)
	default:
		printError(fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}

	if validation.Valid {
		printSuccess("All migrations are valid!")
		if len(validation.AppliedMigrations) > 0 || len(validation.PendingMigrations) > 0 {
			fmt.Println(colorDim(fmt.Sprintf("  applied: %d, pending: %d",
				len(validation.AppliedMigrations), len(validation.PendingMigrations))))
		}
		return
	}

	printError("Validation failed!")
	fmt.Println()
	for _, conflict := range validation.Conflicts {
		fmt.Println(colorRed("✗") + " " + conflict.Message)
	}

	os.Exit(1)
}

// Helper functions

func defaultMigrationsDir() string {
	if dir := os.Getenv("HRANA_MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return "./migrations"
}

func defaultSchemaFile() string {
	if file := os.Getenv("HRANA_SCHEMA_FILE"); file != "" {
		return file
	}
	return "./schema.yml"
}

func promptConfirm(message string) bool {
	fmt.Printf("%s [y/N]: ", message)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// nextMigrationID numbers the new migration after the highest numeric prefix
// already present in dir, so IDs keep sorting in application order.
func nextMigrationID(dir, name string) string {
	next := 1
	if existing, err := migration.ListMigrationFiles(dir); err == nil {
		for _, mig := range existing {
			if i := strings.IndexByte(mig.ID, '_'); i > 0 {
				if n, err := strconv.Atoi(mig.ID[:i]); err == nil && n >= next {
					next = n + 1
				}
			}
		}
	}
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "-", "_")
	return fmt.Sprintf("%04d_%s", next, slug)
}
