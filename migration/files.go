package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileFormatVersion is the migration file format this package reads and
// writes.
const FileFormatVersion = "1.0"

// MigrationFile is the on-disk envelope around a migration.
type MigrationFile struct {
	FormatVersion string     `yaml:"formatVersion" json:"formatVersion"`
	Migration     *Migration `yaml:"migration" json:"migration"`
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// WriteMigrationFile writes a migration to a timestamped YAML file and
// returns its path. Files are created with 0644 permissions.
func WriteMigrationFile(migration *Migration, dir string) (string, error) {
	if migration == nil {
		return "", fmt.Errorf("migration cannot be nil")
	}

	if dir == "" {
		return "", fmt.Errorf("directory path cannot be empty")
	}

	if err := InitMigrationDirectory(dir); err != nil {
		return "", fmt.Errorf("failed to initialize directory: %w", err)
	}

	// Timestamp prefix keeps directory listings in application order
	timestamp := migration.Timestamp.Format("20060102150405")
	sanitized := filenameSanitizer.ReplaceAllString(migration.ID, "_")
	filename := fmt.Sprintf("%s_%s.yaml", timestamp, sanitized)
	filePath := filepath.Join(dir, filename)

	fileData := MigrationFile{
		FormatVersion: FileFormatVersion,
		Migration:     migration,
	}

	data, err := yaml.Marshal(&fileData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal migration: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filePath, nil
}

// ReadMigrationFile reads and validates a migration from a YAML file.
func ReadMigrationFile(path string) (*Migration, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var fileData MigrationFile
	if err := yaml.Unmarshal(data, &fileData); err != nil {
		return nil, ErrInvalidMigrationFile(filepath.Base(path), err)
	}

	// Files written before the envelope carried a version read as 1.0
	if fileData.FormatVersion == "" {
		fileData.FormatVersion = FileFormatVersion
	}

	if fileData.FormatVersion != FileFormatVersion {
		return nil, ErrInvalidMigrationFile(filepath.Base(path),
			fmt.Errorf("unsupported migration format version: %s", fileData.FormatVersion))
	}

	migration := fileData.Migration
	if migration == nil {
		return nil, ErrInvalidMigrationFile(filepath.Base(path),
			fmt.Errorf("migration data is missing"))
	}

	if migration.ID == "" {
		return nil, ErrInvalidMigrationFile(filepath.Base(path),
			fmt.Errorf("migration has no id"))
	}

	return migration, nil
}

// ListMigrationFiles scans a directory and returns migrations sorted by
// timestamp. Unreadable files are skipped with a warning so one bad file
// does not hide the rest.
func ListMigrationFiles(dir string) ([]*Migration, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory path cannot be empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Migration{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		migration, err := ReadMigrationFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read migration file %s: %v\n", entry.Name(), err)
			continue
		}

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		if migrations[i].Timestamp.Equal(migrations[j].Timestamp) {
			return migrations[i].ID < migrations[j].ID
		}
		return migrations[i].Timestamp.Before(migrations[j].Timestamp)
	})

	return migrations, nil
}

// InitMigrationDirectory creates a migration directory if it doesn't exist.
// Warns if the directory has world-writable permissions.
func InitMigrationDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode().Perm()
	if mode&0002 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: migration directory %s has world-writable permissions (%s)\n", dir, mode)
	}

	return nil
}
