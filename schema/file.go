package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileFormatVersion is the schema snapshot format this package reads and
// writes.
const FileFormatVersion = "1.0"

// SchemaFile is the on-disk envelope around a schema snapshot.
type SchemaFile struct {
	FormatVersion string            `yaml:"formatVersion" json:"formatVersion"`
	Schema        *SchemaDefinition `yaml:"schema" json:"schema"`
}

// WriteSchemaFile writes a schema snapshot to a YAML file.
func WriteSchemaFile(schema *SchemaDefinition, path string) error {
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	fileData := SchemaFile{
		FormatVersion: FileFormatVersion,
		Schema:        schema,
	}

	data, err := yaml.Marshal(&fileData)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// ReadSchemaFile reads and validates a schema snapshot from a YAML file.
func ReadSchemaFile(path string) (*SchemaDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var fileData SchemaFile
	if err := yaml.Unmarshal(data, &fileData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	// Files written before the envelope carried a version read as 1.0
	if fileData.FormatVersion == "" {
		fileData.FormatVersion = FileFormatVersion
	}
	if fileData.FormatVersion != FileFormatVersion {
		return nil, fmt.Errorf("unsupported schema format version: %s", fileData.FormatVersion)
	}

	if fileData.Schema == nil {
		return nil, fmt.Errorf("schema file %s has no schema", path)
	}

	return fileData.Schema, nil
}
