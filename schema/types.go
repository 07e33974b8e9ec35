package schema

// ColumnDefinition describes a single column of a table.
type ColumnDefinition struct {
	Name       string  `yaml:"name" json:"name"`
	Type       string  `yaml:"type" json:"type"`
	NotNull    bool    `yaml:"notNull,omitempty" json:"notNull,omitempty"`
	Default    *string `yaml:"default,omitempty" json:"default,omitempty"`
	PrimaryKey bool    `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
}

// IndexDefinition describes a named index on a table. Only explicitly
// created indexes are modeled; the implicit indexes behind UNIQUE and
// PRIMARY KEY constraints belong to the table definition itself.
type IndexDefinition struct {
	Name    string   `yaml:"name" json:"name"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
}

// ForeignKeyDefinition describes a foreign key clause. From and To are
// parallel column lists to cover composite keys.
type ForeignKeyDefinition struct {
	Table    string   `yaml:"table" json:"table"`
	From     []string `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	OnDelete string   `yaml:"onDelete,omitempty" json:"onDelete,omitempty"`
	OnUpdate string   `yaml:"onUpdate,omitempty" json:"onUpdate,omitempty"`
}

// TableDefinition defines the structure of a table.
type TableDefinition struct {
	Name        string                 `yaml:"name" json:"name"`
	Columns     []ColumnDefinition     `yaml:"columns" json:"columns"`
	Indexes     []IndexDefinition      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	ForeignKeys []ForeignKeyDefinition `yaml:"foreignKeys,omitempty" json:"foreignKeys,omitempty"`
}

// SchemaDefinition represents the complete database schema.
type SchemaDefinition struct {
	Tables []TableDefinition `yaml:"tables" json:"tables"`
}

// Table looks up a table definition by name.
func (s *SchemaDefinition) Table(name string) (*TableDefinition, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// ColumnChange represents a change to a column in a table.
type ColumnChange struct {
	Type       string            `json:"type"` // "add", "remove", "modify"
	ColumnName string            `json:"columnName"`
	OldColumn  *ColumnDefinition `json:"oldColumn,omitempty"`
	NewColumn  *ColumnDefinition `json:"newColumn,omitempty"`
}

// IndexChange represents a change to an index.
type IndexChange struct {
	Type     string           `json:"type"` // "add", "remove", "modify"
	OldIndex *IndexDefinition `json:"oldIndex,omitempty"`
	NewIndex *IndexDefinition `json:"newIndex,omitempty"`
}

// ForeignKeyChange represents a change to a foreign key.
type ForeignKeyChange struct {
	Type   string                `json:"type"` // "add", "remove"
	OldKey *ForeignKeyDefinition `json:"oldKey,omitempty"`
	NewKey *ForeignKeyDefinition `json:"newKey,omitempty"`
}

// TableChange represents a change to a table.
type TableChange struct {
	Type              string             `json:"type"` // "create", "drop", "modify"
	TableName         string             `json:"tableName"`
	OldDefinition     *TableDefinition   `json:"oldDefinition,omitempty"`
	NewDefinition     *TableDefinition   `json:"newDefinition,omitempty"`
	ColumnChanges     []ColumnChange     `json:"columnChanges,omitempty"`
	IndexChanges      []IndexChange      `json:"indexChanges,omitempty"`
	ForeignKeyChanges []ForeignKeyChange `json:"foreignKeyChanges,omitempty"`
}

// SchemaDiff represents the differences between two schemas.
type SchemaDiff struct {
	TableChanges []TableChange `json:"tableChanges"`
	HasChanges   bool          `json:"hasChanges"`
}
