// Package schema loads star schema and aggregate table declarations from YAML.
package schema

// SupportedAPIVersion is the only accepted apiVersion.
const SupportedAPIVersion = "aggnav/v1"

// KindSchema is the document kind for a schema file.
const KindSchema = "Schema"

// Document is the top-level schema file.
type Document struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       SchemaSpec `yaml:"spec"`
}

// ObjectMeta holds the schema name.
type ObjectMeta struct {
	Name string `yaml:"name"`
}

// SchemaSpec lists the stars of a schema.
type SchemaSpec struct {
	Stars []StarSpec `yaml:"stars"`
}

// StarSpec declares one fact table with its dimensions, measures and aggregates.
type StarSpec struct {
	Name       string          `yaml:"name"`
	Fact       string          `yaml:"fact"`
	Tables     []TableSpec     `yaml:"tables"`
	Dimensions []DimensionSpec `yaml:"dimensions,omitempty"`
	Measures   []MeasureSpec   `yaml:"measures"`
	Aggregates []AggregateSpec `yaml:"aggregates,omitempty"`
	// Exclude removes aggregates by name.
	Exclude []string `yaml:"exclude,omitempty"`
}

// TableSpec declares a table. Dimension tables name their parent and join keys.
type TableSpec struct {
	Name      string       `yaml:"name"`
	Parent    string       `yaml:"parent,omitempty"`
	ParentKey string       `yaml:"parentKey,omitempty"`
	Key       string       `yaml:"key,omitempty"`
	Columns   []ColumnSpec `yaml:"columns"`
}

// ColumnSpec declares a column. Expression makes it a key expression.
type ColumnSpec struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type,omitempty"`
	Expression string `yaml:"expression,omitempty"`
}

// DimensionSpec names levels for reference as Dimension.Level.
type DimensionSpec struct {
	Name   string      `yaml:"name"`
	Levels []LevelSpec `yaml:"levels"`
}

// LevelSpec binds a level name to a column.
type LevelSpec struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// MeasureSpec declares a measure.
type MeasureSpec struct {
	Name       string `yaml:"name"`
	Table      string `yaml:"table,omitempty"`
	Column     string `yaml:"column"`
	Aggregator string `yaml:"aggregator"`
}

// AggregateSpec declares an aggregate table.
type AggregateSpec struct {
	Name           string           `yaml:"name"`
	ApproxRowCount int64            `yaml:"approxRowCount,omitempty"`
	FactCount      string           `yaml:"factCount,omitempty"`
	IgnoreColumns  []string         `yaml:"ignoreColumns,omitempty"`
	Columns        []string         `yaml:"columns,omitempty"`
	Measures       []AggMeasureSpec `yaml:"measures"`
	Levels         []AggLevelSpec   `yaml:"levels"`
}

// AggMeasureSpec maps a measure to an aggregate column.
type AggMeasureSpec struct {
	Measure string `yaml:"measure"`
	Column  string `yaml:"column"`
	Rollup  string `yaml:"rollup,omitempty"`
}

// AggLevelSpec maps a star column to an aggregate column. Collapsed defaults to true.
type AggLevelSpec struct {
	Table     string `yaml:"table"`
	Column    string `yaml:"column"`
	AggColumn string `yaml:"aggColumn,omitempty"`
	Collapsed *bool  `yaml:"collapsed,omitempty"`
}
