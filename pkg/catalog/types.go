// Package catalog defines table and column schema types shared by the
// local workspace and remote discovery paths, plus schema extraction
// with optional column statistics.
package catalog

// ColumnSchema describes one column, optionally with statistics.
type ColumnSchema struct {
	Name     string `json:"columnName"`
	DataType string `json:"dataType"`

	// MinValue and MaxValue are set for numeric columns when stats are
	// requested; empty otherwise.
	MinValue string `json:"minValue,omitempty"`
	MaxValue string `json:"maxValue,omitempty"`

	// CategoricalValues holds the distinct values of low-cardinality
	// text columns (at most 20), sorted.
	CategoricalValues []string `json:"categoricalValues,omitempty"`
}

// TableSchema describes one table. Connection is empty for tables local
// to a session workspace.
type TableSchema struct {
	Table      string         `json:"tableName"`
	Connection string         `json:"connection,omitempty"`
	Columns    []ColumnSchema `json:"columns"`
}

// TableRef names a table together with the connection it is reachable
// through, without column detail.
type TableRef struct {
	Table      string `json:"tableName"`
	Connection string `json:"connection"`
}
