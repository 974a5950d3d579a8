// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"fmt"
	"slices"
)

// TableSchema is the ordered list of columns of a destination table.
type TableSchema []ColumnSpec

// Catalog resolves destination table schemas. It is immutable once built.
type Catalog struct {
	schemas   map[string]TableSchema
	sensitive []string
}

func NewCatalog(cfg *Config) (*Catalog, error) {
	tables := map[string][]ColumnSpec{
		BalanceTable:      cfg.BalanceSchema,
		TransactionsTable: cfg.TransactionsSchema,
	}

	c := &Catalog{schemas: make(map[string]TableSchema, len(tables))}
	for table, columns := range tables {
		schema, err := composeSchema(cfg.CommonSchema, columns)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("schema for table %q", table), Err: err}
		}
		c.schemas[table] = schema
	}

	for _, table := range c.Tables() {
		for _, col := range c.schemas[table] {
			if col.Sensitive && !slices.Contains(c.sensitive, col.Name) {
				c.sensitive = append(c.sensitive, col.Name)
			}
		}
	}

	return c, nil
}

// Schema returns the common columns followed by the table specific ones. A
// table specific column shadows a common column with the same name.
func (c *Catalog) Schema(table string) (TableSchema, error) {
	schema, found := c.schemas[table]
	if !found {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown table %q", table)}
	}
	return schema, nil
}

// Tables returns the known destination tables, sorted.
func (c *Catalog) Tables() []string {
	tables := make([]string, 0, len(c.schemas))
	for table := range c.schemas {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	return tables
}

// SensitiveColumns returns the union of the columns flagged sensitive across
// all destination tables.
func (c *Catalog) SensitiveColumns() []string {
	return slices.Clone(c.sensitive)
}

func composeSchema(common, specific []ColumnSpec) (TableSchema, error) {
	if err := checkColumns(common); err != nil {
		return nil, err
	}
	if err := checkColumns(specific); err != nil {
		return nil, err
	}

	schema := make(TableSchema, 0, len(common)+len(specific))
	for _, col := range common {
		shadowed := slices.ContainsFunc(specific, func(s ColumnSpec) bool { return s.Name == col.Name })
		if !shadowed {
			schema = append(schema, col)
		}
	}
	return append(schema, specific...), nil
}

func checkColumns(columns []ColumnSpec) error {
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return fmt.Errorf("%w at position %d", errMissingColumnName, i)
		}
		if _, found := seen[col.Name]; found {
			return fmt.Errorf("%w: %q", errDuplicateColumn, col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

// RequiredColumns returns the names of the required columns, in schema order.
func (s TableSchema) RequiredColumns() []string {
	required := []string{}
	for _, col := range s {
		if col.Required {
			required = append(required, col.Name)
		}
	}
	return required
}
