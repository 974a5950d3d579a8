// SPDX-License-Identifier: Apache-2.0

// Package rows defines the flat destination record produced from a
// statement and consumed by validation, encryption and loading.
package rows

import (
	"maps"
	"slices"
)

// Row is a single destination record. Table is the logical destination
// table and is never part of the loaded record.
type Row struct {
	Table  string
	Values map[string]any

	// keyHint identifies the customer whose key encrypts the row. It is
	// consumed by the encryptor and never serialised.
	keyHint string
}

func New(table, keyHint string) *Row {
	return &Row{
		Table:   table,
		Values:  map[string]any{},
		keyHint: keyHint,
	}
}

// Set assigns the column value.
func (r *Row) Set(column string, value any) {
	r.Values[column] = value
}

// Get returns the column value and whether the column is set.
func (r *Row) Get(column string) (any, bool) {
	v, found := r.Values[column]
	return v, found
}

// IsEmpty returns true if the column is absent, nil or an empty string.
func (r *Row) IsEmpty(column string) bool {
	v, found := r.Values[column]
	if !found || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// SetDefault assigns the value only if the column is absent or nil.
func (r *Row) SetDefault(column string, value any) {
	if v, found := r.Values[column]; found && v != nil {
		return
	}
	r.Values[column] = value
}

// KeyHint returns the customer key hint, empty once consumed.
func (r *Row) KeyHint() string {
	return r.keyHint
}

// ConsumeKeyHint returns the key hint and removes it from the row.
func (r *Row) ConsumeKeyHint() string {
	hint := r.keyHint
	r.keyHint = ""
	return hint
}

// Record returns a copy of the row values, ready to be handed to a loader.
func (r *Row) Record() map[string]any {
	return maps.Clone(r.Values)
}

// Columns returns the set column names, sorted.
func (r *Row) Columns() []string {
	return slices.Sorted(maps.Keys(r.Values))
}

// CountByTable returns the number of rows per logical table.
func CountByTable(rs []*Row) map[string]int {
	counts := map[string]int{}
	for _, r := range rs {
		counts[r.Table]++
	}
	return counts
}
