// SPDX-License-Identifier: Apache-2.0

// Package validator checks produced rows against the required columns of
// their destination table schema.
package validator

import (
	"fmt"
	"strings"

	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/rows"
)

// SchemaValidationError reports the first row missing required values. Index
// is the row position in the produced sequence.
type SchemaValidationError struct {
	Index   int
	Table   string
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation error: row %d for table %q is missing required fields: %s",
		e.Index, e.Table, strings.Join(e.Missing, ", "))
}

type Validator struct {
	logger  loglib.Logger
	catalog *mapping.Catalog
}

type Option func(v *Validator)

func New(catalog *mapping.Catalog, opts ...Option) *Validator {
	v := &Validator{
		logger:  loglib.NewNoopLogger(),
		catalog: catalog,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func WithLogger(l loglib.Logger) Option {
	return func(v *Validator) {
		v.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "row_validator",
		})
	}
}

// Validate checks the rows in order and stops at the first row with absent,
// nil or empty required columns.
func (v *Validator) Validate(rs []*rows.Row) error {
	required := map[string][]string{}
	for i, row := range rs {
		columns, found := required[row.Table]
		if !found {
			schema, err := v.catalog.Schema(row.Table)
			if err != nil {
				return err
			}
			columns = schema.RequiredColumns()
			required[row.Table] = columns
		}

		missing := []string{}
		for _, col := range columns {
			if row.IsEmpty(col) {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return &SchemaValidationError{Index: i, Table: row.Table, Missing: missing}
		}
	}

	v.logger.Debug("rows validated", loglib.Fields{"rows": len(rs)})
	return nil
}
