// SPDX-License-Identifier: Apache-2.0

// Package warehouse defines the contract of the destination warehouse
// loaders.
package warehouse

import (
	"context"
	"fmt"
)

// Record is a destination row, keyed by column name.
type Record = map[string]any

// Loader bulk loads records into warehouse tables. Table names are the
// physical names in the warehouse.
type Loader interface {
	TableExists(ctx context.Context, table string) (bool, error)
	// BulkInsert loads the records. Records rejected by the warehouse are
	// reported as row errors rather than as an error.
	BulkInsert(ctx context.Context, table string, records []Record) ([]RowError, error)
	Close() error
}

// RowError describes a record rejected by the warehouse. Index is the
// position of the record in the inserted batch, or -1 when the warehouse
// rejects the batch without pointing at a record.
type RowError struct {
	Index  int
	Column string
	Reason string
}

func (e RowError) Error() string {
	switch {
	case e.Index < 0 && e.Column == "":
		return e.Reason
	case e.Index < 0:
		return fmt.Sprintf("column %s: %s", e.Column, e.Reason)
	case e.Column == "":
		return fmt.Sprintf("row %d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("row %d, column %s: %s", e.Index, e.Column, e.Reason)
	}
}
