// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"

	"github.com/xataio/bai2load/pkg/warehouse"
)

type Loader struct {
	TableExistsFn   func(ctx context.Context, table string) (bool, error)
	BulkInsertFn    func(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error)
	CloseFn         func() error
	bulkInsertCalls atomic.Uint64
}

func (m *Loader) TableExists(ctx context.Context, table string) (bool, error) {
	return m.TableExistsFn(ctx, table)
}

func (m *Loader) BulkInsert(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error) {
	m.bulkInsertCalls.Add(1)
	return m.BulkInsertFn(ctx, table, records)
}

func (m *Loader) Close() error {
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn()
}

func (m *Loader) GetBulkInsertCalls() uint64 {
	return m.bulkInsertCalls.Load()
}
