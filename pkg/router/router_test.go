// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	syncmocks "github.com/xataio/bai2load/internal/sync/mocks"
	"github.com/xataio/bai2load/pkg/rows"
	"github.com/xataio/bai2load/pkg/warehouse"
	"github.com/xataio/bai2load/pkg/warehouse/mocks"
)

var testTableNames = map[string]string{
	"balance":      "bq_balance",
	"transactions": "bq_transactions",
}

func testRows() []*rows.Row {
	newRow := func(table, account string) *rows.Row {
		row := rows.New(table, "CUST1")
		row.Set("account_number", account)
		return row
	}
	return []*rows.Row{
		newRow("balance", "1"),
		newRow("transactions", "1"),
		newRow("transactions", "1"),
		newRow("balance", "2"),
		newRow("organisations", "2"),
	}
}

func TestRouter_Route(t *testing.T) {
	t.Parallel()

	r := New(&mocks.Loader{}, testTableNames)
	got := r.Route(testRows())

	require.Equal(t, []Partition{
		{
			LogicalTable: "balance",
			Table:        "bq_balance",
			Records:      []warehouse.Record{{"account_number": "1"}, {"account_number": "2"}},
		},
		{
			LogicalTable: "transactions",
			Table:        "bq_transactions",
			Records:      []warehouse.Record{{"account_number": "1"}, {"account_number": "1"}},
		},
		{
			LogicalTable: "organisations",
			Table:        "organisations",
			Records:      []warehouse.Record{{"account_number": "2"}},
		},
	}, got)

	require.Empty(t, r.Route(nil))
}

func TestRouter_Load(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name          string
		tableExistsFn func(ctx context.Context, table string) (bool, error)
		bulkInsertFn  func(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error)
		opts          []Option

		wantInserts  uint64
		wantErrTable string
		wantRowErrs  int
		wantErr      error
	}{
		{
			name:        "ok",
			wantInserts: 3,
		},
		{
			name:        "ok - concurrent loads",
			opts:        []Option{WithConcurrentLoads(2)},
			wantInserts: 3,
		},
		{
			name: "error - table does not exist",
			tableExistsFn: func(_ context.Context, table string) (bool, error) {
				return table != "bq_transactions", nil
			},
			wantInserts:  1,
			wantErrTable: "bq_transactions",
		},
		{
			name: "error - checking table exists",
			tableExistsFn: func(context.Context, string) (bool, error) {
				return false, errTest
			},
			wantInserts:  0,
			wantErrTable: "bq_balance",
			wantErr:      errTest,
		},
		{
			name: "error - row errors",
			bulkInsertFn: func(_ context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error) {
				if table == "bq_balance" {
					return []warehouse.RowError{{Index: 1, Column: "currency", Reason: "invalid"}}, nil
				}
				return nil, nil
			},
			wantInserts:  1,
			wantErrTable: "bq_balance",
			wantRowErrs:  1,
		},
		{
			name: "error - inserting",
			bulkInsertFn: func(context.Context, string, []warehouse.Record) ([]warehouse.RowError, error) {
				return nil, errTest
			},
			wantInserts:  1,
			wantErrTable: "bq_balance",
			wantErr:      errTest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			loader := &mocks.Loader{
				TableExistsFn: func(context.Context, string) (bool, error) {
					return true, nil
				},
				BulkInsertFn: func(context.Context, string, []warehouse.Record) ([]warehouse.RowError, error) {
					return nil, nil
				},
			}
			if tc.tableExistsFn != nil {
				loader.TableExistsFn = tc.tableExistsFn
			}
			if tc.bulkInsertFn != nil {
				loader.BulkInsertFn = tc.bulkInsertFn
			}

			r := New(loader, testTableNames, tc.opts...)
			err := r.Load(context.Background(), testRows())
			require.Equal(t, tc.wantInserts, loader.GetBulkInsertCalls())
			if tc.wantErrTable == "" {
				require.NoError(t, err)
				return
			}

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			require.Equal(t, tc.wantErrTable, loadErr.Table)
			require.Len(t, loadErr.RowErrors, tc.wantRowErrs)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestRouter_Load_concurrency(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	mutex := sync.Mutex{}
	loaded := []string{}

	loader := &mocks.Loader{
		TableExistsFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
		BulkInsertFn: func(_ context.Context, table string, _ []warehouse.Record) ([]warehouse.RowError, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				current := maxInFlight.Load()
				if n <= current || maxInFlight.CompareAndSwap(current, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)

			mutex.Lock()
			defer mutex.Unlock()
			loaded = append(loaded, table)
			return nil, nil
		},
	}

	rs := []*rows.Row{}
	for _, table := range []string{"a", "b", "c", "d"} {
		rs = append(rs, rows.New(table, "CUST1"))
	}

	r := New(loader, nil, WithConcurrentLoads(2))
	require.NoError(t, r.Load(context.Background(), rs))
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, loaded)
	require.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestRouter_Load_canceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := &mocks.Loader{
		TableExistsFn: func(ctx context.Context, _ string) (bool, error) {
			return false, ctx.Err()
		},
	}

	r := New(loader, testTableNames, WithConcurrentLoads(2))
	err := r.Load(ctx, testRows())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, uint64(0), loader.GetBulkInsertCalls())
}

func TestRouter_Load_semaphore(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	loader := &mocks.Loader{
		TableExistsFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
		BulkInsertFn: func(context.Context, string, []warehouse.Record) ([]warehouse.RowError, error) {
			return nil, nil
		},
	}

	var acquireCalls atomic.Int32
	semaphore := &syncmocks.WeightedSemaphore{
		AcquireFn: func(_ context.Context, i int64) error {
			require.Equal(t, int64(1), i)
			if acquireCalls.Add(1) == 3 {
				return errTest
			}
			return nil
		},
		ReleaseFn: func(_ uint64, i int64) {
			require.Equal(t, int64(1), i)
		},
	}

	r := New(loader, testTableNames)
	r.semaphore = semaphore

	err := r.Load(context.Background(), testRows())
	require.ErrorIs(t, err, errTest)
	require.Equal(t, uint64(2), loader.GetBulkInsertCalls())
	require.Equal(t, uint64(3), semaphore.GetAcquireCalls())
	require.Equal(t, uint64(2), semaphore.GetReleaseCalls())
}

func TestLoadError_Error(t *testing.T) {
	t.Parallel()

	err := &LoadError{
		Table:     "bq_balance",
		Reason:    "2 rows rejected",
		RowErrors: []warehouse.RowError{{Index: 0, Reason: "invalid"}, {Index: 3, Column: "currency", Reason: "too long"}},
	}
	require.Equal(t, "load error: table bq_balance: 2 rows rejected: [row 0: invalid; row 3, column currency: too long]", err.Error())

	err = &LoadError{Table: "bq_balance", Reason: "checking table exists", Err: errors.New("oh noes")}
	require.Equal(t, "load error: table bq_balance: checking table exists: oh noes", err.Error())
}
