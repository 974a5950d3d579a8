// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"

	"github.com/xataio/bai2load/internal/postgres"
)

type Querier struct {
	QueryRowFn    func(ctx context.Context, dest []any, query string, args ...any) error
	ExecFn        func(ctx context.Context, query string, args ...any) (int64, error)
	CopyFromFn    func(ctx context.Context, table postgres.Identifier, columnNames []string, srcRows [][]any) (int64, error)
	CloseFn       func(ctx context.Context) error
	copyFromCalls uint32
}

func (m *Querier) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	return m.QueryRowFn(ctx, dest, query, args...)
}

func (m *Querier) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return m.ExecFn(ctx, query, args...)
}

func (m *Querier) CopyFrom(ctx context.Context, table postgres.Identifier, columnNames []string, srcRows [][]any) (int64, error) {
	atomic.AddUint32(&m.copyFromCalls, 1)
	return m.CopyFromFn(ctx, table, columnNames, srcRows)
}

func (m *Querier) Close(ctx context.Context) error {
	if m.CloseFn != nil {
		return m.CloseFn(ctx)
	}
	return nil
}

func (m *Querier) GetCopyFromCalls() uint32 {
	return atomic.LoadUint32(&m.copyFromCalls)
}
