// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"
)

type Reader struct {
	ReadFn    func(ctx context.Context, path string) (string, error)
	CloseFn   func() error
	readCalls atomic.Uint64
}

func (m *Reader) Read(ctx context.Context, path string) (string, error) {
	m.readCalls.Add(1)
	return m.ReadFn(ctx, path)
}

func (m *Reader) Close() error {
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn()
}

func (m *Reader) GetReadCalls() uint64 {
	return m.readCalls.Load()
}
