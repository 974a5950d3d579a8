// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"
)

// WeightedSemaphore records the acquire and release calls of concurrent
// table loads. Nil functions always grant the acquisition.
type WeightedSemaphore struct {
	TryAcquireFn func(int64) bool
	AcquireFn    func(ctx context.Context, weight int64) error
	ReleaseFn    func(call uint64, weight int64)

	acquireCalls atomic.Uint64
	releaseCalls atomic.Uint64
}

func (m *WeightedSemaphore) TryAcquire(weight int64) bool {
	if m.TryAcquireFn == nil {
		return true
	}
	return m.TryAcquireFn(weight)
}

func (m *WeightedSemaphore) Acquire(ctx context.Context, weight int64) error {
	m.acquireCalls.Add(1)
	if m.AcquireFn == nil {
		return ctx.Err()
	}
	return m.AcquireFn(ctx, weight)
}

func (m *WeightedSemaphore) Release(weight int64) {
	call := m.releaseCalls.Add(1)
	if m.ReleaseFn != nil {
		m.ReleaseFn(call, weight)
	}
}

func (m *WeightedSemaphore) GetAcquireCalls() uint64 {
	return m.acquireCalls.Load()
}

func (m *WeightedSemaphore) GetReleaseCalls() uint64 {
	return m.releaseCalls.Load()
}
