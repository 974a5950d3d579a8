// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"
)

type KeyManager struct {
	FindKeyFn    func(ctx context.Context, customerID string) (string, error)
	EncryptFn    func(ctx context.Context, key string, plaintext []byte) ([]byte, error)
	CloseFn      func() error
	findKeyCalls atomic.Uint64
	encryptCalls atomic.Uint64
}

func (m *KeyManager) FindKey(ctx context.Context, customerID string) (string, error) {
	m.findKeyCalls.Add(1)
	return m.FindKeyFn(ctx, customerID)
}

func (m *KeyManager) Encrypt(ctx context.Context, key string, plaintext []byte) ([]byte, error) {
	m.encryptCalls.Add(1)
	return m.EncryptFn(ctx, key, plaintext)
}

func (m *KeyManager) Close() error {
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn()
}

func (m *KeyManager) GetFindKeyCalls() uint64 {
	return m.findKeyCalls.Load()
}

func (m *KeyManager) GetEncryptCalls() uint64 {
	return m.encryptCalls.Load()
}
