// SPDX-License-Identifier: Apache-2.0

// Package encryption replaces the sensitive values of the destination rows
// with ciphertext produced under a customer scoped key.
package encryption

import (
	"context"
	"errors"
	"fmt"

	loglib "github.com/xataio/bai2load/pkg/log"
)

// KeyFinder looks up the key associated with a customer. It returns a
// *KeyNotFoundError when the customer has no key.
type KeyFinder interface {
	FindKey(ctx context.Context, customerID string) (string, error)
}

// Encrypter encrypts the plaintext under the given key.
type Encrypter interface {
	Encrypt(ctx context.Context, key string, plaintext []byte) ([]byte, error)
}

// KeyManager is a key management service client.
type KeyManager interface {
	KeyFinder
	Encrypter
	Close() error
}

type KeyNotFoundError struct {
	CustomerID string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("encryption key not found for customer_id %s", loglib.MaskID(e.CustomerID))
}

var ErrMissingKeyHint = errors.New("row is missing the customer id used for key lookup")
