// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"context"
	"encoding/base64"
	"fmt"

	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/rows"
	"golang.org/x/sync/errgroup"
)

// FieldEncryptor encrypts the sensitive columns of the rows in place and
// removes their key hint.
type FieldEncryptor struct {
	logger    loglib.Logger
	resolver  *KeyResolver
	encrypter Encrypter
	sensitive []string
	workers   int
}

type Option func(e *FieldEncryptor)

const defaultWorkers = 1

func NewFieldEncryptor(resolver *KeyResolver, encrypter Encrypter, sensitive []string, opts ...Option) *FieldEncryptor {
	e := &FieldEncryptor{
		logger:    loglib.NewNoopLogger(),
		resolver:  resolver,
		encrypter: encrypter,
		sensitive: sensitive,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithLogger(l loglib.Logger) Option {
	return func(e *FieldEncryptor) {
		e.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "field_encryptor",
		})
	}
}

// WithWorkers sets the number of rows encrypted concurrently. Values lower
// than one are ignored.
func WithWorkers(n int) Option {
	return func(e *FieldEncryptor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// EncryptRows encrypts every present, non nil sensitive value of the rows
// with the key of the row's customer, storing the base64 encoded ciphertext.
// It stops at the first failure.
func (e *FieldEncryptor) EncryptRows(ctx context.Context, rs []*rows.Row) error {
	e.logger.Info("encrypting sensitive columns", loglib.Fields{
		"columns": e.sensitive,
		"rows":    len(rs),
		"workers": e.workers,
	})

	if e.workers == 1 {
		for i, row := range rs {
			if err := e.encryptRow(ctx, row); err != nil {
				return fmt.Errorf("encrypting row %d: %w", i, err)
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i, row := range rs {
		eg.Go(func() error {
			if err := e.encryptRow(egCtx, row); err != nil {
				return fmt.Errorf("encrypting row %d: %w", i, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (e *FieldEncryptor) encryptRow(ctx context.Context, row *rows.Row) error {
	customerID := row.ConsumeKeyHint()
	if customerID == "" {
		return ErrMissingKeyHint
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := e.resolver.Resolve(ctx, customerID)
	if err != nil {
		return err
	}

	for _, column := range e.sensitive {
		value, found := row.Get(column)
		if !found || value == nil {
			continue
		}
		ciphertext, err := e.encrypter.Encrypt(ctx, key, []byte(plaintext(value)))
		if err != nil {
			return fmt.Errorf("encrypting column %s: %w", column, err)
		}
		row.Set(column, base64.StdEncoding.EncodeToString(ciphertext))
	}
	return nil
}

func plaintext(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
