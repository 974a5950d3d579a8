// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"context"

	synclib "github.com/xataio/bai2load/internal/sync"
	loglib "github.com/xataio/bai2load/pkg/log"
)

// KeyResolver caches the key of every customer resolved during a run.
// Concurrent resolutions of the same customer perform a single lookup.
type KeyResolver struct {
	logger loglib.Logger
	finder KeyFinder
	keys   *synclib.LoadingMap[string]
}

type KeyResolverOption func(r *KeyResolver)

func NewKeyResolver(finder KeyFinder, opts ...KeyResolverOption) *KeyResolver {
	r := &KeyResolver{
		logger: loglib.NewNoopLogger(),
		finder: finder,
		keys:   synclib.NewLoadingMap[string](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithKeyResolverLogger(l loglib.Logger) KeyResolverOption {
	return func(r *KeyResolver) {
		r.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "key_resolver",
		})
	}
}

func (r *KeyResolver) Resolve(ctx context.Context, customerID string) (string, error) {
	return r.keys.GetOrLoad(ctx, customerID, func(ctx context.Context) (string, error) {
		key, err := r.finder.FindKey(ctx, customerID)
		if err != nil {
			return "", err
		}
		r.logger.Debug("encryption key resolved", loglib.Fields{
			"customer_id": loglib.MaskID(customerID),
		})
		return key, nil
	})
}

// Resolved returns the number of customers with a cached key.
func (r *KeyResolver) Resolved() int {
	return r.keys.Len()
}
