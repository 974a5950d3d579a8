// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"maps"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Map is a generic map guarded by a read/write mutex.
type Map[K comparable, V any] struct {
	m     map[K]V
	mutex *sync.RWMutex
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		m:     make(map[K]V),
		mutex: &sync.RWMutex{},
	}
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.m[key]
	return value, ok
}

func (m *Map[K, V]) Set(key K, value V) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.m[key] = value
}

func (m *Map[K, V]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.m)
}

func (m *Map[K, V]) GetMap() map[K]V {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return maps.Clone(m.m)
}

// LoaderFn computes the value of a key missing from a LoadingMap.
type LoaderFn[V any] func(ctx context.Context) (V, error)

// LoadingMap is a Map that computes missing values on demand. Concurrent
// requests for the same missing key share a single load. Failed loads are
// not stored.
type LoadingMap[V any] struct {
	values *Map[string, V]
	group  singleflight.Group
}

func NewLoadingMap[V any]() *LoadingMap[V] {
	return &LoadingMap[V]{
		values: NewMap[string, V](),
	}
}

// GetOrLoad returns the value for the key, calling load if it's not present
// yet.
func (m *LoadingMap[V]) GetOrLoad(ctx context.Context, key string, load LoaderFn[V]) (V, error) {
	if v, found := m.values.Get(key); found {
		return v, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// another caller may have stored the value between the lookup and
		// the flight starting
		if v, found := m.values.Get(key); found {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.values.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (m *LoadingMap[V]) Len() int {
	return m.values.Len()
}
