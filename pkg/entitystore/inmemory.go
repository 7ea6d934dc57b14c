package entitystore

import (
	"context"
	"strings"
	"sync"
)

// InMemoryDatastore is a map-backed datastore that preserves insertion order
// on scans. Used in tests and for ephemeral nodes.
type InMemoryDatastore struct {
	mu     sync.RWMutex
	values map[string][]byte
	order  []string
}

func NewInMemoryDatastore() *InMemoryDatastore {
	return &InMemoryDatastore{
		values: make(map[string][]byte),
	}
}

func (d *InMemoryDatastore) Has(ctx context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.values[key]
	return ok, nil
}

func (d *InMemoryDatastore) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	value, ok := d.values[key]
	if !ok {
		return nil, NewErrKeyNotFound(key)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (d *InMemoryDatastore) Put(ctx context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.values[key]; !ok {
		d.order = append(d.order, key)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	d.values[key] = stored
	return nil
}

func (d *InMemoryDatastore) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.values[key]; !ok {
		return nil
	}
	delete(d.values, key)
	for i := range d.order {
		if d.order[i] == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

func (d *InMemoryDatastore) Scan(ctx context.Context, prefix string, limit int) ([]KVPair, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var pairs []KVPair
	for _, key := range d.order {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		value := d.values[key]
		out := make([]byte, len(value))
		copy(out, value)
		pairs = append(pairs, KVPair{Key: key, Value: out})
		if limit >= 0 && len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}

func (d *InMemoryDatastore) Close() error {
	return nil
}

// compile-time check that InMemoryDatastore implements Datastore
var _ Datastore = (*InMemoryDatastore)(nil)
