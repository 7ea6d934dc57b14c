package entitystore

import "context"

// KVPair is a raw key-value pair returned by prefix scans.
type KVPair struct {
	Key   string
	Value []byte
}

// Datastore is the pluggable byte-oriented storage the entity store is built
// on. Writes must be durable before Put returns. Scan ordering follows the
// underlying store's key order and is not guaranteed sorted by anything
// meaningful to callers.
type Datastore interface {
	// Has returns true if the key exists.
	Has(ctx context.Context, key string) (bool, error)
	// Get returns the value for a key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores the value under the key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan returns up to limit pairs whose keys start with prefix.
	// A negative limit returns everything.
	Scan(ctx context.Context, prefix string, limit int) ([]KVPair, error)
	// Close releases the underlying resources.
	Close() error
}

// ErrKeyNotFound is returned when a key is absent from the datastore.
type ErrKeyNotFound struct {
	Key string
}

func NewErrKeyNotFound(key string) ErrKeyNotFound {
	return ErrKeyNotFound{Key: key}
}

func (e ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}
