package entitystore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const entitiesBucket = "entities"

// BoltDatastore is a bbolt-backed datastore. Every Put runs inside its own
// write transaction, so a record is durable on disk before Put returns.
type BoltDatastore struct {
	database *bolt.DB
}

// NewBoltDatastore opens (creating if needed) a bbolt database at the given
// file location and ensures the entities bucket exists.
func NewBoltDatastore(dbPath string) (*BoltDatastore, error) {
	log.Debug().Msgf("creating new bbolt database at %s", dbPath)

	database, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second}) //nolint:gomnd
	if err != nil {
		return nil, err
	}

	err = database.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entitiesBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &BoltDatastore{database: database}, nil
}

func (d *BoltDatastore) Has(ctx context.Context, key string) (bool, error) {
	var found bool
	err := d.database.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(entitiesBucket)).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (d *BoltDatastore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.database.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(entitiesBucket)).Get([]byte(key))
		if data == nil {
			return NewErrKeyNotFound(key)
		}
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (d *BoltDatastore) Put(ctx context.Context, key string, value []byte) error {
	return d.database.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entitiesBucket)).Put([]byte(key), value)
	})
}

func (d *BoltDatastore) Delete(ctx context.Context, key string) error {
	return d.database.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entitiesBucket)).Delete([]byte(key))
	})
}

func (d *BoltDatastore) Scan(ctx context.Context, prefix string, limit int) ([]KVPair, error) {
	var pairs []KVPair
	err := d.database.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(entitiesBucket)).Cursor()
		prefixBytes := []byte(prefix)
		for k, v := cursor.Seek(prefixBytes); k != nil; k, v = cursor.Next() {
			if len(k) < len(prefixBytes) || string(k[:len(prefixBytes)]) != prefix {
				break
			}
			value := make([]byte, len(v))
			copy(value, v)
			pairs = append(pairs, KVPair{Key: string(k), Value: value})
			if limit >= 0 && len(pairs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func (d *BoltDatastore) Close() error {
	if d.database != nil {
		return d.database.Close()
	}
	return nil
}

// compile-time check that BoltDatastore implements Datastore
var _ Datastore = (*BoltDatastore)(nil)
