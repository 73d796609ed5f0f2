// bolt.go - Durable backend on a single-file bbolt database.

package storage

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("shieldpool")

// Bolt is a Backend stored in a bbolt file. Safe for concurrent use.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open storage db")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create storage bucket")
	}
	return &Bolt{db: db}, nil
}

var _ Backend = (*Bolt)(nil)

// Close releases the underlying database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	return value, errors.Wrap(err, "storage get")
}

func (b *Bolt) Set(key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	return errors.Wrap(err, "storage set")
}

func (b *Bolt) Remove(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	return errors.Wrap(err, "storage remove")
}

func (b *Bolt) Clear() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(boltBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(boltBucket)
		return err
	})
	return errors.Wrap(err, "storage clear")
}
