package bolt

import (
	"fmt"
	"path/filepath"

	bbolt "go.etcd.io/bbolt"

	"github.com/tomkarw/kiwi-store/lib/engine"
)

const dbFileName = "bolt.db"

var bucketName = []byte("kv")

// encodeKey prefixes every key with a constant byte. bbolt rejects empty
// keys, but the store contract treats the empty key as a regular key.
func encodeKey(key string) []byte {
	k := make([]byte, len(key)+1)
	k[0] = 'k'
	copy(k[1:], key)
	return k
}

// boltEngine implements engine.KVEngine on top of a bbolt database with a
// single bucket. bbolt provides its own durability and concurrency
// discipline, so this adapter owns no synchronization of its own.
type boltEngine struct {
	db *bbolt.DB
}

// NewBoltEngine opens (or creates) a bbolt-backed engine in the given
// directory.
func NewBoltEngine(dir string) (engine.KVEngine, error) {
	if err := engine.ClaimDir(dir, engine.ImplBolt); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(dir, dbFileName), 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &boltEngine{db: db}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine/interface.go)
// --------------------------------------------------------------------------

func (e *boltEngine) Get(key string) ([]byte, bool) {
	var value []byte
	var found bool

	// View never returns an error from our closure
	_ = e.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(encodeKey(key)); v != nil {
			// copy out: bbolt memory is only valid inside the tx
			value = make([]byte, len(v))
			copy(value, v)
			found = true
		}
		return nil
	})
	return value, found
}

func (e *boltEngine) Set(key string, value []byte) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(encodeKey(key), value)
	})
}

func (e *boltEngine) Remove(key string) (bool, error) {
	var found bool
	err := e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(encodeKey(key)) == nil {
			return nil
		}
		found = true
		return b.Delete(encodeKey(key))
	})
	return found, err
}

func (e *boltEngine) Flush() error {
	return e.db.Sync()
}

func (e *boltEngine) Close() error {
	return e.db.Close()
}
