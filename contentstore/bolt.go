package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketContent = []byte("content")

// BoltStore persists blobs in a local bbolt database, keyed by content hash.
// Suitable for single-node deployments without an object store.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the bbolt database at dbPath. The parent
// directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("contentstore: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("contentstore: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContent)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("contentstore: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}

	hash := HashBytes(data)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContent)
		if b.Get([]byte(hash)) != nil {
			return nil
		}
		return b.Put([]byte(hash), data)
	})
	if err != nil {
		return "", fmt.Errorf("contentstore: put %s: %w", hash, err)
	}
	return hash, nil
}

func (s *BoltStore) Get(_ context.Context, hash string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketContent).Get([]byte(hash))
		if data == nil {
			return ErrNotFound
		}
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
