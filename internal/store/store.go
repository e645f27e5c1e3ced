// Package store persists filter state across restarts in a bbolt file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// FilterBucket holds the filter usage record.
	FilterBucket = "filter"

	filterKey = "usage"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// FilterRecord is the persisted filter usage.
type FilterRecord struct {
	UseCount  int       `json:"use_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store wraps a bbolt database with bucketed JSON values.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path and ensures the filter bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.CreateBucket(FilterBucket); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateBucket creates the bucket if it does not already exist.
func (s *Store) CreateBucket(bucket string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		return nil
	})
}

// Get decodes the value stored under key into v.
func (s *Store) Get(bucket, key string, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s: %w", bucket, ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// Update encodes v as JSON and stores it under key.
func (s *Store) Update(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// LoadUseCount returns the persisted use count, or 0 when nothing has been saved.
func (s *Store) LoadUseCount() (int, error) {
	var rec FilterRecord
	err := s.Get(FilterBucket, filterKey, &rec)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if rec.UseCount < 0 {
		return 0, nil
	}
	return rec.UseCount, nil
}

// SaveUseCount persists n as the current use count.
func (s *Store) SaveUseCount(n int) error {
	return s.Update(FilterBucket, filterKey, FilterRecord{UseCount: n, UpdatedAt: time.Now().UTC()})
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}
