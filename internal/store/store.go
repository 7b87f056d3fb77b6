package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketSnapshots = []byte("snapshots")
	bucketCatalog   = []byte("catalog")
	bucketMisc      = []byte("misc")

	allBuckets = [][]byte{bucketSnapshots, bucketCatalog, bucketMisc}
)

// Key prefixes route keys to buckets
const (
	PrefixSnapshot = "snapshot:"
	PrefixCatalog  = "catalog"
)

// LocalStore implements domain.LocalStorage using BoltDB.
type LocalStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string]string
}

// Open opens the store under baseCacheDir, namespaced by remote so two
// backends never share a mirror. An empty baseCacheDir gives a memory-only store.
func Open(baseCacheDir, remoteID string) (*LocalStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &LocalStore{cache: make(map[string]string)}, nil
	}

	dir := baseCacheDir
	if remoteID != "" {
		dir = filepath.Join(baseCacheDir, hashRemoteID(remoteID))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "fitsync.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LocalStore{db: db, cache: make(map[string]string)}, nil
}

func hashRemoteID(remoteID string) string {
	normalized := strings.TrimRight(strings.ToLower(remoteID), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func bucketFor(key string) []byte {
	switch {
	case strings.HasPrefix(key, PrefixSnapshot):
		return bucketSnapshots
	case strings.HasPrefix(key, PrefixCatalog):
		return bucketCatalog
	default:
		return bucketMisc
	}
}

func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value stored under key.
func (s *LocalStore) Get(key string) (string, bool) {
	s.mu.RLock()
	if v, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return v, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return "", false
	}

	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(key))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = string(v) // copies out of the mmap
			found = true
		}
		return nil
	})
	if err != nil || !found {
		return "", false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	return value, true
}

// Set stores value under key, overwriting any previous value.
func (s *LocalStore) Set(key, value string) error {
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(key))
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		// A failed write must not be served from memory
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
	}
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (s *LocalStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(key))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// RemovePrefix deletes every key starting with prefix.
func (s *LocalStore) RemovePrefix(prefix string) error {
	s.mu.Lock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(prefix))
		if b == nil {
			return nil
		}
		return deleteKeys(b, []byte(prefix))
	})
}

// Clear wipes every bucket.
func (s *LocalStore) Clear() error {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			if err := deleteKeys(b, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteKeys removes every key in b that starts with prefix (all keys when
// prefix is empty). Keys are collected first; deleting while a cursor walks
// the bucket can skip entries.
func deleteKeys(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
