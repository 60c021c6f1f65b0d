package adapter

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// cacheKeyPrefix versions the storage layout so a format change never reads
// stale entries.
const cacheKeyPrefix = "transform/v1/"

// defaultCacheTTL bounds how long an entry for a file that is never seen
// again stays on disk.
const defaultCacheTTL = 30 * 24 * time.Hour

// CacheStore remembers pass results keyed by file identity, content and
// options, so unchanged files are not parsed again.
type CacheStore interface {
	// Load returns the cached result for key, or nil on a miss.
	Load(ctx context.Context, key string) (*m.FileResult, error)
	// Save stores result under key.
	Save(ctx context.Context, key string, result m.FileResult) error
	Close() error
}

// CacheKey derives the cache key of a file from its identity, its content
// hash and a fingerprint of every option that changes the output.
func CacheKey(fileID, contentHash string, options ...string) string {
	h := xxhash.New()
	_, _ = h.WriteString(fileID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(contentHash)

	for _, o := range options {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(o)
	}

	return strconv.FormatUint(h.Sum64(), 16)
}

// BadgerCacheStore is a CacheStore backed by an embedded badger database.
type BadgerCacheStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerCacheStore opens (or creates) the cache database in dir.
func OpenBadgerCacheStore(dir string) (*BadgerCacheStore, error) {
	return openBadgerCacheStore(badger.DefaultOptions(dir))
}

// OpenInMemoryCacheStore opens a cache that lives only as long as the process.
func OpenInMemoryCacheStore() (*BadgerCacheStore, error) {
	return openBadgerCacheStore(badger.DefaultOptions("").WithInMemory(true))
}

func openBadgerCacheStore(opts badger.Options) (*BadgerCacheStore, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	return &BadgerCacheStore{db: db, ttl: defaultCacheTTL}, nil
}

// Load implements CacheStore.
func (s *BadgerCacheStore) Load(ctx context.Context, key string) (*m.FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}

		raw, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		slog.Debug("cache miss", "key", key)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("cache load %s: %w", key, err)
	}

	var result m.FileResult
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&result); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}

	slog.Debug("cache hit", "key", key, "actions", len(result.Names))

	return &result, nil
}

// Save implements CacheStore.
func (s *BadgerCacheStore) Save(ctx context.Context, key string, result m.FileResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(result); err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(cacheKeyPrefix+key), buf.Bytes()).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("cache save %s: %w", key, err)
	}

	return nil
}

// Len counts the live entries. It is meant for diagnostics and tests.
func (s *BadgerCacheStore) Len() (int, error) {
	n := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(cacheKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if strings.HasPrefix(string(it.Item().Key()), cacheKeyPrefix) {
				n++
			}
		}

		return nil
	})

	return n, err
}

// Close implements CacheStore.
func (s *BadgerCacheStore) Close() error {
	return s.db.Close()
}
