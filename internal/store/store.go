// Package store is the durable ratings cache: a BoltDB key-value map with an
// in-memory promotion layer in front of it. Values are either full entries
// or pointer records aliasing a secondary key to the master key, so one
// title can be found under its platform ID, its title+year key or its bare
// title key without storing three copies.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"reelrate/internal/cachekey"
	"reelrate/internal/domain"
)

var bucketRatings = []byte("ratings")

const (
	// DefaultMemorySize caps the promotion layer.
	DefaultMemorySize = 4096

	// memoryTTL bounds how long a promoted entry may be served without
	// re-reading durable storage. Outcome-based TTLs are checked on every
	// hit regardless.
	memoryTTL = time.Hour
)

type valueKind uint8

const (
	kindEntry   valueKind = 1
	kindPointer valueKind = 2
)

// storedValue is the tagged union persisted under every key: either a full
// entry or a one-hop pointer to the master key.
type storedValue struct {
	Kind    valueKind           `msgpack:"kind"`
	Pointer string              `msgpack:"pointer,omitempty"`
	Entry   *domain.RatingEntry `msgpack:"entry,omitempty"`
}

// Store implements the persistent store adapter. All read failures degrade
// to cache misses and all write failures degrade to no-ops; callers never
// see storage errors.
type Store struct {
	db     *bolt.DB
	mem    *expirable.LRU[string, *domain.RatingEntry]
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the store under dir. An empty dir yields a
// memory-only store with no persistence, used by tests and by callers that
// explicitly opt out of durable caching.
func Open(dir string, memorySize int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if memorySize <= 0 {
		memorySize = DefaultMemorySize
	}

	s := &Store{
		mem:    expirable.NewLRU[string, *domain.RatingEntry](memorySize, nil, memoryTTL),
		logger: logger,
		now:    time.Now,
	}

	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, "reelrate.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRatings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get resolves the identity against the cache, trying the most specific
// candidate key first (ID, then title+year, then title). A durable hit is
// promoted into the memory layer. Returns nil on miss.
func (s *Store) Get(videoID, title, year string) *domain.RatingEntry {
	now := s.now()

	for _, key := range cachekey.Candidates(videoID, title, year) {
		if e, ok := s.mem.Get(key); ok {
			if e.ValidAt(now) {
				return e
			}
			s.mem.Remove(key)
		}

		if e := s.readDurable(key, now); e != nil {
			s.mem.Add(key, e)
			return e
		}
	}
	return nil
}

// readDurable loads one key from BoltDB, following a pointer at most one
// hop. A pointer to a missing, expired or non-entry target is a miss, not
// an error.
func (s *Store) readDurable(key string, now time.Time) *domain.RatingEntry {
	if s.db == nil {
		return nil
	}

	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRatings).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("cache read failed", "key", key, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	sv, err := decodeValue(raw)
	if err != nil {
		s.logger.Error("cache entry is invalid", "key", key, "error", err)
		return nil
	}

	if sv.Kind == kindPointer {
		target := s.readTarget(sv.Pointer)
		if target == nil || target.Kind != kindEntry || target.Entry == nil {
			return nil
		}
		sv = target
	}

	if sv.Entry == nil || !sv.Entry.ValidAt(now) {
		return nil
	}
	return sv.Entry
}

// readTarget dereferences a pointer's master key. Pointer chains are not
// followed; the caller rejects a pointer target.
func (s *Store) readTarget(key string) *storedValue {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRatings).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil
	}

	sv, err := decodeValue(raw)
	if err != nil {
		s.logger.Error("cache entry is invalid", "key", key, "error", err)
		return nil
	}
	return sv
}

// Set writes the entry under its master key and maintains every alias key.
// With a known platform ID the aliases are pointer records; without one
// there is no stable anchor to point at, so full duplicates are written
// instead (legacy mode).
func (s *Store) Set(videoID, title, year string, e *domain.RatingEntry) {
	if e == nil {
		return
	}

	master := cachekey.For(videoID, title, year)
	aliases := s.aliasKeys(master, videoID, title, year, e)

	s.mem.Add(master, e)
	for _, key := range aliases {
		s.mem.Add(key, e)
	}

	if s.db == nil {
		return
	}

	entryRaw, err := msgpack.Marshal(&storedValue{Kind: kindEntry, Entry: e})
	if err != nil {
		s.logger.Error("cache encode failed", "key", master, "error", err)
		return
	}

	var aliasRaw []byte
	if videoID != "" {
		aliasRaw, err = msgpack.Marshal(&storedValue{Kind: kindPointer, Pointer: master})
	} else {
		aliasRaw = entryRaw
	}
	if err != nil {
		s.logger.Error("cache encode failed", "key", master, "error", err)
		return
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRatings)
		if err := b.Put([]byte(master), entryRaw); err != nil {
			return err
		}
		for _, key := range aliases {
			if err := b.Put([]byte(key), aliasRaw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("cache write failed", "key", master, "error", err)
	}
}

// aliasKeys returns every derivable key other than the master: title+year,
// bare title, and the external-database key when known.
func (s *Store) aliasKeys(master, videoID, title, year string, e *domain.RatingEntry) []string {
	var keys []string
	add := func(key string) {
		if key == "" || key == master {
			return
		}
		for _, k := range keys {
			if k == key {
				return
			}
		}
		keys = append(keys, key)
	}

	y := cachekey.NormalizeYear(year)
	if y == "" {
		y = cachekey.NormalizeYear(e.Year)
	}
	if y != "" {
		add(cachekey.TitleYearKey(title, y))
	}
	add(cachekey.TitleKey(title))
	if e.IMDBID != "" {
		add(cachekey.ForIMDB(e.IMDBID))
	}
	return keys
}

// Clear wipes both layers and reports how many durable keys were removed.
func (s *Store) Clear() int {
	s.mem.Purge()

	if s.db == nil {
		return 0
	}

	cleared := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRatings)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("cache clear failed", "error", err)
	}
	return cleared
}

// Stats reports the memory-layer entry count and the durable key count.
func (s *Store) Stats() (memorySize, storageSize int) {
	memorySize = s.mem.Len()
	if s.db == nil {
		return memorySize, 0
	}
	s.db.View(func(tx *bolt.Tx) error {
		storageSize = tx.Bucket(bucketRatings).Stats().KeyN
		return nil
	})
	return memorySize, storageSize
}

// Sweep removes expired entries and pointers whose master is gone or
// expired. Returns the number of keys deleted.
func (s *Store) Sweep() int {
	if s.db == nil {
		return 0
	}

	now := s.now()
	var stale []string

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRatings)
		return b.ForEach(func(k, v []byte) error {
			sv, err := decodeValue(v)
			if err != nil {
				stale = append(stale, string(k))
				return nil
			}
			switch sv.Kind {
			case kindEntry:
				if sv.Entry == nil || !sv.Entry.ValidAt(now) {
					stale = append(stale, string(k))
				}
			case kindPointer:
				target := b.Get([]byte(sv.Pointer))
				if target == nil {
					stale = append(stale, string(k))
					return nil
				}
				tv, err := decodeValue(target)
				if err != nil || tv.Kind != kindEntry || tv.Entry == nil || !tv.Entry.ValidAt(now) {
					stale = append(stale, string(k))
				}
			default:
				stale = append(stale, string(k))
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("cache sweep scan failed", "error", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRatings)
		for _, k := range stale {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("cache sweep delete failed", "error", err)
		return 0
	}

	for _, k := range stale {
		s.mem.Remove(k)
	}
	return len(stale)
}

// Entries enumerates the live entries in durable storage, de-duplicated by
// master key (legacy-mode duplicates collapse to one). Pointers and expired
// entries are skipped.
func (s *Store) Entries() []*domain.RatingEntry {
	if s.db == nil {
		return nil
	}

	now := s.now()
	seen := make(map[string]bool)
	var entries []*domain.RatingEntry

	s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRatings).ForEach(func(k, v []byte) error {
			sv, err := decodeValue(v)
			if err != nil || sv.Kind != kindEntry || sv.Entry == nil {
				return nil
			}
			e := sv.Entry
			if !e.ValidAt(now) {
				return nil
			}
			master := cachekey.For(e.VideoID, e.Title, e.Year)
			if seen[master] {
				return nil
			}
			seen[master] = true
			entries = append(entries, e)
			return nil
		})
	})
	return entries
}

func decodeValue(raw []byte) (*storedValue, error) {
	var sv storedValue
	if err := msgpack.Unmarshal(raw, &sv); err != nil {
		return nil, err
	}
	return &sv, nil
}
