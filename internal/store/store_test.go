package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"reelrate/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func successEntry(videoID, imdbID, title, year string) *domain.RatingEntry {
	completeness := domain.CompletenessPartial
	if year != "" {
		completeness = domain.CompletenessFull
	}
	return &domain.RatingEntry{
		VideoID:      videoID,
		IMDBID:       imdbID,
		Title:        title,
		NormTitle:    title,
		Year:         year,
		Ratings:      domain.Ratings{IMDB: &domain.SourceRating{Score: "8.8", Votes: "2,500,000"}},
		Status:       domain.StatusSuccess,
		Completeness: completeness,
		FetchedAt:    time.Now(),
	}
}

func TestWriteThenReadWithID(t *testing.T) {
	s := openTestStore(t)

	e := successEntry("81234", "tt1375666", "Inception", "2010")
	s.Set("81234", "Inception", "2010", e)

	// pointer path: every derivable key resolves to the master entry
	got := s.Get("81234", "Inception", "2010")
	require.NotNil(t, got)
	require.Equal(t, "8.8", got.Ratings.IMDB.Score)

	got = s.Get("", "Inception", "2010")
	require.NotNil(t, got)
	require.Equal(t, "tt1375666", got.IMDBID)

	got = s.Get("", "Inception", "")
	require.NotNil(t, got)
}

func TestWriteThenReadWithoutID(t *testing.T) {
	s := openTestStore(t)

	// legacy mode: duplicates instead of pointers
	e := successEntry("", "", "Inception", "2010")
	s.Set("", "Inception", "2010", e)

	require.NotNil(t, s.Get("", "Inception", "2010"))
	require.NotNil(t, s.Get("", "Inception", ""))
	require.Nil(t, s.Get("someid", "Unrelated", ""))
}

func TestPointerToMissingMasterIsMiss(t *testing.T) {
	s := openTestStore(t)

	// hand-craft a dangling pointer
	raw, err := msgpack.Marshal(&storedValue{Kind: kindPointer, Pointer: "id:gone"})
	require.NoError(t, err)
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRatings).Put([]byte("inception"), raw)
	})
	require.NoError(t, err)

	require.Nil(t, s.Get("", "Inception", ""))
}

func TestPointerNeverChains(t *testing.T) {
	s := openTestStore(t)

	// pointer -> pointer must be treated as a miss, not followed
	p1, _ := msgpack.Marshal(&storedValue{Kind: kindPointer, Pointer: "id:b"})
	p2, _ := msgpack.Marshal(&storedValue{Kind: kindPointer, Pointer: "id:c"})
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRatings)
		if err := b.Put([]byte("inception"), p1); err != nil {
			return err
		}
		return b.Put([]byte("id:b"), p2)
	})
	require.NoError(t, err)

	require.Nil(t, s.Get("", "Inception", ""))
}

func TestTTLByOutcome(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()

	errEntry := &domain.RatingEntry{
		Title:     "Broken",
		NormTitle: "broken",
		Status:    domain.StatusError,
		FetchedAt: base,
	}
	s.Set("", "Broken", "", errEntry)

	full := successEntry("", "", "Inception", "2010")
	full.FetchedAt = base
	s.Set("", "Inception", "2010", full)

	// just past the 1h error TTL
	s.now = func() time.Time { return base.Add(time.Hour + time.Minute) }
	require.Nil(t, s.Get("", "Broken", ""))
	require.NotNil(t, s.Get("", "Inception", "2010"))

	// six days in, the full success entry is still readable
	s.now = func() time.Time { return base.Add(6 * 24 * time.Hour) }
	require.NotNil(t, s.Get("", "Inception", "2010"))

	// past seven days it is gone
	s.now = func() time.Time { return base.Add(7*24*time.Hour + time.Minute) }
	require.Nil(t, s.Get("", "Inception", "2010"))
}

func TestExpiredMasterBehindPointerIsMiss(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()

	e := successEntry("42", "", "Old Movie", "1990")
	e.FetchedAt = base
	s.Set("42", "Old Movie", "1990", e)

	s.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	s.mem.Purge()

	// the title alias points at an expired master
	require.Nil(t, s.Get("", "Old Movie", "1990"))
}

func TestClear(t *testing.T) {
	s := openTestStore(t)

	s.Set("1", "A", "2001", successEntry("1", "", "A", "2001"))
	s.Set("2", "B", "2002", successEntry("2", "", "B", "2002"))

	cleared := s.Clear()
	require.Greater(t, cleared, 0)

	require.Nil(t, s.Get("1", "A", "2001"))
	mem, storage := s.Stats()
	require.Zero(t, mem)
	require.Zero(t, storage)
}

func TestSweepRemovesExpiredAndDanglingKeys(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()

	errEntry := &domain.RatingEntry{
		Title:     "Broken",
		NormTitle: "broken",
		Status:    domain.StatusError,
		FetchedAt: base,
	}
	s.Set("7", "Broken", "", errEntry)

	fresh := successEntry("8", "", "Fresh", "2024")
	fresh.FetchedAt = base
	s.Set("8", "Fresh", "2024", fresh)

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	removed := s.Sweep()
	// the expired master plus its pointer alias are both gone
	require.GreaterOrEqual(t, removed, 2)

	require.Nil(t, s.Get("7", "Broken", ""))
	require.NotNil(t, s.Get("8", "Fresh", "2024"))
}

func TestEntriesSkipsPointersAndDeduplicates(t *testing.T) {
	s := openTestStore(t)

	s.Set("1", "Inception", "2010", successEntry("1", "tt1375666", "Inception", "2010"))
	s.Set("", "Heat", "1995", successEntry("", "", "Heat", "1995"))

	entries := s.Entries()
	require.Len(t, entries, 2)
}

func TestMemoryOnlyMode(t *testing.T) {
	s, err := Open("", 0, nil)
	require.NoError(t, err)
	defer s.Close()

	s.Set("1", "Inception", "2010", successEntry("1", "", "Inception", "2010"))
	require.NotNil(t, s.Get("1", "Inception", "2010"))

	_, storage := s.Stats()
	require.Zero(t, storage)
}
