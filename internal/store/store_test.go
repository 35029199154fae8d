package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for _, typ := range []string{"sqlite", "SQLite3", ""} {
		s, err := NewStore(StoreConfig{Type: typ, ConnectionString: dbPath})
		require.NoError(t, err, typ)
		_, ok := s.(*SQLiteStore)
		assert.True(t, ok, "Expected a SQLiteStore instance for %q", typ)
		require.NoError(t, s.Close())
	}
}

func TestNewStore_Errors(t *testing.T) {
	_, err := NewStore(StoreConfig{Type: "postgres"})
	assert.EqualError(t, err, "postgres connection string is required")

	_, err = NewStore(StoreConfig{Type: "mongo"})
	assert.EqualError(t, err, "unsupported store type: mongo")
}

func TestSQLiteStore_History(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRecord(ctx, Record{Source: "slack", Channel: "general", Sender: "alice", Text: fmt.Sprintf("msg %d", i)}))
	}
	require.NoError(t, s.SaveRecord(ctx, Record{Source: "slack", Channel: "random", Sender: "bob", Text: "elsewhere"}))
	require.NoError(t, s.SaveRecord(ctx, Record{Source: "discord", Channel: "general", Sender: "carol", Text: "other platform"}))

	recs, err := s.History(ctx, "slack", "general", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "msg 4", recs[0].Text)
	assert.Equal(t, "msg 2", recs[2].Text)
	assert.False(t, recs[0].CreatedAt.IsZero())

	recs, err = s.History(ctx, "", "general", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 6)
	assert.Equal(t, "other platform", recs[0].Text)

	recs, err = s.History(ctx, "", "", 100)
	require.NoError(t, err)
	assert.Len(t, recs, 7)

	recs, err = s.History(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteStore_KeepsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRecord(ctx, Record{Source: "a", Channel: "b", Sender: "c", Text: "d", CreatedAt: at}))
	recs, err := s.History(ctx, "a", "b", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, at.Equal(recs[0].CreatedAt), "got %v", recs[0].CreatedAt)
}

func TestSQLiteStore_Facts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetFact(ctx, "user:alice", "mood")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetFact(ctx, "user:alice", "mood", "happy"))
	require.NoError(t, s.SetFact(ctx, "user:alice", "mood", "sleepy"))
	require.NoError(t, s.SetFact(ctx, "user:bob", "mood", "grumpy"))

	v, ok, err := s.GetFact(ctx, "user:alice", "mood")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sleepy", v)

	v, _, err = s.GetFact(ctx, "user:bob", "mood")
	require.NoError(t, err)
	assert.Equal(t, "grumpy", v)
}

func TestSQLiteStore_Increment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Increment(ctx, "global", "pings", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.Increment(ctx, "global", "pings", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	v, err = s.Increment(ctx, "other", "pings", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)
}

func TestSQLiteStore_ConcurrentIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(ctx, "global", "n", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := s.Increment(ctx, "global", "n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetFact(ctx, "s", "k", "v"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.GetFact(ctx, "s", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestDollarPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT $1, $2 WHERE a = $3", dollarPlaceholders("SELECT ?, ? WHERE a = ?"))
	assert.Equal(t, "SELECT 1", dollarPlaceholders("SELECT 1"))
}
