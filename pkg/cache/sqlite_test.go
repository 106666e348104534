package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	val, _, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)

	require.NoError(t, s.Set(ctx, "k", []byte("value"), time.Hour))
	val, remaining, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), val)
	assert.InDelta(t, time.Hour.Seconds(), remaining.Seconds(), 5)

	// Upsert replaces in place.
	require.NoError(t, s.Set(ctx, "k", []byte("value2"), time.Hour))
	val, _, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value2"), val)
}

func TestSQLiteExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, _, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries read as misses")
}

func TestSQLitePrune(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "old", []byte("v"), -time.Minute))
	require.NoError(t, s.Set(ctx, "fresh", []byte("v"), time.Hour))

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, _, ok, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("survives"), time.Hour))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	val, _, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("survives"), val)
}

func TestCompressRoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte(`{"duration_minutes":42,"mode":"public_transit"}`), 100)

	packed, err := compress(big)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(big))

	out, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, big, out)

	// Payloads without the gzip magic pass through untouched.
	out, err = decompress([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}
