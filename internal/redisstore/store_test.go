package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
	"github.com/specialistvlad/traitgraph/internal/graphstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewFromClient(client, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestContract(t *testing.T) {
	s, _ := newStore(t)
	storetest.RunContract(t, s)
}

func TestPrefixAndTTL(t *testing.T) {
	s, mr := newStore(t, WithPrefix("test:"), WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Put(ctx, storetest.Archive("walk")))

	assert.True(t, mr.Exists("test:walk"))
	assert.Equal(t, time.Minute, mr.TTL("test:walk"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "walk")
	assert.ErrorIs(t, err, graphstore.ErrNotFound)
}

func TestListPrunesExpiredEntries(t *testing.T) {
	s, mr := newStore(t, WithTTL(time.Second))
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storetest.Archive("walk")))

	// Index scores are wall-clock based; age the entry directly.
	_, err := mr.ZAdd(s.indexKey(), float64(time.Now().Add(-time.Hour).Unix()), "walk")
	require.NoError(t, err)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestUnreachableServer(t *testing.T) {
	s := New("127.0.0.1:1", "", 0)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Get(ctx, "walk")
	require.Error(t, err)
	assert.NotErrorIs(t, err, graphstore.ErrNotFound)
}
