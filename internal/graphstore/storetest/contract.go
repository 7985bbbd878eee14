// Package storetest holds the behavior every graphstore.Store must have.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Archive returns a small archive named name.
func Archive(name string) *graphio.Archive {
	return &graphio.Archive{
		Name:         name,
		Stream:       []byte("TGRF\x00\x00\x00\x00\x00\x00\x00\x00"),
		EntryPoints:  []graphio.EntryPointEntry{{Name: "Root", Node: 0}},
		DefaultEntry: "Root",
		Programs:     []string{"var.speed * 2"},
		Created:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// RunContract exercises s. s must start empty.
func RunContract(t *testing.T, s graphstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), graphstore.ErrNotFound)
	})

	t.Run("put get list delete", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, Archive("walk")))
		require.NoError(t, s.Put(ctx, Archive("idle")))

		got, err := s.Get(ctx, "walk")
		require.NoError(t, err)
		want := Archive("walk")
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Stream, got.Stream)
		assert.Equal(t, want.EntryPoints, got.EntryPoints)
		assert.Equal(t, want.Programs, got.Programs)
		assert.True(t, want.Created.Equal(got.Created))

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"idle", "walk"}, names)

		require.NoError(t, s.Delete(ctx, "walk"))
		_, err = s.Get(ctx, "walk")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
		require.NoError(t, s.Delete(ctx, "idle"))
	})

	t.Run("put replaces", func(t *testing.T) {
		a := Archive("run")
		require.NoError(t, s.Put(ctx, a))
		a.Programs = []string{"var.speed * 4"}
		require.NoError(t, s.Put(ctx, a))

		got, err := s.Get(ctx, "run")
		require.NoError(t, err)
		assert.Equal(t, []string{"var.speed * 4"}, got.Programs)
		require.NoError(t, s.Delete(ctx, "run"))
	})

	t.Run("invalid names", func(t *testing.T) {
		assert.ErrorIs(t, s.Put(ctx, Archive("")), graphstore.ErrInvalidName)
		assert.ErrorIs(t, s.Put(ctx, Archive("a/b")), graphstore.ErrInvalidName)
		_, err := s.Get(ctx, "../etc")
		assert.ErrorIs(t, err, graphstore.ErrInvalidName)
	})
}
