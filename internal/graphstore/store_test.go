package graphstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/graphstore"
	"github.com/specialistvlad/traitgraph/internal/graphstore/storetest"
	"github.com/specialistvlad/traitgraph/internal/inmemorystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, graphstore.ValidateName("walk_cycle"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, graphstore.ValidateName(bad), graphstore.ErrInvalidName, bad)
	}
}

type op struct {
	backend, name string
	failed        bool
}

type recorder struct{ ops []op }

func (r *recorder) StoreOperation(backend, name string, err error) {
	r.ops = append(r.ops, op{backend, name, err != nil})
}

func TestInstrument(t *testing.T) {
	rec := &recorder{}
	s := graphstore.Instrument(inmemorystore.New(), "memory", rec)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, storetest.Archive("walk")))
	_, err := s.Get(ctx, "walk")
	require.NoError(t, err)
	_, err = s.Get(ctx, "nope")
	require.True(t, errors.Is(err, graphstore.ErrNotFound))
	_, err = s.List(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "walk"))
	require.NoError(t, s.Close())

	assert.Equal(t, []op{
		{"memory", "put", false},
		{"memory", "get", false},
		{"memory", "get", true},
		{"memory", "list", false},
		{"memory", "delete", false},
	}, rec.ops)
}
