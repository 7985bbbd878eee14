package nodetemplate

import (
	"bytes"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evaluateOnly struct{}

func (evaluateOnly) Evaluate(trait.ExecutionContext, trait.Binding) {}

type updateOnly struct{}

func (updateOnly) Update(trait.ExecutionContext, trait.Binding) {}

func newCatalog(t *testing.T) *trait.Registry {
	t.Helper()
	r := trait.NewRegistry()
	r.RegisterStatic(trait.Descriptor{Name: "A", SharedSize: 8, SharedAlign: 4, InstanceSize: 16, InstanceAlign: 8, Impl: evaluateOnly{}})
	r.RegisterStatic(trait.Descriptor{Name: "B", SharedSize: 4, SharedAlign: 4, InstanceSize: 4, InstanceAlign: 4, Impl: updateOnly{}})
	r.RegisterStatic(trait.Descriptor{
		Name: "Latent",
		Mode: trait.ModeAdditive,
		Fields: []trait.Field{
			{Name: "alpha", Kind: trait.KindFloat32, Latent: true},
			{Name: "count", Kind: trait.KindInt32},
			{Name: "weight", Kind: trait.KindFloat64, Latent: true},
		},
		InstanceSize:  4,
		InstanceAlign: 4,
		Impl:          evaluateOnly{},
	})
	r.RegisterStatic(trait.Descriptor{Name: "Additive", Mode: trait.ModeAdditive, SharedSize: 1, SharedAlign: 1})
	return r
}

func uids(names ...string) []trait.UID {
	out := make([]trait.UID, len(names))
	for i, n := range names {
		out[i] = trait.MakeUID(n)
	}
	return out
}

func TestBuild(t *testing.T) {
	cat := newCatalog(t)

	t.Run("two aligned traits", func(t *testing.T) {
		tpl, err := Build(cat, uids("A", "B"))
		require.NoError(t, err)
		require.Len(t, tpl.Traits, 2)
		assert.Equal(t, uint32(0), tpl.Traits[0].SharedOffset)
		assert.Equal(t, uint32(8), tpl.Traits[1].SharedOffset)
		assert.Equal(t, uint32(12), tpl.SharedSize)
		assert.Equal(t, uint32(0), tpl.Traits[0].InstanceOffset)
		assert.Equal(t, uint32(16), tpl.Traits[1].InstanceOffset)
		assert.Equal(t, uint32(24), tpl.InstanceSize)
	})

	t.Run("latent tables and values", func(t *testing.T) {
		tpl, err := Build(cat, uids("B", "Latent"))
		require.NoError(t, err)
		l := tpl.Traits[1]
		// Latent fields: alpha@0 count@4 weight@8, 16 bytes.
		assert.Equal(t, uint32(8), l.SharedOffset)
		assert.Equal(t, uint32(16), l.SharedSize)
		assert.Equal(t, 2, l.NumLatent)
		assert.Equal(t, uint32(24), l.LatentHandlesOffset)
		assert.Equal(t, uint32(40), tpl.SharedSize)

		assert.Equal(t, uint32(4), l.InstanceOffset)
		// alpha float32 @0, weight float64 @8 -> 16 bytes at align 8.
		assert.Equal(t, uint32(8), l.LatentValuesOffset)
		assert.Equal(t, uint32(8), tpl.LatentValueOffset(1, 0))
		assert.Equal(t, uint32(16), tpl.LatentValueOffset(1, 1))
		assert.Equal(t, uint32(24), tpl.InstanceSize)
	})

	t.Run("interface table is topmost first", func(t *testing.T) {
		tpl, err := Build(cat, uids("A", "B", "Latent"))
		require.NoError(t, err)
		assert.Equal(t, []uint8{2, 0}, tpl.Implementers(trait.CapEvaluate))
		assert.Equal(t, []uint8{1}, tpl.Implementers(trait.CapUpdate))
		assert.Empty(t, tpl.Implementers(trait.CapHierarchy))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Build(cat, nil)
		assert.ErrorIs(t, err, ErrEmptyTemplate)

		_, err = Build(cat, uids("A", "Missing"))
		assert.ErrorIs(t, err, ErrUnknownTrait)

		_, err = Build(cat, uids("Additive", "A"))
		assert.ErrorIs(t, err, ErrInvalidComposition)
	})
}

func TestRegistryDeduplicates(t *testing.T) {
	cat := newCatalog(t)
	reg := NewRegistry(cat)

	first, err := reg.FindOrAdd(uids("A", "B"))
	require.NoError(t, err)
	again, err := reg.FindOrAdd(uids("A", "B"))
	require.NoError(t, err)
	assert.Same(t, first, again)

	swapped, err := reg.FindOrAdd(uids("B", "A"))
	require.NoError(t, err)
	assert.NotSame(t, first, swapped)
	assert.NotEqual(t, first.UID, swapped.UID)
	assert.NotEqual(t, first.Traits[1].SharedOffset, swapped.Traits[1].SharedOffset)

	found, ok := reg.Find(first.UID)
	require.True(t, ok)
	assert.Same(t, first, found)

	byUIDs, ok := reg.FindByUIDs(uids("B", "A"))
	require.True(t, ok)
	assert.Same(t, swapped, byUIDs)

	_, ok = reg.FindByUIDs(uids("A"))
	assert.False(t, ok)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryArenaOverflow(t *testing.T) {
	cat := newCatalog(t)
	reg := NewRegistry(cat, WithArenaCapacity(1))

	a, err := reg.FindOrAdd(uids("A"))
	require.NoError(t, err)
	b, err := reg.FindOrAdd(uids("B"))
	require.NoError(t, err)

	assert.Len(t, reg.arena, 1)
	assert.Len(t, reg.overflow, 1)
	again, _ := reg.FindOrAdd(uids("A"))
	assert.Same(t, a, again)
	again, _ = reg.FindOrAdd(uids("B"))
	assert.Same(t, b, again)
}

func TestRegistryPurgesOnUnregister(t *testing.T) {
	cat := newCatalog(t)
	cat.Register(trait.Descriptor{Name: "Plugin", SharedSize: 4, SharedAlign: 4})
	reg := NewRegistry(cat)

	_, err := reg.FindOrAdd(uids("Plugin"))
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	cat.Unregister(trait.MakeUID("Plugin"))
	assert.Equal(t, 0, reg.Len())
}

func TestDump(t *testing.T) {
	cat := newCatalog(t)
	reg := NewRegistry(cat)
	_, err := reg.FindOrAdd(uids("A", "B"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reg.Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "1 node templates")
	assert.Contains(t, out, "2 traits, shared 12 (align 4), instance 24 (align 8)")
	assert.Contains(t, out, "[1] "+trait.MakeUID("B").String()+" B (base): shared @8+4")
}
