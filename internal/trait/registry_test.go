package trait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateOnly struct{}

func (updateOnly) Update(ExecutionContext, Binding) {}

func sample(name string) Descriptor {
	return Descriptor{
		Name: name,
		Fields: []Field{
			{Name: "a", Kind: KindInt32},
			{Name: "b", Kind: KindFloat32, Latent: true},
		},
		Impl: updateOnly{},
	}
}

func TestRegister(t *testing.T) {
	t.Run("computes layout and capabilities", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterStatic(sample("Blend"))

		d, ok := r.FindByName("Blend")
		require.True(t, ok)
		assert.Equal(t, MakeUID("Blend"), d.UID)
		assert.Equal(t, uint32(8), d.SharedSize)
		assert.Equal(t, uint32(4), d.SharedAlign)
		assert.Equal(t, uint32(4), d.Fields[1].Offset)
		assert.Equal(t, 1, d.NumLatentProperties())
		assert.True(t, d.Capabilities().Has(CapUpdate))
		assert.False(t, d.Capabilities().Has(CapEvaluate))
	})

	t.Run("same descriptor twice is a no-op", func(t *testing.T) {
		r := NewRegistry()
		h1 := r.RegisterStatic(sample("Blend"))
		h2 := r.RegisterStatic(sample("Blend"))
		assert.Equal(t, h1, h2)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("conflicting uid panics", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterStatic(sample("Blend"))
		other := sample("Blend")
		other.Fields = other.Fields[:1]
		assert.PanicsWithValue(t, "trait 'Blend' already registered with uid "+MakeUID("Blend").String(), func() {
			r.RegisterStatic(other)
		})
	})

	t.Run("invalid layout panics", func(t *testing.T) {
		r := NewRegistry()
		assert.Panics(t, func() {
			r.Register(Descriptor{Name: "Bad", SharedSize: 2, Fields: []Field{{Name: "x", Kind: KindInt32}}})
		})
		assert.Panics(t, func() {
			r.Register(Descriptor{Name: "Bad", SharedAlign: 3})
		})
	})
}

func TestArenaOverflow(t *testing.T) {
	r := NewRegistry(WithArenaBytes(2 * staticSlotBytes))
	require.Equal(t, 2, r.ArenaCapacity())

	a := r.RegisterStatic(sample("A"))
	b := r.RegisterStatic(sample("B"))
	c := r.RegisterStatic(sample("C"))

	assert.True(t, a.IsStatic())
	assert.True(t, b.IsStatic())
	assert.False(t, c.IsStatic(), "third static trait overflows into the dynamic table")

	d, ok := r.FindByName("C")
	require.True(t, ok)
	assert.Equal(t, "C", d.Name)

	assert.Panics(t, func() { r.Unregister(d.UID) }, "overflowed static traits stay static")
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	var removed []UID
	r.OnUnregister(func(uid UID) { removed = append(removed, uid) })

	h := r.Register(sample("Plugin"))
	require.False(t, h.IsStatic())
	uid := MakeUID("Plugin")

	t.Run("referenced trait cannot be removed", func(t *testing.T) {
		r.Retain(uid)
		assert.Panics(t, func() { r.Unregister(uid) })
		r.Release(uid)
	})

	r.Unregister(uid)
	_, ok := r.Find(uid)
	assert.False(t, ok)
	assert.Equal(t, []UID{uid}, removed)
	assert.Equal(t, InvalidHandle, r.Handle(uid))

	// The freed slot is reused.
	h2 := r.Register(sample("Other"))
	assert.Equal(t, h, h2)

	// Unknown UIDs are ignored.
	r.Unregister(MakeUID("nope"))
}

func TestListAndSuggest(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"Blend", "Sequence", "Constant"} {
		r.RegisterStatic(sample(n))
	}
	list := r.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].UID, list[i].UID)
	}
	assert.Equal(t, "Blend", r.Suggest("Blnd"))
	assert.Equal(t, "", r.Suggest("CompletelyDifferent"))
}

func TestAutoRegister(t *testing.T) {
	AutoRegister(sample("AutoTrait"))
	r := NewRegistry()
	RegisterStatics(r)
	_, ok := r.FindByName("AutoTrait")
	assert.True(t, ok)

	_, ok = Default().FindByName("AutoTrait")
	assert.True(t, ok)
}
