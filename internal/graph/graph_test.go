package graph

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/testutil"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// rootTrait counts lifecycle and update calls in its instance data and walks
// its child handle.
type rootTrait struct {
	constructed, destructed int
	speeds                  []any
}

func (r *rootTrait) Construct(b trait.Binding) {
	r.constructed++
	binary.LittleEndian.PutUint32(b.Instance, 7)
}

func (r *rootTrait) Destruct(trait.Binding) { r.destructed++ }

func (r *rootTrait) Update(_ trait.ExecutionContext, b trait.Binding) {
	binary.LittleEndian.PutUint32(b.Instance, binary.LittleEndian.Uint32(b.Instance)+1)
	v, _ := b.Value("speed")
	r.speeds = append(r.speeds, v)
}

func (r *rootTrait) Children(b trait.Binding) []handle.Node {
	v, _ := b.Value("child")
	return []handle.Node{v.(handle.Node)}
}

type leafTrait struct {
	values []any
}

func (l *leafTrait) Evaluate(_ trait.ExecutionContext, b trait.Binding) {
	v, _ := b.Value("value")
	l.values = append(l.values, v)
}

type fixture struct {
	templates *nodetemplate.Registry
	root      *rootTrait
	leaf      *leafTrait
	archive   *graphio.Archive
}

func jsonType(t *testing.T, ty cty.Type) []byte {
	t.Helper()
	b, err := ctyjson.MarshalType(ty)
	require.NoError(t, err)
	return b
}

func jsonValue(t *testing.T, v cty.Value) []byte {
	t.Helper()
	b, err := ctyjson.Marshal(v, v.Type())
	require.NoError(t, err)
	return b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{root: &rootTrait{}, leaf: &leafTrait{}}
	cat := trait.NewRegistry()
	cat.Register(trait.Descriptor{
		Name: "Driver",
		Fields: []trait.Field{
			{Name: "child", Kind: trait.KindNodeHandle},
			{Name: "speed", Kind: trait.KindFloat32, Latent: true},
			{Name: "gain", Kind: trait.KindFloat32, Latent: true},
		},
		InstanceSize:  4,
		InstanceAlign: 4,
		Impl:          f.root,
	})
	cat.RegisterStatic(trait.Descriptor{
		Name:   "Constant",
		Fields: []trait.Field{{Name: "value", Kind: trait.KindInt32}},
		Impl:   f.leaf,
	})
	f.templates = nodetemplate.NewRegistry(cat)

	w, err := graphio.WriteGraph(f.templates, []graphio.NodeSpec{
		{
			Traits: []trait.UID{trait.MakeUID("Driver")},
			Values: []map[string]graphio.Value{{
				"child": graphio.NodeRef(1),
				"speed": graphio.Latent(0, true),
				"gain":  graphio.Latent(1, false),
			}},
		},
		{
			Traits: []trait.UID{trait.MakeUID("Constant")},
			Values: []map[string]graphio.Value{{"value": graphio.Literal(cty.NumberIntVal(42))}},
		},
	})
	require.NoError(t, err)

	f.archive = &graphio.Archive{
		Name:        "locomotion",
		Stream:      w.Stream(),
		EntryPoints: []graphio.EntryPointEntry{{Name: "Root", Node: 0}, {Name: "Leaf", Node: 1}},
		Programs:    []string{`var.speed * var.scale`, `var.scale + 1`},
		Variables: []graphio.VariableEntry{
			{Name: "speed", Type: jsonType(t, cty.Number), Default: jsonValue(t, cty.NumberIntVal(2)), Interface: "Locomotion"},
			{Name: "scale", Type: jsonType(t, cty.Number), Default: jsonValue(t, cty.NumberIntVal(3))},
		},
		Interfaces: []graphio.InterfaceEntry{{Name: "Locomotion", Variables: []string{"speed"}}},
	}
	return f
}

func (f *fixture) load(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	ctx, _ := testutil.Context(t)
	g, err := Load(ctx, f.templates, f.archive, opts...)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)

	assert.False(t, g.IsEmpty())
	assert.Len(t, g.Nodes(), 2)
	assert.Equal(t, []string{"Root", "Leaf"}, g.EntryPoints())
	assert.Equal(t, "Root", g.DefaultEntryPoint())
	assert.True(t, g.EntryPoint("").IsValid())
	assert.False(t, g.EntryPoint("Missing").IsValid())
	assert.True(t, g.HasPublicVariables())
	assert.Equal(t, []DataInterface{{Name: "Locomotion", Variables: []string{"speed"}}}, g.Interfaces())
	assert.Len(t, g.Programs(), 2)
	assert.NoError(t, g.Err())

	v, ok := g.Variable("scale")
	require.True(t, ok)
	assert.True(t, v.Default.Equals(cty.NumberIntVal(3)).True())
	assert.False(t, v.IsPublic())

	assert.Panics(t, func() { f.templates.Traits().Unregister(trait.MakeUID("Driver")) })
	g.Close()
	assert.NotPanics(t, func() { f.templates.Traits().Unregister(trait.MakeUID("Driver")) })
}

func TestLoadRejectsBadTables(t *testing.T) {
	ctx, _ := testutil.Context(t)

	t.Run("program references undeclared variable", func(t *testing.T) {
		f := newFixture(t)
		f.archive.Programs = []string{`var.nope`}
		_, err := Load(ctx, f.templates, f.archive)
		assert.ErrorContains(t, err, "unknown variable")
	})

	t.Run("interface lists unknown variable", func(t *testing.T) {
		f := newFixture(t)
		f.archive.Interfaces[0].Variables = []string{"speed", "ghost"}
		_, err := Load(ctx, f.templates, f.archive)
		assert.ErrorContains(t, err, "unknown variable 'ghost'")
	})

	t.Run("corrupt stream", func(t *testing.T) {
		f := newFixture(t)
		f.archive.Stream = f.archive.Stream[:10]
		_, err := Load(ctx, f.templates, f.archive)
		assert.ErrorIs(t, err, graphio.ErrCorruptStream)
	})
}

func TestLoadTooLargeIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx, logs := testutil.Context(t)
	g, err := Load(ctx, f.templates, f.archive, WithMaxSharedDataSize(20))
	require.NoError(t, err)

	assert.True(t, g.IsEmpty())
	assert.ErrorIs(t, g.Err(), graphio.ErrGraphTooLarge)
	assert.Contains(t, logs.String(), "loaded empty")

	inst := Allocate(ctx, g, nil, "Root")
	assert.False(t, inst.IsValid())
	assert.Equal(t, 0, g.LiveInstances())
	assert.ErrorIs(t, inst.Update(ctx, 0.016), ErrReleased)
}

func TestAllocateUpdateRelease(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, _ := testutil.Context(t)

	inst := Allocate(ctx, g, nil, "Root")
	require.True(t, inst.IsValid())
	assert.True(t, inst.IsRoot())
	assert.Equal(t, BindingUnbound, inst.Binding())
	assert.Len(t, inst.NodeInstances(), 2)
	assert.Equal(t, 1, f.root.constructed)
	assert.Equal(t, 1, g.LiveInstances())

	root := inst.NodeInstances()[0]
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(root.Data))

	require.NoError(t, inst.Update(ctx, 0.016))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(root.Data))
	assert.Equal(t, []any{float32(6)}, f.root.speeds)
	assert.Equal(t, []any{int32(42)}, f.leaf.values)

	require.NoError(t, inst.SetVariable("speed", cty.NumberIntVal(5)))
	require.NoError(t, inst.Update(ctx, 0.016))
	assert.Equal(t, []any{float32(6), float32(15)}, f.root.speeds)

	assert.Error(t, inst.SetVariable("speed", cty.StringVal("fast")))
	assert.Error(t, inst.SetVariable("ghost", cty.NumberIntVal(1)))

	inst.Release()
	inst.Release()
	assert.Equal(t, 1, f.root.destructed)
	assert.False(t, inst.IsValid())
	assert.Equal(t, 0, g.LiveInstances())
	assert.ErrorIs(t, inst.Update(ctx, 0.016), ErrReleased)
}

func TestAllocateFromSecondaryEntry(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, logs := testutil.Context(t)

	leaf := Allocate(ctx, g, nil, "Leaf")
	require.True(t, leaf.IsValid())
	assert.Len(t, leaf.NodeInstances(), 1)
	assert.Equal(t, 0, f.root.constructed)
	leaf.Release()

	missing := Allocate(ctx, g, nil, "Nowhere")
	assert.False(t, missing.IsValid())
	assert.Contains(t, logs.String(), "Entry point does not resolve")
	missing.Release()
}

func TestBindingLaw(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, _ := testutil.Context(t)

	host := NewHost()
	hostSpeed := host.Declare("speed", cty.Number, cty.NumberIntVal(10), "Locomotion")

	inst := Allocate(ctx, g, host, "")
	defer inst.Release()
	own := inst.VariableCell("speed")
	scale := inst.VariableCell("scale")

	inst.BindPublicVariables()
	assert.Equal(t, BindingBound, inst.Binding())
	assert.Same(t, hostSpeed, inst.VariableCell("speed"))
	assert.Same(t, scale, inst.VariableCell("scale"))
	v, _ := inst.Variable("speed")
	assert.True(t, v.Equals(cty.NumberIntVal(10)).True())

	require.NoError(t, inst.SetVariable("speed", cty.NumberIntVal(11)))
	assert.True(t, hostSpeed.Get().Equals(cty.NumberIntVal(11)).True())

	inst.UnbindPublicVariables()
	assert.Equal(t, BindingUnbound, inst.Binding())
	assert.Same(t, own, inst.VariableCell("speed"))
	v, _ = inst.Variable("speed")
	assert.True(t, v.Equals(cty.NumberIntVal(2)).True())

	inst.BindPublicVariables()
	assert.Same(t, hostSpeed, inst.VariableCell("speed"))
}

func TestBindingMismatchAndExplicitHosts(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)

	t.Run("type mismatch is skipped", func(t *testing.T) {
		ctx, logs := testutil.Context(t)
		host := NewHost()
		host.Declare("speed", cty.String, cty.StringVal("fast"), "Locomotion")
		inst := Allocate(ctx, g, host, "")
		defer inst.Release()

		inst.BindPublicVariables()
		assert.Equal(t, BindingUnbound, inst.Binding())
		assert.Contains(t, logs.String(), "type mismatch")
	})

	t.Run("count mismatch is skipped", func(t *testing.T) {
		ctx, logs := testutil.Context(t)
		host := NewHost()
		host.Declare("speed", cty.Number, cty.NumberIntVal(1), "Locomotion")
		host.Declare("turn", cty.Number, cty.NumberIntVal(1), "Locomotion")
		inst := Allocate(ctx, g, host, "")
		defer inst.Release()

		inst.BindPublicVariables()
		assert.Equal(t, BindingUnbound, inst.Binding())
		assert.Contains(t, logs.String(), "count mismatch")
	})

	t.Run("explicit host matches by name", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		explicit := NewHost()
		cell := explicit.Declare("speed", cty.Number, cty.NumberIntVal(4), "")
		inst := Allocate(ctx, g, nil, "")
		defer inst.Release()

		inst.BindPublicVariables(explicit)
		assert.Equal(t, BindingBound, inst.Binding())
		assert.Same(t, cell, inst.VariableCell("speed"))
	})

	t.Run("explicit host binds the slots it declares", func(t *testing.T) {
		ctx, logs := testutil.Context(t)
		f := newFixture(t)
		f.archive.Variables = append(f.archive.Variables, graphio.VariableEntry{
			Name: "turn", Type: jsonType(t, cty.Number), Default: jsonValue(t, cty.NumberIntVal(0)), Interface: "Locomotion",
		})
		f.archive.Interfaces[0].Variables = []string{"speed", "turn"}
		g := f.load(t)

		explicit := NewHost()
		speed := explicit.Declare("speed", cty.Number, cty.NumberIntVal(6), "")
		inst := Allocate(ctx, g, nil, "")
		defer inst.Release()
		turn := inst.VariableCell("turn")

		inst.BindPublicVariables(explicit)
		assert.Equal(t, BindingBound, inst.Binding())
		assert.Same(t, speed, inst.VariableCell("speed"))
		assert.Same(t, turn, inst.VariableCell("turn"))
		assert.NotContains(t, logs.String(), "count mismatch")

		inst.UnbindPublicVariables()
		assert.NotSame(t, speed, inst.VariableCell("speed"))
	})

	t.Run("explicit host skips only mistyped slots", func(t *testing.T) {
		ctx, logs := testutil.Context(t)
		f := newFixture(t)
		f.archive.Variables = append(f.archive.Variables, graphio.VariableEntry{
			Name: "turn", Type: jsonType(t, cty.Number), Default: jsonValue(t, cty.NumberIntVal(0)), Interface: "Locomotion",
		})
		f.archive.Interfaces[0].Variables = []string{"speed", "turn"}
		g := f.load(t)

		explicit := NewHost()
		explicit.Declare("speed", cty.String, cty.StringVal("fast"), "")
		turn := explicit.Declare("turn", cty.Number, cty.NumberIntVal(1), "")
		inst := Allocate(ctx, g, nil, "")
		defer inst.Release()
		own := inst.VariableCell("speed")

		inst.BindPublicVariables(explicit)
		assert.Equal(t, BindingBound, inst.Binding())
		assert.Same(t, own, inst.VariableCell("speed"))
		assert.Same(t, turn, inst.VariableCell("turn"))
		testutil.AssertLogged(t, logs, "WARN", "type mismatch", "variable=speed")
	})

	t.Run("explicit host without matching names leaves the instance unbound", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		explicit := NewHost()
		explicit.Declare("heading", cty.Number, cty.NumberIntVal(1), "")
		inst := Allocate(ctx, g, nil, "")
		defer inst.Release()

		inst.BindPublicVariables(explicit)
		assert.Equal(t, BindingUnbound, inst.Binding())
	})

	t.Run("graph without public variables stays none", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		f := newFixture(t)
		f.archive.Variables[0].Interface = ""
		f.archive.Interfaces = nil
		g := f.load(t)
		host := NewHost()
		host.Declare("speed", cty.Number, cty.NumberIntVal(1), "Locomotion")
		inst := Allocate(ctx, g, host, "")
		defer inst.Release()

		assert.Equal(t, BindingNone, inst.Binding())
		inst.BindPublicVariables(host)
		assert.Equal(t, BindingNone, inst.Binding())
	})
}

type counter struct{ n int }

var counterComponent = ComponentType[counter]{Name: "test.counter"}

func TestNestedInstancesShareRootComponents(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, _ := testutil.Context(t)

	host := NewHost()
	host.Declare("speed", cty.Number, cty.NumberIntVal(9), "Locomotion")
	parent := Allocate(ctx, g, host, "")
	parent.BindPublicVariables()
	child := Allocate(ctx, g, parent, "Leaf")

	assert.False(t, child.IsRoot())
	assert.Same(t, parent, child.Root())
	assert.Same(t, parent, child.Parent())

	_, ok := TryGetComponent(parent, counterComponent)
	assert.False(t, ok)
	GetOrAddComponent(child, counterComponent).n++
	GetOrAddComponent(parent, counterComponent).n++
	c, ok := TryGetComponent(parent, counterComponent)
	require.True(t, ok)
	assert.Equal(t, 2, c.n)

	child.BindPublicVariables()
	assert.Equal(t, BindingBound, child.Binding())
	assert.Same(t, parent.VariableCell("speed"), child.VariableCell("speed"))

	child.Release()
	parent.Release()
	_, ok = TryGetComponent(parent, counterComponent)
	assert.False(t, ok)
	assert.Panics(t, func() { GetOrAddComponent(child, counterComponent) })
	assert.Equal(t, 0, g.LiveInstances())
}

func TestFreezeSkipsFreezablePins(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, _ := testutil.Context(t)

	inst := Allocate(ctx, g, nil, "")
	defer inst.Release()
	root := inst.NodeInstances()[0]
	pins := inst.LatentPins(root, 0)
	require.Len(t, pins, 2)
	assert.True(t, pins[0].Freezable)
	assert.False(t, pins[1].Freezable)

	assert.Equal(t, 2, inst.ExecuteLatentPins(pins, root.Data, false))
	b := inst.bindingFor(root, 0)
	speed, _ := b.Value("speed")
	gain, _ := b.Value("gain")
	assert.Equal(t, float32(6), speed)
	assert.Equal(t, float32(4), gain)

	inst.Freeze()
	assert.Equal(t, FrozenPendingThaw, inst.State())
	assert.ErrorIs(t, inst.Update(ctx, 0.016), ErrFrozen)
	assert.Panics(t, inst.Freeze)

	require.NoError(t, inst.SetVariable("scale", cty.NumberIntVal(10)))
	assert.Equal(t, 1, inst.RefreshLatent())
	speed, _ = b.Value("speed")
	gain, _ = b.Value("gain")
	assert.Equal(t, float32(6), speed)
	assert.Equal(t, float32(11), gain)

	inst.Thaw()
	assert.Panics(t, inst.Thaw)
	assert.Equal(t, 2, inst.RefreshLatent())
	speed, _ = b.Value("speed")
	assert.Equal(t, float32(20), speed)
}

func TestFreezeWhileUpdating(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, _ := testutil.Context(t)
	inst := Allocate(ctx, g, nil, "")
	defer inst.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			err := inst.Update(ctx, 1.0/60)
			if err != nil {
				assert.ErrorIs(t, err, ErrFrozen)
			}
		}
	}()
	for range 200 {
		inst.Freeze()
		assert.Equal(t, FrozenPendingThaw, inst.State())
		inst.Thaw()
	}
	wg.Wait()
	assert.Equal(t, Live, inst.State())
}

func TestExecuteLatentPinsSkipsBadPins(t *testing.T) {
	f := newFixture(t)
	g := f.load(t)
	ctx, logs := testutil.Context(t)
	inst := Allocate(ctx, g, nil, "")
	defer inst.Release()

	pins := []LatentPin{
		{LatentHandle: trait.LatentHandle{Program: trait.NoProgram}, Kind: trait.KindFloat32, Name: "inline"},
		{LatentHandle: trait.LatentHandle{Program: 9}, Kind: trait.KindFloat32, Name: "missing"},
		{LatentHandle: trait.LatentHandle{Program: 0, ValueOffset: 2}, Kind: trait.KindFloat32, Name: "overflow"},
		{LatentHandle: trait.LatentHandle{Program: 0}, Kind: trait.KindBool, Name: "wrongkind"},
		{LatentHandle: trait.LatentHandle{Program: 1}, Kind: trait.KindInt32, Name: "ok"},
	}
	dest := make([]byte, 4)
	assert.Equal(t, 1, inst.ExecuteLatentPins(pins, dest, false))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(dest))
	assert.Contains(t, logs.String(), "missing program")
	assert.Contains(t, logs.String(), "outside the destination")
	assert.Contains(t, logs.String(), "unusable value")
}

func TestDispatchEvent(t *testing.T) {
	cat := trait.NewRegistry()
	handler := &eventSink{}
	cat.RegisterStatic(trait.Descriptor{Name: "Sink", Impl: handler})
	templates := nodetemplate.NewRegistry(cat)
	w, err := graphio.WriteGraph(templates, []graphio.NodeSpec{{Traits: []trait.UID{trait.MakeUID("Sink")}}})
	require.NoError(t, err)

	ctx, _ := testutil.Context(t)
	g, err := Load(ctx, templates, &graphio.Archive{Name: "events", Stream: w.Stream(), EntryPoints: []graphio.EntryPointEntry{{Name: "Root"}}})
	require.NoError(t, err)
	inst := Allocate(ctx, g, nil, "")

	assert.True(t, inst.DispatchEvent(ctx, namedEvent("jump")))
	assert.False(t, inst.DispatchEvent(ctx, namedEvent("ignored")))
	assert.Equal(t, []string{"jump", "ignored"}, handler.seen)

	inst.Release()
	assert.False(t, inst.DispatchEvent(ctx, namedEvent("jump")))
}

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

type eventSink struct{ seen []string }

func (s *eventSink) OnEvent(_ trait.ExecutionContext, _ trait.Binding, ev trait.Event) bool {
	s.seen = append(s.seen, ev.EventName())
	return ev.EventName() == "jump"
}
