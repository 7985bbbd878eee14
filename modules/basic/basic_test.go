package basic

import (
	"testing"

	"github.com/specialistvlad/traitgraph/internal/graph"
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

type event string

func (e event) EventName() string { return string(e) }

func newGraph(t *testing.T) *graph.Graph {
	t.Helper()
	ctx, _ := testutil.Context(t)
	cat := trait.NewRegistry()
	for _, d := range []trait.Descriptor{ClipDescriptor, BlendDescriptor, MirrorDescriptor} {
		cat.Register(d)
	}
	templates := nodetemplate.NewRegistry(cat)

	clip, blend, mirror := trait.MakeUID("Clip"), trait.MakeUID("Blend"), trait.MakeUID("Mirror")
	w, err := graphio.WriteGraph(templates, []graphio.NodeSpec{
		{
			Traits: []trait.UID{blend},
			Values: []map[string]graphio.Value{{
				"a":      graphio.NodeRef(1),
				"b":      graphio.NodeRef(2),
				"weight": graphio.Latent(1, false),
			}},
		},
		{
			Traits: []trait.UID{clip},
			Values: []map[string]graphio.Value{{
				"clip":   graphio.Object("walk"),
				"length": graphio.Literal(cty.NumberIntVal(1)),
				"loop":   graphio.Literal(cty.True),
				"rate":   graphio.Latent(0, false),
			}},
		},
		{
			Traits: []trait.UID{clip, mirror},
			Values: []map[string]graphio.Value{
				{
					"length": graphio.Literal(cty.NumberIntVal(1)),
					"rate":   graphio.Literal(cty.NumberIntVal(4)),
				},
				{"enabled": graphio.Literal(cty.True)},
			},
		},
	})
	require.NoError(t, err)

	typ, err := ctyjson.MarshalType(cty.Number)
	require.NoError(t, err)
	def, err := ctyjson.Marshal(cty.NumberIntVal(3), cty.Number)
	require.NoError(t, err)

	g, err := graph.Load(ctx, templates, &graphio.Archive{
		Name:        "sample",
		Stream:      w.Stream(),
		EntryPoints: []graphio.EntryPointEntry{{Name: "Root", Node: 0}},
		Programs:    []string{"var.rate", "var.rate / 10"},
		Variables:   []graphio.VariableEntry{{Name: "rate", Type: typ, Default: def}},
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func clipTime(t *testing.T, inst *graph.Instance, node int) float32 {
	t.Helper()
	n := inst.NodeInstances()[node]
	return Time(trait.Binding{Instance: n.Data[:4]})
}

func TestSampleTraits(t *testing.T) {
	ctx, buf := testutil.Context(t)
	g := newGraph(t)
	inst := graph.Allocate(ctx, g, nil, "")
	t.Cleanup(inst.Release)
	require.True(t, inst.IsValid())
	require.Len(t, inst.NodeInstances(), 3, "blend children are reachable")

	require.NoError(t, inst.Update(ctx, 0.5))
	assert.InDelta(t, 0.5, clipTime(t, inst, 1), 1e-6, "looping clip wraps 1.5 to 0.5")
	assert.InDelta(t, 1.0, clipTime(t, inst, 2), 1e-6, "one-shot clip clamps at its length")
	testutil.AssertLogged(t, buf, "DEBUG", "Blend evaluated.", "weight=0.3")

	assert.True(t, inst.DispatchEvent(ctx, event("restart")))
	assert.Zero(t, clipTime(t, inst, 1), "first clip in allocation order consumes the event")
	assert.InDelta(t, 1.0, clipTime(t, inst, 2), 1e-6)
	assert.False(t, inst.DispatchEvent(ctx, event("jump")))
}

func TestBlendChildren(t *testing.T) {
	g := newGraph(t)
	root, ok := g.Node(g.EntryPoint("Root").Root)
	require.True(t, ok)
	b := trait.Binding{
		Descriptor: root.Template.Traits[0].Descriptor,
		Shared:     root.TraitSharedData(g.SharedData(), 0),
	}
	assert.Equal(t, []handle.Node{g.Nodes()[1].Handle, g.Nodes()[2].Handle}, Blend{}.Children(b))
}
