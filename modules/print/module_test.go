package print

import (
	"strings"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/testutil"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestPrintEvery(t *testing.T) {
	ctx, buf := testutil.Context(t)
	cat := trait.NewRegistry()
	cat.Register(trait.Descriptor{Name: "Root"})
	cat.Register(Descriptor)
	templates := nodetemplate.NewRegistry(cat)

	w, err := graphio.WriteGraph(templates, []graphio.NodeSpec{{
		Traits: []trait.UID{trait.MakeUID("Root"), trait.MakeUID("Print")},
		Values: []map[string]graphio.Value{nil, {
			"label": graphio.Object("hello"),
			"every": graphio.Literal(cty.NumberIntVal(2)),
		}},
	}})
	require.NoError(t, err)
	g, err := graph.Load(ctx, templates, &graphio.Archive{
		Name:        "print",
		Stream:      w.Stream(),
		EntryPoints: []graphio.EntryPointEntry{{Name: "Root", Node: 0}},
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)

	inst := graph.Allocate(ctx, g, nil, "")
	t.Cleanup(inst.Release)

	require.NoError(t, inst.Update(ctx, 0.1))
	testutil.AssertNotLogged(t, buf, "INFO", "Print.")
	require.NoError(t, inst.Update(ctx, 0.1))
	testutil.AssertLogged(t, buf, "INFO", "Print.", "label=hello", "count=2")
	assert.Equal(t, 1, strings.Count(buf.String(), "msg=Print."))
}
