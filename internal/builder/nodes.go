package builder

import (
	"fmt"

	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// compilation holds the state of one graph build.
type compilation struct {
	graph   *config.Graph
	catalog *trait.Registry

	// programs maps a latent source to its slot in sources.
	programs map[string]int
	sources  []string
}

// node resolves a node's trait stack and translates its values.
func (c *compilation) node(n *config.Node) (graphio.NodeSpec, error) {
	spec := graphio.NodeSpec{
		Traits: make([]trait.UID, len(n.Traits)),
		Values: make([]map[string]graphio.Value, len(n.Traits)),
	}
	for i, t := range n.Traits {
		d, ok := c.catalog.FindByName(t.Name)
		if !ok {
			return graphio.NodeSpec{}, unknownTrait(c.catalog, t.Name)
		}
		spec.Traits[i] = d.UID

		values := make(map[string]graphio.Value, len(t.Values))
		for field, v := range t.Values {
			gv, err := c.value(v)
			if err != nil {
				return graphio.NodeSpec{}, fmt.Errorf("trait '%s' field '%s': %w", t.Name, field, err)
			}
			values[field] = gv
		}
		spec.Values[i] = values
	}
	return spec, nil
}

func (c *compilation) value(v config.Value) (graphio.Value, error) {
	switch v.Kind {
	case config.ValueUnset:
		return graphio.Value{}, nil
	case config.ValueLiteral:
		return graphio.Literal(v.Literal), nil
	case config.ValueNode:
		idx := c.graph.NodeIndex(v.Node)
		if idx < 0 {
			return graphio.Value{}, fmt.Errorf("%w: '%s'", graphio.ErrUnresolvedNode, v.Node)
		}
		return graphio.NodeRef(idx), nil
	case config.ValueTrait:
		idx := c.graph.NodeIndex(v.Node)
		if idx < 0 {
			return graphio.Value{}, fmt.Errorf("%w: '%s'", graphio.ErrUnresolvedNode, v.Node)
		}
		return graphio.TraitRef(idx, v.Trait), nil
	case config.ValueLatent:
		return graphio.Latent(c.program(v.Expression), v.Freezable), nil
	case config.ValueObject:
		return graphio.Object(v.Object), nil
	}
	return graphio.Value{}, fmt.Errorf("unsupported value %s", v)
}

// program returns the table slot of src, adding it on first use.
func (c *compilation) program(src string) int {
	if i, ok := c.programs[src]; ok {
		return i
	}
	i := len(c.sources)
	c.programs[src] = i
	c.sources = append(c.sources, src)
	return i
}

func unknownTrait(catalog *trait.Registry, name string) error {
	if s := catalog.Suggest(name); s != "" {
		return fmt.Errorf("%w '%s', did you mean '%s'?", ErrUnknownTrait, name, s)
	}
	return fmt.Errorf("%w '%s'", ErrUnknownTrait, name)
}
