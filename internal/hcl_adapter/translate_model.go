// This file contains the logic for translating HCL schema structs into the
// format-agnostic model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// InitMethods lists the accepted values of a module's `init` attribute.
var InitMethods = []string{"run", "pause", "initialize_only"}

// translateGraph converts a graph block into the agnostic model. Node
// references are checked here; trait names are left to the builder, which
// knows the catalog.
func (l *Loader) translateGraph(ctx context.Context, gb *GraphBlock) (*config.Graph, error) {
	ctx, logger := ctxlog.With(ctx, "graph", gb.Name)
	logger.Debug("Translating HCL graph to internal config model.")

	g := &config.Graph{Name: gb.Name}
	for _, vb := range gb.Variables {
		v, err := translateVariable(ctx, vb)
		if err != nil {
			return nil, fmt.Errorf("in graph '%s': %w", gb.Name, err)
		}
		g.Variables = append(g.Variables, v)
	}
	for _, ib := range gb.Interfaces {
		g.Interfaces = append(g.Interfaces, &config.Interface{Name: ib.Name, Variables: ib.Variables})
	}

	latents := make(map[string]*LatentBlock, len(gb.Latents))
	for _, lb := range gb.Latents {
		if _, dup := latents[lb.Name]; dup {
			return nil, fmt.Errorf("in graph '%s': latent '%s' declared twice", gb.Name, lb.Name)
		}
		latents[lb.Name] = lb
	}

	for _, nb := range gb.Nodes {
		if g.NodeIndex(nb.Name) >= 0 {
			return nil, fmt.Errorf("in graph '%s': node '%s' declared twice", gb.Name, nb.Name)
		}
		if len(nb.Traits) == 0 {
			return nil, fmt.Errorf("in graph '%s': node '%s' has no traits", gb.Name, nb.Name)
		}
		n := &config.Node{Name: nb.Name}
		for _, tb := range nb.Traits {
			values, err := translateTraitValues(ctx, tb, latents)
			if err != nil {
				return nil, fmt.Errorf("in graph '%s', node '%s': %w", gb.Name, nb.Name, err)
			}
			n.Traits = append(n.Traits, &config.Trait{Name: tb.Name, Values: values})
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, n := range g.Nodes {
		for _, t := range n.Traits {
			for field, v := range t.Values {
				if v.Kind != config.ValueNode && v.Kind != config.ValueTrait {
					continue
				}
				if g.NodeIndex(v.Node) < 0 {
					return nil, fmt.Errorf("in graph '%s', node '%s', trait '%s': field '%s' references unknown node '%s'",
						gb.Name, n.Name, t.Name, field, v.Node)
				}
			}
		}
	}

	for _, eb := range gb.EntryPoints {
		if g.NodeIndex(eb.Node) < 0 {
			return nil, fmt.Errorf("in graph '%s': entry point '%s' references unknown node '%s'", gb.Name, eb.Name, eb.Node)
		}
		if eb.Default {
			if g.DefaultEntry != "" {
				return nil, fmt.Errorf("in graph '%s': entry points '%s' and '%s' are both default", gb.Name, g.DefaultEntry, eb.Name)
			}
			g.DefaultEntry = eb.Name
		}
		g.EntryPoints = append(g.EntryPoints, &config.EntryPoint{Name: eb.Name, Node: eb.Node, Default: eb.Default})
	}

	logger.Debug("Translated graph.", "nodes", len(g.Nodes), "variables", len(g.Variables), "entry_points", len(g.EntryPoints))
	return g, nil
}

// translateModule converts a module block into the agnostic model.
func (l *Loader) translateModule(ctx context.Context, mb *ModuleBlock) (*config.Module, error) {
	m := &config.Module{
		Name:       mb.Name,
		Graph:      mb.Graph,
		EntryPoint: mb.EntryPoint,
		InitMethod: mb.Init,
		Events:     mb.Events,
	}
	if m.InitMethod == "" {
		m.InitMethod = InitMethods[0]
	}
	valid := false
	for _, im := range InitMethods {
		valid = valid || im == m.InitMethod
	}
	if !valid {
		return nil, fmt.Errorf("in module '%s': init must be one of %q, got '%s'", mb.Name, InitMethods, mb.Init)
	}
	for _, vb := range mb.Variables {
		v, err := translateVariable(ctx, vb)
		if err != nil {
			return nil, fmt.Errorf("in module '%s': %w", mb.Name, err)
		}
		m.Variables = append(m.Variables, v)
	}
	return m, nil
}

// translateVariable resolves a variable's type and default. A missing type
// is taken from the default; a missing default is null of the type.
func translateVariable(ctx context.Context, vb *VariableBlock) (*config.Variable, error) {
	hasType := exprDefined(vb.Type)
	hasDefault := exprDefined(vb.Default)
	if !hasType && !hasDefault {
		return nil, fmt.Errorf("variable '%s' needs a type or a default", vb.Name)
	}

	ty := cty.DynamicPseudoType
	if hasType {
		var err error
		if ty, err = variableType(ctx, vb.Name, vb.Type); err != nil {
			return nil, err
		}
	}

	def := cty.NullVal(ty)
	if hasDefault {
		val, diags := vb.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default value for variable '%s': %w", vb.Name, diags)
		}
		if !hasType {
			ty = val.Type()
		}
		converted, err := convert.Convert(val, ty)
		if err != nil {
			return nil, fmt.Errorf("default of variable '%s' is not a %s: %w", vb.Name, ty.FriendlyName(), err)
		}
		def = converted
	}
	return &config.Variable{Name: vb.Name, Type: ty, Default: def, Interface: vb.Interface}, nil
}
