// This file contains the logic for interpreting trait field expressions.

package hcl_adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// translateTraitValues interprets every attribute of a trait block:
//
//	child  = node.idle               node reference
//	target = trait(node.idle, 1)     trait reference
//	speed  = latent.speed            latent program declared in the graph
//	clip   = object("idle_clip")     host object
//	parent = null                    unset
//	weight = 0.5                     literal
func translateTraitValues(ctx context.Context, tb *TraitBlock, latents map[string]*LatentBlock) (map[string]config.Value, error) {
	logger := ctxlog.FromContext(ctx).With("trait", tb.Name)
	attrs, diags := tb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("trait '%s': %w", tb.Name, diags)
	}
	values := make(map[string]config.Value, len(attrs))
	for name, attr := range attrs {
		v, err := translateValue(attr.Expr, latents)
		if err != nil {
			return nil, fmt.Errorf("trait '%s' field '%s': %w", tb.Name, name, err)
		}
		logger.Debug("Translated trait field.", "field", name, "value", v.String())
		values[name] = v
	}
	return values, nil
}

func translateValue(expr hcl.Expression, latents map[string]*LatentBlock) (config.Value, error) {
	switch e := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		switch e.Traversal.RootName() {
		case "node":
			name, err := traversalName(e.Traversal)
			if err != nil {
				return config.Value{}, err
			}
			return config.Value{Kind: config.ValueNode, Node: name}, nil
		case "latent":
			name, err := traversalName(e.Traversal)
			if err != nil {
				return config.Value{}, err
			}
			lb, ok := latents[name]
			if !ok {
				return config.Value{}, fmt.Errorf("unknown latent '%s'", name)
			}
			return config.Value{Kind: config.ValueLatent, Expression: lb.Expression, Freezable: lb.Freezable}, nil
		}
	case *hclsyntax.FunctionCallExpr:
		switch e.Name {
		case "object":
			if len(e.Args) != 1 {
				return config.Value{}, fmt.Errorf("object() takes one argument, got %d", len(e.Args))
			}
			name, err := stringArg(e.Args[0])
			if err != nil {
				return config.Value{}, fmt.Errorf("object(): %w", err)
			}
			return config.Value{Kind: config.ValueObject, Object: name}, nil
		case "trait":
			if len(e.Args) != 2 {
				return config.Value{}, fmt.Errorf("trait() takes a node and an index, got %d arguments", len(e.Args))
			}
			ref, err := translateValue(e.Args[0], latents)
			if err != nil || ref.Kind != config.ValueNode {
				return config.Value{}, fmt.Errorf("trait(): first argument must be node.<name>")
			}
			idx, err := intArg(e.Args[1])
			if err != nil {
				return config.Value{}, fmt.Errorf("trait(): %w", err)
			}
			return config.Value{Kind: config.ValueTrait, Node: ref.Node, Trait: idx}, nil
		}
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return config.Value{}, diags
	}
	if !val.IsWhollyKnown() {
		return config.Value{}, fmt.Errorf("value is not known at compile time")
	}
	if val.IsNull() {
		return config.Value{}, nil
	}
	return config.Value{Kind: config.ValueLiteral, Literal: val}, nil
}

func traversalName(t hcl.Traversal) (string, error) {
	if len(t) != 2 {
		return "", fmt.Errorf("'%s' reference must have the form %s.<name>", t.RootName(), t.RootName())
	}
	attr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("'%s' reference must have the form %s.<name>", t.RootName(), t.RootName())
	}
	return attr.Name, nil
}

func stringArg(expr hcl.Expression) (string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.Type() != cty.String || val.IsNull() {
		return "", fmt.Errorf("argument must be a string")
	}
	return val.AsString(), nil
}

func intArg(expr hcl.Expression) (int, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	if val.Type() != cty.Number || val.IsNull() {
		return 0, fmt.Errorf("argument must be a number")
	}
	bf := val.AsBigFloat()
	if !bf.IsInt() {
		return 0, fmt.Errorf("argument must be a whole number")
	}
	i, acc := bf.Int64()
	if acc != big.Exact || i < 0 {
		return 0, fmt.Errorf("argument must be a non-negative integer")
	}
	return int(i), nil
}
