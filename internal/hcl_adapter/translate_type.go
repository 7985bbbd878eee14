package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// variableType parses a variable's `type` attribute written in the HCL type
// constraint syntax: string, number, bool, any and the list, set, map,
// tuple and object constructors.
func variableType(ctx context.Context, name string, expr hcl.Expression) (cty.Type, error) {
	ty, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return cty.DynamicPseudoType, fmt.Errorf("variable '%s' type: %w", name, diags)
	}
	ctxlog.FromContext(ctx).Debug("Parsed variable type.", "variable", name, "type", ty.FriendlyName())
	return ty, nil
}

// exprDefined reports whether an optional attribute was written. Omitted
// attributes decode to placeholder expressions with a zero-width range.
func exprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
