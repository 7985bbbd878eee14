package latent

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// LerpFunc interpolates linearly between a and b by t.
var LerpFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "a", Type: cty.Number},
		{Name: "b", Type: cty.Number},
		{Name: "t", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		a, b, t := args[0], args[1], args[2]
		return a.Add(b.Subtract(a).Multiply(t)), nil
	},
})

// ClampFunc limits v to [lo, hi].
var ClampFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "v", Type: cty.Number},
		{Name: "lo", Type: cty.Number},
		{Name: "hi", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		v, lo, hi := args[0], args[1], args[2]
		if v.LessThan(lo).True() {
			return lo, nil
		}
		if v.GreaterThan(hi).True() {
			return hi, nil
		}
		return v, nil
	},
})

// Functions is the function table available to latent programs.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"min":    stdlib.MinFunc,
		"max":    stdlib.MaxFunc,
		"pow":    stdlib.PowFunc,
		"signum": stdlib.SignumFunc,
		"int":    stdlib.IntFunc,
		"lerp":   LerpFunc,
		"clamp":  ClampFunc,
	}
}
