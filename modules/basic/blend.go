package basic

import (
	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// Blend mixes two child nodes. Both children are visited every pass.
type Blend struct{}

// BlendDescriptor is Blend's registration.
var BlendDescriptor = trait.Descriptor{
	Name: "Blend",
	Mode: trait.ModeBase,
	Fields: []trait.Field{
		{Name: "a", Kind: trait.KindNodeHandle},
		{Name: "b", Kind: trait.KindNodeHandle},
		{Name: "weight", Kind: trait.KindFloat32, Latent: true},
	},
	Impl: Blend{},
}

func init() { trait.AutoRegister(BlendDescriptor) }

func (Blend) Children(b trait.Binding) []handle.Node {
	var out []handle.Node
	for _, name := range []string{"a", "b"} {
		if v, _ := b.Value(name); v != nil {
			if h := v.(handle.Node); h.IsValid() {
				out = append(out, h)
			}
		}
	}
	return out
}

func (Blend) Evaluate(ctx trait.ExecutionContext, b trait.Binding) {
	w := min(max(float32Value(b, "weight"), 0), 1)
	ctx.Logger().Debug("Blend evaluated.", "node", b.Node, "weight", w)
}
