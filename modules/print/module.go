// Package print registers the Print trait, an additive trait that logs its
// node every evaluate pass.
package print

import (
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// Print logs its label and the node it decorates. Labels are objects so
// hosts can resolve them to anything printable.
type Print struct{}

// Descriptor is Print's registration.
var Descriptor = trait.Descriptor{
	Name: "Print",
	Mode: trait.ModeAdditive,
	Fields: []trait.Field{
		{Name: "label", Kind: trait.KindObject},
		{Name: "every", Kind: trait.KindUint32},
	},
	InstanceSize:  4,
	InstanceAlign: 4,
	Impl:          Print{},
}

func init() { trait.AutoRegister(Descriptor) }

// Evaluate logs on every `every`-th pass; zero logs every pass.
func (Print) Evaluate(ctx trait.ExecutionContext, b trait.Binding) {
	count := trait.Decode(trait.KindUint32, b.Instance).(uint32) + 1
	trait.PutUint32(b.Instance, count)

	every, _ := b.Value("every")
	if n := every.(uint32); n > 1 && count%n != 0 {
		return
	}
	idx, _ := b.Value("label")
	ctx.Logger().Info("Print.", "label", ctx.Object(idx.(uint32)), "node", b.Node, "count", count)
}
