package basic

import "github.com/specialistvlad/traitgraph/internal/trait"

// MirrorDescriptor registers Mirror, an additive flag marking its node's
// output as mirrored. It has no behavior of its own.
var MirrorDescriptor = trait.Descriptor{
	Name:   "Mirror",
	Mode:   trait.ModeAdditive,
	Fields: []trait.Field{{Name: "enabled", Kind: trait.KindBool}},
}

func init() { trait.AutoRegister(MirrorDescriptor) }
