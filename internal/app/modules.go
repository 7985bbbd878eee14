package app

// The trait packages compiled into the traitgraph binary. Each registers its
// traits from init through trait.AutoRegister; initRegistries copies them
// into the app's own catalog.
import (
	_ "github.com/specialistvlad/traitgraph/modules/basic"
	_ "github.com/specialistvlad/traitgraph/modules/print"
)
