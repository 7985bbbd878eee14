package graph

import (
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
)

// LatentPin is a latent handle together with the kind of value it produces.
type LatentPin struct {
	trait.LatentHandle
	Kind trait.FieldKind
	Name string
}

// LatentPins returns the pins of trait t of a node.
func (inst *Instance) LatentPins(n *NodeInstance, t int) []LatentPin {
	l := n.Desc.Template.Traits[t]
	if l.NumLatent == 0 {
		return nil
	}
	handles := trait.DecodeLatentTable(n.Desc.TraitLatentTable(inst.graph.shared, t))
	fields := l.Descriptor.LatentFields()
	pins := make([]LatentPin, len(handles))
	for i, h := range handles {
		pins[i] = LatentPin{LatentHandle: h, Kind: fields[i].Kind, Name: fields[i].Name}
	}
	return pins
}

// ExecuteLatentPins evaluates the program behind each pin and writes the
// result into dest at the pin's value offset. With isFrozen set, freezable
// pins keep their previous value. It returns the number of values written.
// Evaluation failures are logged and leave the destination untouched.
func (inst *Instance) ExecuteLatentPins(pins []LatentPin, dest []byte, isFrozen bool) int {
	written := 0
	for _, pin := range pins {
		if !pin.HasProgram() {
			continue
		}
		if isFrozen && pin.Freezable {
			continue
		}
		prog := inst.graph.programs.Get(pin.Program)
		if prog == nil {
			inst.logger.Warn("Latent pin references a missing program.", "property", pin.Name, "program", pin.Program)
			continue
		}
		end := int(pin.ValueOffset + pin.Kind.Size())
		if end > len(dest) {
			inst.logger.Warn("Latent pin writes outside the destination.", "property", pin.Name, "offset", pin.ValueOffset, "size", len(dest))
			continue
		}
		v, err := prog.Evaluate(inst.lookupValue)
		if err != nil {
			inst.logger.Warn("Latent program failed.", "property", pin.Name, "program", pin.Program, "error", err)
			continue
		}
		if err := trait.PutLiteral(pin.Kind, dest[pin.ValueOffset:end], v); err != nil {
			inst.logger.Warn("Latent program produced an unusable value.", "property", pin.Name, "program", pin.Program, "error", err)
			continue
		}
		written++
	}
	return written
}

func (inst *Instance) lookupValue(name string) (cty.Value, bool) {
	return inst.Variable(name)
}

// RefreshLatent evaluates every latent pin of the instance. It is legal in
// both states; while frozen, freezable pins are skipped.
func (inst *Instance) RefreshLatent() int {
	if inst.isReleased() {
		return 0
	}
	frozen := inst.State() == FrozenPendingThaw
	written := 0
	for _, n := range inst.nodes {
		for t := range n.Desc.Template.Traits {
			if pins := inst.LatentPins(n, t); len(pins) > 0 {
				written += inst.ExecuteLatentPins(pins, n.Data, frozen)
			}
		}
	}
	return written
}
