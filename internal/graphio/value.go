package graphio

import (
	"fmt"

	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
)

type valueKind uint8

const (
	valueUnset valueKind = iota
	valueLiteral
	valueNode
	valueTrait
	valueLatent
	valueObject
)

// Value is what the compiler supplies for one trait property slot.
type Value struct {
	kind      valueKind
	literal   cty.Value
	node      int
	trait     int
	program   int
	freezable bool
	object    string
}

// Literal stores v directly in shared data.
func Literal(v cty.Value) Value { return Value{kind: valueLiteral, literal: v} }

// NodeRef references another node by its logical index.
func NodeRef(node int) Value { return Value{kind: valueNode, node: node} }

// TraitRef references trait index t of a node by its logical index.
func TraitRef(node, t int) Value { return Value{kind: valueTrait, node: node, trait: t} }

// Latent wires a latent property to program index p of the graph's latent
// program table.
func Latent(program int, freezable bool) Value {
	return Value{kind: valueLatent, program: program, freezable: freezable}
}

// Object references a host-managed object by name. The writer collects
// referenced objects into the graph's side-table.
func Object(name string) Value { return Value{kind: valueObject, object: name} }

func (v Value) String() string {
	switch v.kind {
	case valueLiteral:
		return v.literal.GoString()
	case valueNode:
		return fmt.Sprintf("node[%d]", v.node)
	case valueTrait:
		return fmt.Sprintf("node[%d].trait[%d]", v.node, v.trait)
	case valueLatent:
		return fmt.Sprintf("latent[%d]", v.program)
	case valueObject:
		return fmt.Sprintf("object(%q)", v.object)
	default:
		return "unset"
	}
}

// NodeSpec is one node as produced by the compiler.
type NodeSpec struct {
	Traits []trait.UID
	// Values holds one map per trait, keyed by field name. Missing fields are
	// zero-filled.
	Values []map[string]Value
}
