// Package handle defines the resolved references that point into a compiled
// graph's shared-data buffer.
//
// A handle is a byte offset packed into 24 bits. Trait handles additionally
// carry the trait's index inside its node in the top 8 bits. Handles are only
// minted once the buffer layout is final and are never renumbered afterwards.
package handle

import "fmt"

const (
	// OffsetBits is the width of the offset field packed into every handle.
	OffsetBits = 24
	// MaxOffset is the largest shared-data size addressable by a handle.
	MaxOffset = 1<<OffsetBits - 1
	// MaxTraitIndex is the largest trait index a trait handle can carry.
	MaxTraitIndex = 0xFF

	offsetMask = MaxOffset
	invalidRaw = offsetMask
)

// Node is a byte offset of a node description inside a shared-data buffer.
type Node uint32

// InvalidNode never points at a node. A node description occupies at least
// its header, so the last addressable byte can never start one.
const InvalidNode Node = invalidRaw

// NewNode packs an offset into a node handle. It panics when the offset does
// not fit the handle encoding.
func NewNode(offset uint32) Node {
	if offset > MaxOffset {
		panic(fmt.Sprintf("handle: offset %d exceeds %d", offset, MaxOffset))
	}
	return Node(offset)
}

// IsValid reports whether the handle points at a node.
func (n Node) IsValid() bool { return n != InvalidNode }

// Offset returns the byte offset of the node description.
func (n Node) Offset() uint32 { return uint32(n) & offsetMask }

func (n Node) String() string {
	if !n.IsValid() {
		return "node(invalid)"
	}
	return fmt.Sprintf("node(@%d)", n.Offset())
}

// Trait references one trait inside a node.
type Trait uint32

// InvalidTrait never points at a trait.
const InvalidTrait Trait = invalidRaw

// NewTrait packs a node handle and a trait index into a trait handle.
func NewTrait(node Node, index int) Trait {
	if !node.IsValid() {
		return InvalidTrait
	}
	if index < 0 || index > MaxTraitIndex {
		panic(fmt.Sprintf("handle: trait index %d out of range", index))
	}
	return Trait(uint32(index)<<OffsetBits | node.Offset())
}

// IsValid reports whether the handle points at a trait.
func (t Trait) IsValid() bool { return uint32(t)&offsetMask != invalidRaw }

// Node returns the node holding the trait.
func (t Trait) Node() Node {
	if !t.IsValid() {
		return InvalidNode
	}
	return Node(uint32(t) & offsetMask)
}

// Index returns the position of the trait within its node template.
func (t Trait) Index() int { return int(uint32(t) >> OffsetBits) }

func (t Trait) String() string {
	if !t.IsValid() {
		return "trait(invalid)"
	}
	return fmt.Sprintf("trait(@%d#%d)", t.Node().Offset(), t.Index())
}

// EntryPoint names a root node of a compiled graph.
type EntryPoint struct {
	Name string
	Root Node
}

// IsValid reports whether the entry point resolves to a node.
func (e EntryPoint) IsValid() bool { return e.Root.IsValid() }
