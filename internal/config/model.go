package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of every loaded description.
type Model struct {
	Graphs  []*Graph
	Modules []*Module
}

// Graph returns the graph named name.
func (m *Model) Graph(name string) (*Graph, bool) {
	for _, g := range m.Graphs {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Module returns the module named name.
func (m *Model) Module(name string) (*Module, bool) {
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return nil, false
}

// Graph is the format-agnostic representation of a `graph` block. Nodes
// keep declaration order; a node's position is its logical index.
type Graph struct {
	Name         string
	Nodes        []*Node
	Variables    []*Variable
	Interfaces   []*Interface
	EntryPoints  []*EntryPoint
	DefaultEntry string
}

// NodeIndex returns the logical index of the node named name, or -1.
func (g *Graph) NodeIndex(name string) int {
	for i, n := range g.Nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// Node is one node: an ordered stack of traits, base trait first.
type Node struct {
	Name   string
	Traits []*Trait
}

// Trait is one trait of a node with its field values.
type Trait struct {
	Name   string
	Values map[string]Value
}

// Variable is a graph variable, or a module host variable.
type Variable struct {
	Name      string
	Type      cty.Type
	Default   cty.Value
	Interface string
}

// Interface is an explicit ordering of a data interface's variables.
type Interface struct {
	Name      string
	Variables []string
}

// EntryPoint names a root node.
type EntryPoint struct {
	Name    string
	Node    string
	Default bool
}

// Module is the format-agnostic representation of a `module` block: a
// program running a graph.
type Module struct {
	Name       string
	Graph      string
	EntryPoint string
	InitMethod string
	Events     []string
	Variables  []*Variable
}

// ValueKind tells which member of Value is set.
type ValueKind int

const (
	// ValueUnset leaves the field zero; handle fields become invalid.
	ValueUnset ValueKind = iota
	ValueLiteral
	ValueNode
	ValueTrait
	ValueLatent
	ValueObject
)

// Value is a trait field value as written in a description.
type Value struct {
	Kind ValueKind
	// Literal is set for ValueLiteral.
	Literal cty.Value
	// Node names the referenced node for ValueNode and ValueTrait.
	Node string
	// Trait is the trait index within Node for ValueTrait.
	Trait int
	// Expression is the latent program source for ValueLatent.
	Expression string
	Freezable  bool
	// Object names a host object for ValueObject.
	Object string
}

func (v Value) String() string {
	switch v.Kind {
	case ValueLiteral:
		return v.Literal.GoString()
	case ValueNode:
		return fmt.Sprintf("node.%s", v.Node)
	case ValueTrait:
		return fmt.Sprintf("node.%s.trait[%d]", v.Node, v.Trait)
	case ValueLatent:
		return fmt.Sprintf("latent(%q)", v.Expression)
	case ValueObject:
		return fmt.Sprintf("object(%q)", v.Object)
	}
	return "unset"
}
