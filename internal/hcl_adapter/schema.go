// This file contains the gohcl schema of graph description files.

package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may hold.
type fileRoot struct {
	Graphs  []*GraphBlock  `hcl:"graph,block"`
	Modules []*ModuleBlock `hcl:"module,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

// GraphBlock is a `graph "name" { ... }` block.
type GraphBlock struct {
	Name        string             `hcl:"name,label"`
	Variables   []*VariableBlock   `hcl:"variable,block"`
	Interfaces  []*InterfaceBlock  `hcl:"interface,block"`
	Latents     []*LatentBlock     `hcl:"latent,block"`
	Nodes       []*NodeBlock       `hcl:"node,block"`
	EntryPoints []*EntryPointBlock `hcl:"entry_point,block"`
}

// VariableBlock declares a variable. Type and Default are optional but at
// least one must be given.
type VariableBlock struct {
	Name      string         `hcl:"name,label"`
	Type      hcl.Expression `hcl:"type,optional"`
	Default   hcl.Expression `hcl:"default,optional"`
	Interface string         `hcl:"interface,optional"`
}

// InterfaceBlock orders the variables of a data interface.
type InterfaceBlock struct {
	Name      string   `hcl:"name,label"`
	Variables []string `hcl:"variables"`
}

// LatentBlock is a named latent program, referenced from trait fields as
// latent.<name>.
type LatentBlock struct {
	Name       string `hcl:"name,label"`
	Expression string `hcl:"expression"`
	Freezable  bool   `hcl:"freezable,optional"`
}

// NodeBlock is a node with its trait stack.
type NodeBlock struct {
	Name   string        `hcl:"name,label"`
	Traits []*TraitBlock `hcl:"trait,block"`
}

// TraitBlock holds arbitrary field attributes, interpreted per trait.
type TraitBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// EntryPointBlock names a root node.
type EntryPointBlock struct {
	Name    string `hcl:"name,label"`
	Node    string `hcl:"node"`
	Default bool   `hcl:"default,optional"`
}

// ModuleBlock is a program running a graph.
type ModuleBlock struct {
	Name       string           `hcl:"name,label"`
	Graph      string           `hcl:"graph,optional"`
	EntryPoint string           `hcl:"entry_point,optional"`
	Init       string           `hcl:"init,optional"`
	Events     []string         `hcl:"events"`
	Variables  []*VariableBlock `hcl:"variable,block"`
}
