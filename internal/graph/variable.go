package graph

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Variable is a graph variable. Variables with a non-empty Interface are
// public.
type Variable struct {
	Name      string
	Type      cty.Type
	Default   cty.Value
	Interface string
}

// IsPublic reports whether the variable is part of a data interface.
func (v Variable) IsPublic() bool { return v.Interface != "" }

// DataInterface is an ordered group of public variables.
type DataInterface struct {
	Name      string
	Variables []string
}

// Cell holds one variable value.
type Cell struct {
	mu    sync.RWMutex
	typ   cty.Type
	value cty.Value
}

// NewCell creates a cell of type t holding v.
func NewCell(t cty.Type, v cty.Value) *Cell {
	if v == cty.NilVal {
		v = cty.NullVal(t)
	}
	return &Cell{typ: t, value: v}
}

// Type returns the cell's type.
func (c *Cell) Type() cty.Type { return c.typ }

// Get returns the current value.
func (c *Cell) Get() cty.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set converts v to the cell's type and stores it.
func (c *Cell) Set(v cty.Value) error {
	cv, err := convert.Convert(v, c.typ)
	if err != nil {
		return fmt.Errorf("cannot assign %s to %s: %w", v.Type().FriendlyName(), c.typ.FriendlyName(), err)
	}
	c.mu.Lock()
	c.value = cv
	c.mu.Unlock()
	return nil
}

// DataInterfaceHost exposes variable cells a graph instance can bind to.
type DataInterfaceHost interface {
	// InterfaceCells returns the cells of a data interface in declaration
	// order.
	InterfaceCells(name string) ([]*Cell, bool)
	// LookupCell returns the cell of a variable by exact name.
	LookupCell(name string) (*Cell, bool)
}

// Host is a map-backed DataInterfaceHost.
type Host struct {
	mu         sync.RWMutex
	cells      map[string]*Cell
	interfaces map[string][]string
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{cells: make(map[string]*Cell), interfaces: make(map[string][]string)}
}

// Declare adds a variable, appending it to iface when iface is not empty.
// Declaring an existing name replaces its cell.
func (h *Host) Declare(name string, t cty.Type, v cty.Value, iface string) *Cell {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := NewCell(t, v)
	if _, exists := h.cells[name]; !exists && iface != "" {
		h.interfaces[iface] = append(h.interfaces[iface], name)
	}
	h.cells[name] = c
	return c
}

// InterfaceCells implements DataInterfaceHost.
func (h *Host) InterfaceCells(name string) ([]*Cell, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names, ok := h.interfaces[name]
	if !ok {
		return nil, false
	}
	out := make([]*Cell, len(names))
	for i, n := range names {
		out[i] = h.cells[n]
	}
	return out, true
}

// LookupCell implements DataInterfaceHost.
func (h *Host) LookupCell(name string) (*Cell, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.cells[name]
	return c, ok
}
