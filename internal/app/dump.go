package app

import (
	"fmt"
	"io"

	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/graphio"
)

// DumpTemplates writes the layout of every cached node template.
func (a *App) DumpTemplates(w io.Writer) error {
	return a.templates.Dump(w)
}

// DumpGraphs walks the named graphs node by node, or every loaded graph
// when no name is given.
func (a *App) DumpGraphs(w io.Writer, names ...string) error {
	var graphs []*graph.Graph
	if len(names) == 0 {
		graphs = a.Graphs()
	}
	for _, name := range names {
		g, ok := a.Graph(name)
		if !ok {
			return fmt.Errorf("graph '%s' is not loaded", name)
		}
		graphs = append(graphs, g)
	}

	for _, g := range graphs {
		if err := graphio.DumpGraph(w, g.Name, g.SharedData(), a.templates); err != nil {
			return err
		}
		for _, name := range g.EntryPoints() {
			ep := g.EntryPoint(name)
			def := ""
			if name == g.DefaultEntryPoint() {
				def = " (default)"
			}
			if _, err := fmt.Fprintf(w, "  entry %s -> %s%s\n", name, ep.Root, def); err != nil {
				return err
			}
		}
		for _, v := range g.Variables() {
			if _, err := fmt.Fprintf(w, "  var %s %s interface=%q\n", v.Name, v.Type.FriendlyName(), v.Interface); err != nil {
				return err
			}
		}
		if err := g.Err(); err != nil {
			if _, err := fmt.Fprintf(w, "  warnings: %v\n", err); err != nil {
				return err
			}
		}
	}
	return nil
}
