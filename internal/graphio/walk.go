package graphio

import (
	"fmt"
	"io"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
)

// Walk visits every node description in a shared-data buffer in layout
// order, locating templates through the header's template UID.
func Walk(buf []byte, templates *nodetemplate.Registry, fn func(NodeDescription) error) error {
	var offset uint32
	for int(offset) < len(buf) {
		if int(offset)+NodeDescriptionSize > len(buf) {
			return fmt.Errorf("%w: truncated node header at %d", ErrCorruptStream, offset)
		}
		h := readHeader(buf[offset:])
		tpl, ok := templates.Find(h.templateUID)
		if !ok {
			return fmt.Errorf("%w: node %d uses unknown template 0x%08x", ErrCorruptStream, h.nodeID, h.templateUID)
		}
		desc := NodeDescription{
			ID:           h.nodeID,
			Handle:       handle.NewNode(offset),
			Template:     tpl,
			InstanceSize: h.instanceSize,
		}
		if err := fn(desc); err != nil {
			return err
		}
		offset += desc.Footprint()
	}
	return nil
}

// DescriptionAt reads the node description at h.
func DescriptionAt(buf []byte, templates *nodetemplate.Registry, h handle.Node) (NodeDescription, bool) {
	if !h.IsValid() || int(h.Offset())+NodeDescriptionSize > len(buf) {
		return NodeDescription{}, false
	}
	hdr := readHeader(buf[h.Offset():])
	tpl, ok := templates.Find(hdr.templateUID)
	if !ok {
		return NodeDescription{}, false
	}
	return NodeDescription{ID: hdr.nodeID, Handle: h, Template: tpl, InstanceSize: hdr.instanceSize}, true
}

// DumpGraph writes a per-node breakdown of a shared-data buffer.
func DumpGraph(w io.Writer, name string, buf []byte, templates *nodetemplate.Registry) error {
	var nodes int
	var instance uint32
	err := Walk(buf, templates, func(d NodeDescription) error {
		nodes++
		instance += d.InstanceSize
		_, err := fmt.Fprintf(w, "  node %d @%d: template 0x%08x, %d traits, shared %d, instance %d\n",
			d.ID, d.Handle.Offset(), d.Template.UID, d.Template.NumTraits(), d.Template.SharedSize, d.InstanceSize)
		return err
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "graph %s: %d nodes, shared %d bytes, instance %d bytes\n", name, nodes, len(buf), instance)
	return err
}
