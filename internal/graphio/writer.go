package graphio

import (
	"fmt"
	"io"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// Writer serializes a compiler-produced node list in two passes. Begin
// reduces every node to a template and commits its byte offset; Write then
// serializes property values, translating logical node references into the
// committed offsets.
type Writer struct {
	templates *nodetemplate.Registry
	limit     uint32

	nodes   []NodeSpec
	descs   []NodeDescription
	total   uint32
	begun   bool
	written bool

	shared    []byte
	stream    encoder
	objects   []string
	objectIdx map[string]uint32
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMaxSharedDataSize lowers the total shared-data limit. Values above
// handle.MaxOffset are clamped.
func WithMaxSharedDataSize(n uint32) WriterOption {
	return func(w *Writer) {
		w.limit = min(n, handle.MaxOffset)
	}
}

// NewWriter creates a writer resolving trait lists through templates.
func NewWriter(templates *nodetemplate.Registry, opts ...WriterOption) *Writer {
	w := &Writer{
		templates: templates,
		limit:     handle.MaxOffset,
		objectIdx: make(map[string]uint32),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin is the first pass: it builds templates, validates size limits and
// fixes the offset of every node.
func (w *Writer) Begin(nodes []NodeSpec) error {
	if w.begun {
		panic("graphio: Writer.Begin called twice")
	}
	w.begun = true
	w.nodes = nodes
	w.descs = make([]NodeDescription, len(nodes))

	var total uint64
	for i, n := range nodes {
		tpl, err := w.templates.FindOrAdd(n.Traits)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		if tpl.SharedSize > MaxNodeSharedDataSize {
			return &LayoutError{Node: i, Size: uint64(tpl.SharedSize), Limit: MaxNodeSharedDataSize, Err: ErrNodeSharedDataTooLarge}
		}
		if tpl.InstanceSize > MaxNodeInstanceDataSize {
			return &LayoutError{Node: i, Size: uint64(tpl.InstanceSize), Limit: MaxNodeInstanceDataSize, Err: ErrNodeInstanceDataTooLarge}
		}
		if len(n.Values) > len(n.Traits) {
			return fmt.Errorf("node %d: %d value sets for %d traits", i, len(n.Values), len(n.Traits))
		}

		footprint := uint64(NodeDescriptionSize) + uint64(tpl.SharedSize)
		if total+footprint > uint64(w.limit) {
			return &LayoutError{Node: i, Size: total + footprint, Limit: uint64(w.limit), Err: ErrGraphTooLarge}
		}
		w.descs[i] = NodeDescription{
			ID:           uint32(i),
			Handle:       handle.NewNode(uint32(total)),
			Template:     tpl,
			InstanceSize: tpl.InstanceSize,
		}
		total += footprint
	}
	w.total = uint32(total)
	return nil
}

// Write is the second pass: it fills the shared-data buffer and the
// persisted stream.
func (w *Writer) Write() error {
	if !w.begun {
		panic("graphio: Writer.Write called before Begin")
	}
	if w.written {
		panic("graphio: Writer.Write called twice")
	}
	w.written = true
	w.shared = make([]byte, w.total)

	// Objects are collected first so the stream can carry the table up front.
	for _, n := range w.nodes {
		for _, values := range n.Values {
			for _, v := range values {
				if v.kind == valueObject {
					w.objectIndex(v.object)
				}
			}
		}
	}

	e := &w.stream
	e.bytes(streamMagic[:])
	e.u32(uint32(len(w.descs)))
	e.u32(uint32(len(w.objects)))
	for _, name := range w.objects {
		e.str(name)
	}
	for _, d := range w.descs {
		e.u16(uint16(d.Template.NumTraits()))
		for _, uid := range d.Template.UIDs() {
			e.u32(uint32(uid))
		}
	}

	for i, d := range w.descs {
		putHeader(w.shared[d.Handle.Offset():], header{
			nodeID:       d.ID,
			templateUID:  d.Template.UID,
			instanceSize: d.InstanceSize,
		})
		for t := range d.Template.Traits {
			var values map[string]Value
			if t < len(w.nodes[i].Values) {
				values = w.nodes[i].Values[t]
			}
			if err := w.writeTrait(d, t, values); err != nil {
				return fmt.Errorf("node %d trait %d: %w", i, t, err)
			}
		}
	}
	return nil
}

func (w *Writer) writeTrait(d NodeDescription, t int, values map[string]Value) error {
	l := d.Template.Traits[t]
	desc := l.Descriptor
	shared := d.TraitSharedData(w.shared, t)
	e := &w.stream

	for name := range values {
		if _, ok := desc.Field(name); !ok {
			return fmt.Errorf("%w: '%s' on trait '%s'", ErrUnknownField, name, desc.Name)
		}
	}

	latent := d.TraitLatentTable(w.shared, t)
	li := 0
	for _, f := range desc.Fields {
		if !f.Latent {
			continue
		}
		h := trait.LatentHandle{Program: trait.NoProgram, ValueOffset: d.Template.LatentValueOffset(t, li)}
		if v := values[f.Name]; v.kind == valueLatent {
			if v.program < 0 || v.program >= trait.NoProgram {
				return fmt.Errorf("%w: latent program %d out of range", trait.ErrValueKind, v.program)
			}
			h.Program = uint16(v.program)
			h.Freezable = v.freezable
		}
		h.Encode(latent[li*trait.LatentHandleSize:])
		e.bytes(latent[li*trait.LatentHandleSize : li*trait.LatentHandleSize+4])
		li++
	}

	for _, f := range desc.Fields {
		v := values[f.Name]
		dst := shared[f.Offset : f.Offset+f.Kind.Size()]
		logical, err := w.writeField(f, v, dst)
		if err != nil {
			return fmt.Errorf("field '%s': %w", f.Name, err)
		}
		if f.Kind == trait.KindNodeHandle || f.Kind == trait.KindTraitHandle {
			e.u32(logical)
		} else {
			e.bytes(dst)
		}
	}
	return nil
}

// writeField encodes v into dst and returns the logical encoding used for
// handle fields in the stream.
func (w *Writer) writeField(f trait.Field, v Value, dst []byte) (uint32, error) {
	switch f.Kind {
	case trait.KindNodeHandle:
		switch v.kind {
		case valueUnset:
			trait.PutUint32(dst, uint32(handle.InvalidNode))
			return noLogical, nil
		case valueNode:
			target, err := w.node(v.node)
			if err != nil {
				return 0, err
			}
			trait.PutUint32(dst, uint32(target.Handle))
			return uint32(v.node), nil
		}
	case trait.KindTraitHandle:
		switch v.kind {
		case valueUnset:
			trait.PutUint32(dst, uint32(handle.InvalidTrait))
			return noLogical, nil
		case valueTrait:
			target, err := w.node(v.node)
			if err != nil {
				return 0, err
			}
			if v.trait < 0 || v.trait >= target.Template.NumTraits() {
				return 0, fmt.Errorf("%w: node %d has no trait %d", ErrUnresolvedNode, v.node, v.trait)
			}
			trait.PutUint32(dst, uint32(handle.NewTrait(target.Handle, v.trait)))
			return packLogicalTrait(v.node, v.trait), nil
		}
	case trait.KindObject:
		switch v.kind {
		case valueUnset:
			trait.PutUint32(dst, noLogical)
			return 0, nil
		case valueObject:
			trait.PutUint32(dst, w.objectIndex(v.object))
			return 0, nil
		}
	default:
		switch v.kind {
		case valueUnset:
			return 0, nil
		case valueLiteral:
			return 0, trait.PutLiteral(f.Kind, dst, v.literal)
		case valueLatent:
			if f.Latent {
				return 0, nil
			}
			return 0, fmt.Errorf("%w: field is not latent", trait.ErrValueKind)
		}
	}
	return 0, fmt.Errorf("%w: %s cannot hold %s", trait.ErrValueKind, f.Kind, v)
}

func (w *Writer) node(i int) (NodeDescription, error) {
	if i < 0 || i >= len(w.descs) {
		return NodeDescription{}, fmt.Errorf("%w: node %d of %d", ErrUnresolvedNode, i, len(w.descs))
	}
	return w.descs[i], nil
}

func (w *Writer) objectIndex(name string) uint32 {
	if idx, ok := w.objectIdx[name]; ok {
		return idx
	}
	idx := uint32(len(w.objects))
	w.objects = append(w.objects, name)
	w.objectIdx[name] = idx
	return idx
}

// SharedData returns the resolved shared-data buffer.
func (w *Writer) SharedData() []byte { return w.shared }

// Stream returns the persisted form.
func (w *Writer) Stream() []byte { return w.stream.buf.Bytes() }

// WriteTo copies the persisted form to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.Stream())
	return int64(n), err
}

// Objects returns the host objects referenced by the graph, indexed as they
// appear in shared data.
func (w *Writer) Objects() []string { return w.objects }

// Nodes returns the committed node descriptions.
func (w *Writer) Nodes() []NodeDescription { return w.descs }

// NodeHandle returns the committed handle of logical node i.
func (w *Writer) NodeHandle(i int) handle.Node {
	if i < 0 || i >= len(w.descs) {
		return handle.InvalidNode
	}
	return w.descs[i].Handle
}

// packLogicalTrait stores a trait index beside a logical node index.
func packLogicalTrait(node, t int) uint32 {
	return uint32(t)<<handle.OffsetBits | uint32(node)
}

func unpackLogicalTrait(v uint32) (int, int) {
	return int(v & handle.MaxOffset), int(v >> handle.OffsetBits)
}

// WriteGraph runs both passes for nodes.
func WriteGraph(templates *nodetemplate.Registry, nodes []NodeSpec, opts ...WriterOption) (*Writer, error) {
	w := NewWriter(templates, opts...)
	if err := w.Begin(nodes); err != nil {
		return nil, err
	}
	if err := w.Write(); err != nil {
		return nil, err
	}
	return w, nil
}
