package graphio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// ObjectResolver turns object names from the stream into host objects.
type ObjectResolver interface {
	ResolveObject(name string) (any, error)
}

// ObjectResolverFunc adapts a function to ObjectResolver.
type ObjectResolverFunc func(name string) (any, error)

// ResolveObject implements ObjectResolver.
func (f ObjectResolverFunc) ResolveObject(name string) (any, error) { return f(name) }

// Reader rebuilds a shared-data buffer from its persisted stream.
type Reader struct {
	templates *nodetemplate.Registry
	limit     uint32
	resolver  ObjectResolver

	descs       []NodeDescription
	shared      []byte
	objectNames []string
	objects     []any
	done        bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderMaxSharedDataSize lowers the total shared-data limit, mirroring
// WithMaxSharedDataSize on the writer.
func WithReaderMaxSharedDataSize(n uint32) ReaderOption {
	return func(r *Reader) { r.limit = min(n, handle.MaxOffset) }
}

// WithObjectResolver sets how object references are resolved. Without one,
// objects resolve to their names.
func WithObjectResolver(res ObjectResolver) ReaderOption {
	return func(r *Reader) { r.resolver = res }
}

// NewReader creates a reader resolving templates through templates.
func NewReader(templates *nodetemplate.Registry, opts ...ReaderOption) *Reader {
	r := &Reader{templates: templates, limit: handle.MaxOffset}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadGraph parses a persisted stream. On any error the reader holds an empty
// graph: SharedData is empty and every resolution returns an invalid handle.
// Traits unknown to the catalog are an integrity violation and panic.
func (r *Reader) ReadGraph(ctx context.Context, src io.Reader) error {
	if r.done {
		panic("graphio: Reader.ReadGraph called twice")
	}
	err := r.read(ctx, src)
	r.done = true
	if err != nil {
		r.descs = nil
		r.shared = []byte{}
		r.objects = nil
		r.objectNames = nil
		return err
	}
	return nil
}

// ReadBytes is ReadGraph over an in-memory stream.
func (r *Reader) ReadBytes(ctx context.Context, stream []byte) error {
	return r.ReadGraph(ctx, bytes.NewReader(stream))
}

func (r *Reader) read(ctx context.Context, src io.Reader) error {
	logger := ctxlog.FromContext(ctx)
	d := &decoder{r: src}

	var magic [4]byte
	d.into(magic[:])
	if d.err == nil && magic != streamMagic {
		d.fail("bad magic %q", magic[:])
	}
	nodeCount := d.u32()
	objectCount := d.u32()
	if d.err != nil {
		return d.err
	}
	if uint64(nodeCount)*NodeDescriptionSize > uint64(r.limit) {
		return &LayoutError{Node: int(nodeCount) - 1, Size: uint64(nodeCount) * NodeDescriptionSize, Limit: uint64(r.limit), Err: ErrGraphTooLarge}
	}

	// objectCount is untrusted; a corrupt count fails on the missing bytes.
	for i := uint32(0); i < objectCount && d.err == nil; i++ {
		r.objectNames = append(r.objectNames, d.str())
	}

	// Node table: reduce every node to a template and fix offsets before any
	// field data is read, so forward references resolve.
	r.descs = make([]NodeDescription, 0, nodeCount)
	var total uint64
	for i := 0; i < int(nodeCount) && d.err == nil; i++ {
		n := int(d.u16())
		if n > nodetemplate.MaxTraits {
			d.fail("node %d stacks %d traits, at most %d allowed", i, n, nodetemplate.MaxTraits)
			break
		}
		uids := make([]trait.UID, n)
		for j := range uids {
			uids[j] = trait.UID(d.u32())
		}
		if d.err != nil {
			break
		}
		tpl, err := r.templates.FindOrAdd(uids)
		if err != nil {
			if errors.Is(err, nodetemplate.ErrUnknownTrait) {
				panic(fmt.Sprintf("graph node %d: %v", i, err))
			}
			return fmt.Errorf("node %d: %w", i, err)
		}
		if tpl.SharedSize > MaxNodeSharedDataSize {
			return &LayoutError{Node: i, Size: uint64(tpl.SharedSize), Limit: MaxNodeSharedDataSize, Err: ErrNodeSharedDataTooLarge}
		}
		if tpl.InstanceSize > MaxNodeInstanceDataSize {
			return &LayoutError{Node: i, Size: uint64(tpl.InstanceSize), Limit: MaxNodeInstanceDataSize, Err: ErrNodeInstanceDataTooLarge}
		}
		footprint := uint64(NodeDescriptionSize) + uint64(tpl.SharedSize)
		if total+footprint > uint64(r.limit) {
			return &LayoutError{Node: i, Size: total + footprint, Limit: uint64(r.limit), Err: ErrGraphTooLarge}
		}
		r.descs = append(r.descs, NodeDescription{
			ID:           uint32(i),
			Handle:       handle.NewNode(uint32(total)),
			Template:     tpl,
			InstanceSize: tpl.InstanceSize,
		})
		total += footprint
	}
	if d.err != nil {
		return d.err
	}

	r.shared = make([]byte, total)
	for _, desc := range r.descs {
		putHeader(r.shared[desc.Handle.Offset():], header{
			nodeID:       desc.ID,
			templateUID:  desc.Template.UID,
			instanceSize: desc.InstanceSize,
		})
		for t := range desc.Template.Traits {
			r.readTrait(d, desc, t)
		}
		if d.err != nil {
			return d.err
		}
	}

	r.objects = make([]any, len(r.objectNames))
	for i, name := range r.objectNames {
		if r.resolver == nil {
			r.objects[i] = name
			continue
		}
		obj, err := r.resolver.ResolveObject(name)
		if err != nil {
			logger.Warn("Graph references an object that could not be resolved.", "object", name, "error", err)
			continue
		}
		r.objects[i] = obj
	}
	logger.Debug("Graph stream read.", "nodes", len(r.descs), "shared_bytes", total, "objects", len(r.objects))
	return nil
}

func (r *Reader) readTrait(d *decoder, desc NodeDescription, t int) {
	l := desc.Template.Traits[t]
	shared := desc.TraitSharedData(r.shared, t)
	latent := desc.TraitLatentTable(r.shared, t)

	for li := 0; li < l.NumLatent; li++ {
		entry := latent[li*trait.LatentHandleSize:]
		d.into(entry[:4])
		h := trait.DecodeLatentHandle(entry)
		h.ValueOffset = desc.Template.LatentValueOffset(t, li)
		h.Encode(entry)
	}

	for _, f := range l.Descriptor.Fields {
		dst := shared[f.Offset : f.Offset+f.Kind.Size()]
		switch f.Kind {
		case trait.KindNodeHandle:
			logical := d.u32()
			if logical == noLogical {
				trait.PutUint32(dst, uint32(handle.InvalidNode))
				continue
			}
			if int(logical) >= len(r.descs) {
				d.fail("node %d references missing node %d", desc.ID, logical)
				return
			}
			trait.PutUint32(dst, uint32(r.descs[logical].Handle))
		case trait.KindTraitHandle:
			logical := d.u32()
			if logical == noLogical {
				trait.PutUint32(dst, uint32(handle.InvalidTrait))
				continue
			}
			node, idx := unpackLogicalTrait(logical)
			if node >= len(r.descs) || idx >= r.descs[node].Template.NumTraits() {
				d.fail("node %d references missing trait %d of node %d", desc.ID, idx, node)
				return
			}
			trait.PutUint32(dst, uint32(handle.NewTrait(r.descs[node].Handle, idx)))
		case trait.KindObject:
			d.into(dst)
			if idx := trait.Decode(f.Kind, dst).(uint32); idx != noLogical && int(idx) >= len(r.objectNames) {
				d.fail("node %d references missing object %d", desc.ID, idx)
				return
			}
		default:
			d.into(dst)
		}
	}
}

func (r *Reader) mustBeDone() {
	if !r.done {
		panic("graphio: handles resolved before the graph was read")
	}
}

// SharedData returns the rebuilt buffer.
func (r *Reader) SharedData() []byte {
	r.mustBeDone()
	return r.shared
}

// Nodes returns the rebuilt node descriptions.
func (r *Reader) Nodes() []NodeDescription {
	r.mustBeDone()
	return r.descs
}

// Objects returns the resolved side-table of host objects.
func (r *Reader) Objects() []any {
	r.mustBeDone()
	return r.objects
}

// ObjectNames returns the object names as stored in the stream.
func (r *Reader) ObjectNames() []string {
	r.mustBeDone()
	return r.objectNames
}

// ResolveNodeHandle translates logical node i into its handle.
func (r *Reader) ResolveNodeHandle(i int) handle.Node {
	r.mustBeDone()
	if i < 0 || i >= len(r.descs) {
		return handle.InvalidNode
	}
	return r.descs[i].Handle
}

// ResolveTraitHandle translates trait t of logical node i into its handle.
func (r *Reader) ResolveTraitHandle(i, t int) handle.Trait {
	node := r.ResolveNodeHandle(i)
	if !node.IsValid() || t < 0 || t >= r.descs[i].Template.NumTraits() {
		return handle.InvalidTrait
	}
	return handle.NewTrait(node, t)
}

// ResolveEntryPointHandle translates a named entry point stored as a logical
// node index.
func (r *Reader) ResolveEntryPointHandle(name string, i int) handle.EntryPoint {
	return handle.EntryPoint{Name: name, Root: r.ResolveNodeHandle(i)}
}
