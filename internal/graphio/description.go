package graphio

import (
	"encoding/binary"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

const (
	// NodeDescriptionSize is the size of the header in front of every node.
	NodeDescriptionSize = 16
	// MaxNodeSharedDataSize bounds a single node's shared data.
	MaxNodeSharedDataSize = 0xFFFF
	// MaxNodeInstanceDataSize bounds a single node's instance data.
	MaxNodeInstanceDataSize = 0xFFFF
)

// NodeDescription is one node of a compiled graph.
type NodeDescription struct {
	ID           uint32
	Handle       handle.Node
	Template     *nodetemplate.Template
	InstanceSize uint32
}

// Footprint is the number of buffer bytes the node occupies.
func (d NodeDescription) Footprint() uint32 {
	return NodeDescriptionSize + d.Template.SharedSize
}

// SharedData returns the node's shared data inside buf, header excluded.
func (d NodeDescription) SharedData(buf []byte) []byte {
	start := d.Handle.Offset() + NodeDescriptionSize
	return buf[start : start+d.Template.SharedSize]
}

// TraitSharedData returns trait i's shared fields inside buf.
func (d NodeDescription) TraitSharedData(buf []byte, i int) []byte {
	l := d.Template.Traits[i]
	shared := d.SharedData(buf)
	return shared[l.SharedOffset : l.SharedOffset+l.SharedSize]
}

// TraitLatentTable returns trait i's latent-handle table inside buf.
func (d NodeDescription) TraitLatentTable(buf []byte, i int) []byte {
	l := d.Template.Traits[i]
	if l.NumLatent == 0 {
		return nil
	}
	shared := d.SharedData(buf)
	end := l.LatentHandlesOffset + uint32(l.NumLatent)*trait.LatentHandleSize
	return shared[l.LatentHandlesOffset:end]
}

type header struct {
	nodeID       uint32
	templateUID  uint32
	instanceSize uint32
}

func putHeader(dst []byte, h header) {
	binary.LittleEndian.PutUint32(dst[0:], h.nodeID)
	binary.LittleEndian.PutUint32(dst[4:], h.templateUID)
	binary.LittleEndian.PutUint32(dst[8:], h.instanceSize)
	binary.LittleEndian.PutUint32(dst[12:], 0)
}

func readHeader(src []byte) header {
	return header{
		nodeID:       binary.LittleEndian.Uint32(src[0:]),
		templateUID:  binary.LittleEndian.Uint32(src[4:]),
		instanceSize: binary.LittleEndian.Uint32(src[8:]),
	}
}
