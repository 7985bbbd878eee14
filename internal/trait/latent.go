package trait

import "encoding/binary"

// LatentHandleSize is the encoded size of one latent-handle table entry.
const LatentHandleSize = 8

// LatentHandleAlign is the alignment of the latent-handle table.
const LatentHandleAlign = 4

// NoProgram marks a latent property that holds an inline literal.
const NoProgram = 0xFFFF

const latentFreezable = 1 << 0

// LatentHandle wires a latent property to an evaluation program. The value
// computed by the program is stored at ValueOffset inside the owning node's
// instance data.
type LatentHandle struct {
	Program     uint16
	Freezable   bool
	ValueOffset uint32
}

// HasProgram reports whether the property is computed rather than inline.
func (h LatentHandle) HasProgram() bool { return h.Program != NoProgram }

// Encode writes the handle into an 8-byte table entry.
func (h LatentHandle) Encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:], h.Program)
	var flags uint16
	if h.Freezable {
		flags |= latentFreezable
	}
	binary.LittleEndian.PutUint16(dst[2:], flags)
	binary.LittleEndian.PutUint32(dst[4:], h.ValueOffset)
}

// DecodeLatentHandle reads one table entry.
func DecodeLatentHandle(src []byte) LatentHandle {
	return LatentHandle{
		Program:     binary.LittleEndian.Uint16(src[0:]),
		Freezable:   binary.LittleEndian.Uint16(src[2:])&latentFreezable != 0,
		ValueOffset: binary.LittleEndian.Uint32(src[4:]),
	}
}

// DecodeLatentTable reads every entry of a latent-handle table.
func DecodeLatentTable(src []byte) []LatentHandle {
	out := make([]LatentHandle, 0, len(src)/LatentHandleSize)
	for off := 0; off+LatentHandleSize <= len(src); off += LatentHandleSize {
		out = append(out, DecodeLatentHandle(src[off:]))
	}
	return out
}
