package graphio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var streamMagic = [4]byte{'T', 'G', 'R', 'F'}

// noLogical encodes an unset handle in the persisted stream.
const noLogical = 0xFFFFFFFF

// encoder is the write side of the archive boundary.
type encoder struct {
	buf bytes.Buffer
	tmp [8]byte
}

func (e *encoder) bytes(p []byte) { e.buf.Write(p) }

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.tmp[:2], v)
	e.buf.Write(e.tmp[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.tmp[:4], v)
	e.buf.Write(e.tmp[:4])
}

func (e *encoder) str(s string) {
	e.u16(uint16(len(s)))
	e.buf.WriteString(s)
}

// decoder is the read side of the archive boundary. The first error sticks
// and turns every later read into a no-op.
type decoder struct {
	r   io.Reader
	err error
	tmp [8]byte
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return d.tmp[:n]
	}
	var p []byte
	if n <= len(d.tmp) {
		p = d.tmp[:n]
	} else {
		p = make([]byte, n)
	}
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorruptStream, err)
		clear(p)
	}
	return p
}

func (d *decoder) into(dst []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, dst); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
}

func (d *decoder) u16() uint16 { return binary.LittleEndian.Uint16(d.read(2)) }
func (d *decoder) u32() uint32 { return binary.LittleEndian.Uint32(d.read(4)) }

func (d *decoder) str() string {
	n := int(d.u16())
	if d.err != nil {
		return ""
	}
	return string(d.read(n))
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrCorruptStream, fmt.Sprintf(format, args...))
	}
}
