package graphio

import (
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Archive is the persisted envelope of a compiled graph: the node stream plus
// the tables that live beside the shared-data buffer.
type Archive struct {
	Name         string            `msgpack:"name"`
	Stream       []byte            `msgpack:"stream"`
	EntryPoints  []EntryPointEntry `msgpack:"entry_points"`
	DefaultEntry string            `msgpack:"default_entry"`
	Programs     []string          `msgpack:"programs"`
	Variables    []VariableEntry   `msgpack:"variables"`
	Interfaces   []InterfaceEntry  `msgpack:"interfaces"`
	Created      time.Time         `msgpack:"created"`
}

// EntryPointEntry names a root node by logical index.
type EntryPointEntry struct {
	Name string `msgpack:"name"`
	Node int    `msgpack:"node"`
}

// VariableEntry is a graph variable. Type and Default hold cty JSON.
type VariableEntry struct {
	Name      string `msgpack:"name"`
	Type      []byte `msgpack:"type"`
	Default   []byte `msgpack:"default"`
	Interface string `msgpack:"interface,omitempty"`
}

// InterfaceEntry is a public data interface: an ordered group of variables.
type InterfaceEntry struct {
	Name      string   `msgpack:"name"`
	Variables []string `msgpack:"variables"`
}

var (
	codecOnce sync.Once
	zstdEnc   *zstd.Encoder
	zstdDec   *zstd.Decoder
	codecErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		zstdEnc, codecErr = zstd.NewWriter(nil)
		if codecErr != nil {
			return
		}
		zstdDec, codecErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, codecErr
}

// MarshalArchive encodes and compresses an archive.
func MarshalArchive(a *Archive) ([]byte, error) {
	raw, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding archive '%s': %w", a.Name, err)
	}
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

// UnmarshalArchive decompresses and decodes an archive.
func UnmarshalArchive(data []byte) (*Archive, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing archive: %v", ErrCorruptStream, err)
	}
	var a Archive
	if err := msgpack.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: decoding archive: %v", ErrCorruptStream, err)
	}
	return &a, nil
}
