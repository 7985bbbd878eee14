// Package graphstore defines where compiled graph archives live between
// compilation and loading.
//
// # Why Graph Store Exists
//
// Compiling a graph description (HCL -> writer -> archive) and running it
// are separate steps. The CLI's compile command puts archives into a store;
// the runtime gets them back by name and hands them to graph.Load. Backends
// are interchangeable:
//   - inmemorystore: process-local, used by tests and single-shot runs
//   - filestore: one file per archive in a directory
//   - redisstore: shared between processes, with an optional TTL
//
// # Encoding
//
// Every backend stores the bytes produced by graphio.MarshalArchive
// (msgpack, zstd-compressed), so an archive can move between backends
// unchanged.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/traitgraph/internal/graphio"
)

// ErrNotFound is returned by Get and Delete for unknown names.
var ErrNotFound = errors.New("graph archive not found")

// ErrInvalidName is returned for names a backend cannot key on.
var ErrInvalidName = errors.New("invalid graph name")

// Store persists compiled graph archives by name.
type Store interface {
	// Put stores a, replacing any archive with the same name.
	Put(ctx context.Context, a *graphio.Archive) error
	// Get returns the archive stored under name, or ErrNotFound.
	Get(ctx context.Context, name string) (*graphio.Archive, error)
	// Delete removes name, or returns ErrNotFound.
	Delete(ctx context.Context, name string) error
	// List returns the stored names in ascending order.
	List(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// ValidateName checks that name is usable as a key and a file name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: '%s'", ErrInvalidName, name)
	}
	return nil
}
