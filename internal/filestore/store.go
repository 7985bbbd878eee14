// Package filestore keeps compiled graph archives as files in a directory,
// one file per graph.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/traitgraph/internal/fsutil"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
)

// Extension is the suffix of archive files.
const Extension = ".tgraph"

// Store implements graphstore.Store over a directory.
type Store struct {
	dir  string
	perm os.FileMode
}

// Option configures a Store.
type Option func(*Store)

// WithFileMode sets the permissions of written archives.
func WithFileMode(perm os.FileMode) Option {
	return func(s *Store) { s.perm = perm }
}

// New opens dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating graph store directory: %w", err)
	}
	s := &Store{dir: dir, perm: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

// Put writes a atomically.
func (s *Store) Put(ctx context.Context, a *graphio.Archive) error {
	if err := graphstore.ValidateName(a.Name); err != nil {
		return err
	}
	data, err := graphio.MarshalArchive(a)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path(a.Name), data, s.perm); err != nil {
		return fmt.Errorf("writing graph archive '%s': %w", a.Name, err)
	}
	return nil
}

// Get reads the archive stored under name.
func (s *Store) Get(ctx context.Context, name string) (*graphio.Archive, error) {
	if err := graphstore.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, graphstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading graph archive '%s': %w", name, err)
	}
	return graphio.UnmarshalArchive(data)
}

// Delete removes the archive file of name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := graphstore.ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return graphstore.ErrNotFound
	}
	return err
}

// List returns the names of the archive files directly in the directory.
func (s *Store) List(ctx context.Context) ([]string, error) {
	files, err := fsutil.FindFilesByExtension(s.dir, Extension)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if filepath.Dir(f) != filepath.Clean(s.dir) {
			continue
		}
		names = append(names, strings.TrimSuffix(filepath.Base(f), Extension))
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
