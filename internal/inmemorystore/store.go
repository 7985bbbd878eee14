package inmemorystore

import (
	"context"
	"sort"
	"sync"

	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
)

// Store is an in-memory implementation of graphstore.Store.
type Store struct {
	archives sync.Map // Key: graph name, Value: encoded archive []byte
}

// New creates a new, empty in-memory archive store.
func New() *Store {
	return &Store{}
}

// Put encodes and stores a.
func (s *Store) Put(ctx context.Context, a *graphio.Archive) error {
	if err := graphstore.ValidateName(a.Name); err != nil {
		return err
	}
	data, err := graphio.MarshalArchive(a)
	if err != nil {
		return err
	}
	s.archives.Store(a.Name, data)
	return nil
}

// Get decodes the archive stored under name.
func (s *Store) Get(ctx context.Context, name string) (*graphio.Archive, error) {
	if err := graphstore.ValidateName(name); err != nil {
		return nil, err
	}
	v, ok := s.archives.Load(name)
	if !ok {
		return nil, graphstore.ErrNotFound
	}
	return graphio.UnmarshalArchive(v.([]byte))
}

// Delete removes name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, ok := s.archives.LoadAndDelete(name); !ok {
		return graphstore.ErrNotFound
	}
	return nil
}

// List returns the stored names in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	s.archives.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
