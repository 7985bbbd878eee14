package graphstore

import (
	"context"

	"github.com/specialistvlad/traitgraph/internal/graphio"
)

// Recorder receives one call per store operation.
type Recorder interface {
	StoreOperation(backend, op string, err error)
}

type instrumented struct {
	Store
	backend string
	rec     Recorder
}

// Instrument reports every operation on s to rec under the backend label.
func Instrument(s Store, backend string, rec Recorder) Store {
	return &instrumented{Store: s, backend: backend, rec: rec}
}

func (s *instrumented) Put(ctx context.Context, a *graphio.Archive) error {
	err := s.Store.Put(ctx, a)
	s.rec.StoreOperation(s.backend, "put", err)
	return err
}

func (s *instrumented) Get(ctx context.Context, name string) (*graphio.Archive, error) {
	a, err := s.Store.Get(ctx, name)
	s.rec.StoreOperation(s.backend, "get", err)
	return a, err
}

func (s *instrumented) Delete(ctx context.Context, name string) error {
	err := s.Store.Delete(ctx, name)
	s.rec.StoreOperation(s.backend, "delete", err)
	return err
}

func (s *instrumented) List(ctx context.Context) ([]string, error) {
	names, err := s.Store.List(ctx)
	s.rec.StoreOperation(s.backend, "list", err)
	return names, err
}
