// Package redisstore keeps compiled graph archives in Redis so several
// processes can share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
)

// Store implements graphstore.Store using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration of stored archives.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "traitgraph:graph:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Put stores a and adds it to the index. The index score is the expiry
// time, so List can prune names whose keys have expired.
func (s *Store) Put(ctx context.Context, a *graphio.Archive) error {
	if err := graphstore.ValidateName(a.Name); err != nil {
		return err
	}
	data, err := graphio.MarshalArchive(a)
	if err != nil {
		return err
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(a.Name), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: a.Name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving graph archive '%s' to redis: %w", a.Name, err)
	}
	return nil
}

// Get loads the archive stored under name.
func (s *Store) Get(ctx context.Context, name string) (*graphio.Archive, error) {
	if err := graphstore.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, graphstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading graph archive '%s' from redis: %w", name, err)
	}
	return graphio.UnmarshalArchive(data)
}

// Delete removes name and its index entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := graphstore.ValidateName(name); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting graph archive '%s' from redis: %w", name, err)
	}
	if del.Val() == 0 {
		return graphstore.ErrNotFound
	}
	return nil
}

// List prunes expired index entries and returns the remaining names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("pruning expired graph archives: %w", err)
	}
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing graph archives: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
