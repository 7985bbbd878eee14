package app

import (
	"context"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/filestore"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
	"github.com/specialistvlad/traitgraph/internal/inmemorystore"
	"github.com/specialistvlad/traitgraph/internal/redisstore"
)

// openStore creates the configured graph store backend.
func openStore(ctx context.Context, cfg StoreConfig) (graphstore.Store, error) {
	logger := ctxlog.FromContext(ctx)
	switch cfg.Backend {
	case "file":
		return filestore.New(cfg.Dir)
	case "redis":
		var opts []redisstore.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.Redis.TTL))
		}
		s := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err := s.Ping(ctx); err != nil {
			logger.Warn("Redis graph store is not reachable yet.", "addr", cfg.Redis.Addr, "error", err)
		}
		return s, nil
	}
	return inmemorystore.New(), nil
}
