package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deusflow/bizfeed/internal/cache"
	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/storage"
)

// Store is a cache backend that owns a resource.
type Store interface {
	cache.Store
	io.Closer
}

type nopCloser struct{ cache.Store }

func (nopCloser) Close() error { return nil }

// OpenStore picks the cache backend named in cfg.
func OpenStore(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Info("using in-memory cache")
		return cache.NewMemory(0), nil
	case "file":
		fs, err := storage.NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		log.Info("using file cache", "path", cfg.FilePath)
		return nopCloser{fs}, nil
	case "postgres":
		ps, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		log.Info("using postgres cache", "database", config.MaskSecret(cfg.DatabaseURL))
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type countingStore interface {
	GetStats() map[string]int
}

type queryingStore interface {
	GetStats(ctx context.Context) (map[string]int, error)
}

// storeStats asks the backend for its counters; nil when it keeps none.
func storeStats(ctx context.Context, s cache.Store) (map[string]int, error) {
	switch st := s.(type) {
	case nopCloser:
		return storeStats(ctx, st.Store)
	case countingStore:
		return st.GetStats(), nil
	case queryingStore:
		return st.GetStats(ctx)
	default:
		return nil, nil
	}
}
