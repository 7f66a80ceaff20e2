package cache

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dotandev/sorograph/internal/config"
)

// Store caches raw, immutable-by-hash fetch responses (transaction records,
// operation pages, execution reports). Decoded output is never cached; it is
// recomputed per request. Implementations are best-effort: a broken cache
// must never break a decode, so Get misses on error and Put logs and drops.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, val []byte)
	Close() error
}

// New builds the configured backend. backend "none" (or empty) returns nil,
// which callers treat as cache-disabled.
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		return newSqliteStore(cfg.Path)
	case "redis":
		return newRedisStore(cfg.RedisAddr)
	default:
		return nil, errors.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func logger(backend string) *log.Entry {
	return log.WithFields(log.Fields{
		"package": "cache",
		"backend": backend,
	})
}
