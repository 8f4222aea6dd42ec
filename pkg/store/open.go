package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-redis/redis/v8"

	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// DefaultURL is used when no store is configured.
const DefaultURL = "redis://127.0.0.1:6379/0"

// Open connects to the backend named by the URL scheme:
//
//	memory://                     in-process, lost on exit
//	redis://host:port/db          Redis
//	postgres://user:pw@host/db    PostgreSQL
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("store url %q: %w", rawURL, util.ErrInvalidConfig)
	}

	util.WithField("scheme", u.Scheme).Debug("opening store")

	switch u.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("store url %q: %v: %w", rawURL, err, util.ErrInvalidConfig)
		}
		return NewRedisStore(ctx, opts)
	case "postgres", "postgresql":
		return NewPGStore(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q: %w", u.Scheme, util.ErrInvalidConfig)
	}
}
