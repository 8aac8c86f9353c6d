package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogProvider exposes the catalog currently being served.
// Callers capture the returned pointer once per request and keep using it
// even if a reload publishes a newer catalog meanwhile.
type CatalogProvider interface {
	Current() *Catalog
}
