package catalog

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cotizador/backend/internal/domain"
)

// ReloadObserver is notified after every load attempt
type ReloadObserver interface {
	ObserveReload(rows int, err error)
}

// Store holds the catalog being served and swaps it atomically on reload.
// Readers never block: a request captures Current() once and keeps using
// that catalog even if a reload publishes a newer one.
type Store struct {
	path     string
	opts     LoadOptions
	log      *zap.Logger
	observer ReloadObserver
	remote   *RemoteClient

	current    atomic.Pointer[domain.Catalog]
	generation atomic.Uint64
	reloadMu   sync.Mutex
}

// NewStore creates a store for the catalog at path, a local file or an
// http(s) URL. Nothing is loaded until Reload is called.
func NewStore(path string, opts LoadOptions, observer ReloadObserver) *Store {
	s := &Store{
		path:     path,
		opts:     opts,
		log:      opts.logger(),
		observer: observer,
	}
	if IsRemote(path) {
		s.remote = NewRemoteClient(path, s.log)
	}
	return s
}

// Remote reports whether the catalog is downloaded rather than read from disk
func (s *Store) Remote() bool {
	return s.remote != nil
}

// Path returns the catalog file backing the store
func (s *Store) Path() string {
	return s.path
}

// Current returns the published catalog, or nil if none has loaded yet
func (s *Store) Current() *domain.Catalog {
	return s.current.Load()
}

// Reload reads the catalog file again and publishes it. On failure the
// previously published catalog stays in place and the error is returned.
func (s *Store) Reload(ctx context.Context) (*domain.Catalog, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cat, err := s.load(ctx)
	if s.observer != nil {
		s.observer.ObserveReload(cat.Len(), err)
	}
	if err != nil {
		s.log.Error("catalog load failed",
			zap.String("path", s.path),
			zap.Bool("serving_previous", s.Current() != nil),
			zap.Error(err))
		return nil, err
	}

	s.Publish(cat)
	return cat, nil
}

func (s *Store) load(ctx context.Context) (*domain.Catalog, error) {
	if s.remote == nil {
		return LoadFile(s.path, s.opts)
	}

	body, err := s.remote.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := Load(bytes.NewReader(body), s.opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	cat.Source = s.path
	return cat, nil
}

// Publish assigns the next generation to cat and makes it current.
// cat must not be modified afterwards.
func (s *Store) Publish(cat *domain.Catalog) {
	cat.Generation = s.generation.Add(1)
	s.current.Store(cat)
	s.log.Info("catalog published",
		zap.String("source", cat.Source),
		zap.Int("rows", len(cat.Rows)),
		zap.Uint64("generation", cat.Generation))
}
