package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cotizador/backend/internal/domain"
)

// QuoteObserver receives quotation metrics
type QuoteObserver interface {
	ObserveMatches(n int)
	ObserveCacheHit()
}

// QuoteServiceConfig holds configuration for the quote service
type QuoteServiceConfig struct {
	CacheTTL           time.Duration
	EnableDebugLogging bool
}

// QuoteService answers quotation requests against the catalog currently
// served, caching results per catalog generation
type QuoteService struct {
	catalogs        domain.CatalogProvider
	cache           domain.CacheRepository
	matchingService *MatchingService
	preprocessor    *QueryPreprocessor
	observer        QuoteObserver
	cacheTTL        time.Duration
	log             *zap.Logger
}

// NewQuoteService creates a quote service. cache and observer may be nil.
func NewQuoteService(
	catalogs domain.CatalogProvider,
	cache domain.CacheRepository,
	observer QuoteObserver,
	log *zap.Logger,
	config QuoteServiceConfig,
) *QuoteService {
	if log == nil {
		log = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	return &QuoteService{
		catalogs: catalogs,
		cache:    cache,
		matchingService: NewMatchingService(MatchConfig{
			EnableDebugLogging: config.EnableDebugLogging,
			Logger:             log,
		}),
		preprocessor: NewQueryPreprocessor(log, config.EnableDebugLogging),
		observer:     observer,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// Quote evaluates queries against the current catalog.
// Flow: capture catalog -> validate -> check cache -> evaluate -> cache -> return
func (s *QuoteService) Quote(ctx context.Context, queries []domain.Query, minScore int) (*domain.BatchResult, error) {
	catalog := s.catalogs.Current()
	if catalog == nil {
		return nil, domain.ErrCatalogNotLoaded
	}

	normalized := s.preprocessor.NormalizeQueries(queries)
	if err := ValidateBatch(normalized, minScore); err != nil {
		return nil, err
	}

	cacheKey := s.preprocessor.CacheKey(catalog.Generation, normalized, minScore)
	if cached, ok := s.getFromCache(ctx, cacheKey); ok {
		if s.observer != nil {
			s.observer.ObserveCacheHit()
		}
		return cached, nil
	}

	result, err := s.matchingService.EvaluateBatch(catalog, normalized, minScore)
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		for _, qr := range result.PerQuery {
			s.observer.ObserveMatches(len(qr.Matches))
		}
	}

	s.setInCache(ctx, cacheKey, result)

	s.log.Info("quotation evaluated",
		zap.Int("queries", len(normalized)),
		zap.Int("matches", len(result.Combined)),
		zap.Int("min_score", minScore),
		zap.Uint64("catalog_generation", catalog.Generation))

	return result, nil
}

// QuoteSingle evaluates one query; its matches are not merged or de-duplicated
func (s *QuoteService) QuoteSingle(ctx context.Context, query domain.Query, minScore int) ([]domain.MatchResult, error) {
	catalog := s.catalogs.Current()
	if catalog == nil {
		return nil, domain.ErrCatalogNotLoaded
	}

	query.Text = s.preprocessor.Normalize(query.Text)
	matches, err := s.matchingService.EvaluateSingle(catalog, query, minScore)
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.ObserveMatches(len(matches))
	}
	s.log.Info("quotation evaluated",
		zap.Int("queries", 1),
		zap.Int("matches", len(matches)),
		zap.Int("min_score", minScore),
		zap.Uint64("catalog_generation", catalog.Generation))

	return matches, nil
}

// Segments lists segment counts of the current catalog
func (s *QuoteService) Segments(ctx context.Context) (domain.SegmentSummary, error) {
	catalog := s.catalogs.Current()
	if catalog == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	return ListSegments(catalog), nil
}

// CatalogRows reports the size of the current catalog, 0 when none is loaded
func (s *QuoteService) CatalogRows() int {
	return s.catalogs.Current().Len()
}

// CatalogLoaded reports whether a catalog is being served
func (s *QuoteService) CatalogLoaded() bool {
	return s.catalogs.Current() != nil
}

func (s *QuoteService) getFromCache(ctx context.Context, key string) (*domain.BatchResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	result, ok := value.(*domain.BatchResult)
	return result, ok
}

func (s *QuoteService) setInCache(ctx context.Context, key string, result *domain.BatchResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
