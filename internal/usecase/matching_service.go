package usecase

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cotizador/backend/internal/domain"
)

// Score bounds and defaults
const (
	MaxScore        = 100.0
	DefaultMinScore = 90
)

// Segment boost: when a query resembles a row's segment at least this much,
// the combined score is raised so category hits rank above near misses on
// the description.
const (
	SegmentBoostThreshold = 80.0
	SegmentBoost          = 10.0
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
	Logger             *zap.Logger
}

// MatchingService scores catalog rows against free-text queries
type MatchingService struct {
	enableDebugLogging bool
	log                *zap.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &MatchingService{
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// RowScore is the breakdown of a row's combined score
type RowScore struct {
	Description float64
	Segment     float64
	Combined    float64
}

// ScoreRow computes the description, segment and combined scores of row for
// text. The combined score is the larger of the two, plus SegmentBoost when
// the segment score reaches SegmentBoostThreshold, capped at MaxScore.
// Blank fields score 0.
func ScoreRow(text string, row domain.ProductRow) RowScore {
	desc := PartialRatio(text, row.Description)
	seg := PartialRatio(text, row.Segment)

	combined := max(desc, seg)
	if seg >= SegmentBoostThreshold {
		combined = min(MaxScore, combined+SegmentBoost)
	}

	return RowScore{Description: desc, Segment: seg, Combined: combined}
}

// EvaluateSingle scores one query against the catalog and returns the rows
// reaching minScore, best first. It is the batch path with a single query.
func (s *MatchingService) EvaluateSingle(catalog *domain.Catalog, query domain.Query, minScore int) ([]domain.MatchResult, error) {
	if err := validateThreshold(minScore); err != nil {
		return nil, err
	}
	if err := validateQuery(query, 0); err != nil {
		return nil, err
	}

	result := s.evaluate(catalog, []domain.Query{query}, minScore)
	return result.PerQuery[0].Matches, nil
}

// EvaluateBatch scores every query independently, each with its own segment
// filter, then merges the matches into one list without duplicate rows.
// All queries are validated before any is scored; one invalid query rejects
// the whole batch.
func (s *MatchingService) EvaluateBatch(catalog *domain.Catalog, queries []domain.Query, minScore int) (*domain.BatchResult, error) {
	if err := ValidateBatch(queries, minScore); err != nil {
		return nil, err
	}
	return s.evaluate(catalog, queries, minScore), nil
}

// ValidateBatch checks a batch and its threshold without scoring anything
func ValidateBatch(queries []domain.Query, minScore int) error {
	if len(queries) == 0 {
		return &domain.InvalidQueryError{Field: "consultas", Reason: "must be a non-empty list"}
	}
	if err := validateThreshold(minScore); err != nil {
		return err
	}
	for i, q := range queries {
		if err := validateQuery(q, i+1); err != nil {
			return err
		}
	}
	return nil
}

func validateThreshold(minScore int) error {
	if minScore < 0 || minScore > int(MaxScore) {
		return &domain.InvalidQueryError{Field: "score_minimo", Reason: "must be between 0 and 100"}
	}
	return nil
}

func validateQuery(q domain.Query, index int) error {
	if strings.TrimSpace(q.Text) == "" {
		return &domain.InvalidQueryError{Index: index, Field: "consulta", Reason: "must be a non-empty string"}
	}
	return nil
}

// evaluate assumes its input has been validated
func (s *MatchingService) evaluate(catalog *domain.Catalog, queries []domain.Query, minScore int) *domain.BatchResult {
	perQuery := make([]domain.QueryResult, len(queries))
	for i, q := range queries {
		perQuery[i] = domain.QueryResult{
			Query:   q,
			Matches: s.match(catalog, q, float64(minScore)),
		}
	}

	return &domain.BatchResult{
		PerQuery: perQuery,
		Combined: mergeResults(perQuery),
	}
}

func (s *MatchingService) match(catalog *domain.Catalog, q domain.Query, threshold float64) []domain.MatchResult {
	candidates := catalog.RowsBySegment(q.Segment)

	if s.enableDebugLogging {
		s.log.Debug("matching query",
			zap.String("query", q.Text),
			zap.String("segment", q.Segment),
			zap.Int("candidates", len(candidates)))
	}

	matches := make([]domain.MatchResult, 0)
	for _, row := range candidates {
		score := ScoreRow(q.Text, row)

		if s.enableDebugLogging {
			s.log.Debug("scored row",
				zap.String("description", row.Description),
				zap.String("segment", row.Segment),
				zap.Float64("desc_score", score.Description),
				zap.Float64("segment_score", score.Segment),
				zap.Float64("score", score.Combined))
		}

		if score.Combined >= threshold {
			matches = append(matches, domain.MatchResult{ProductRow: row, Score: score.Combined})
		}
	}

	sortByScore(matches)
	return matches
}

// mergeResults concatenates per-query matches and keeps one entry per row
// identity with the highest score seen. Ties keep first-seen order.
func mergeResults(perQuery []domain.QueryResult) []domain.MatchResult {
	index := make(map[string]int)
	combined := make([]domain.MatchResult, 0)

	for _, qr := range perQuery {
		for _, m := range qr.Matches {
			key := m.Key()
			if i, seen := index[key]; seen {
				if m.Score > combined[i].Score {
					combined[i].Score = m.Score
				}
				continue
			}
			index[key] = len(combined)
			combined = append(combined, m)
		}
	}

	sortByScore(combined)
	return combined
}

func sortByScore(results []domain.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
