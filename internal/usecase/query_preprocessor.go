package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cotizador/backend/internal/domain"
)

// Compiled regex patterns for query preprocessing
var (
	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// QueryPreprocessor cleans query text before it is scored
type QueryPreprocessor struct {
	enableDebugLogging bool
	log                *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(log *zap.Logger, enableDebugLogging bool) *QueryPreprocessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryPreprocessor{
		enableDebugLogging: enableDebugLogging,
		log:                log,
	}
}

// Normalize trims the text and collapses runs of whitespace to one space.
// Case is preserved; similarity scoring folds case itself.
func (p *QueryPreprocessor) Normalize(text string) string {
	cleaned := strings.TrimSpace(multiSpacePattern.ReplaceAllString(text, " "))

	if p.enableDebugLogging && cleaned != text {
		p.log.Debug("query normalized", zap.String("input", text), zap.String("output", cleaned))
	}

	return cleaned
}

// NormalizeQueries returns copies of queries with normalized text. Segment
// filters are matched exactly and are left as given.
func (p *QueryPreprocessor) NormalizeQueries(queries []domain.Query) []domain.Query {
	out := make([]domain.Query, len(queries))
	for i, q := range queries {
		out[i] = domain.Query{Text: p.Normalize(q.Text), Segment: q.Segment}
	}
	return out
}

// CacheKey builds a stable key for a quotation on a given catalog generation.
// Texts and segments are lowercased since scoring and filtering ignore case.
// Format: quote:{generation}:{minScore}:"{text}"|"{segment}";...
func (p *QueryPreprocessor) CacheKey(generation uint64, queries []domain.Query, minScore int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "quote:%d:%d:", generation, minScore)
	for i, q := range queries {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%q|%q", strings.ToLower(q.Text), strings.ToLower(q.Segment))
	}
	return b.String()
}
