package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductRow represents a single catalog entry
type ProductRow struct {
	Description string              `json:"descripcion"`
	CashPrice   decimal.NullDecimal `json:"precio_contado"`
	CardPrice   decimal.NullDecimal `json:"precio_tarjeta"`
	Segment     string              `json:"segmento"` // may be blank
}

// Key identifies a row by content. Rows with equal keys are treated as the
// same product when merging results from several queries.
func (p ProductRow) Key() string {
	return strings.Join([]string{
		p.Description,
		priceKey(p.CashPrice),
		priceKey(p.CardPrice),
		p.Segment,
	}, "\x1f")
}

func priceKey(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Catalog is the immutable, fully-resident product table.
// A Catalog must not be modified once it has been published.
type Catalog struct {
	Rows       []ProductRow
	Source     string
	LoadedAt   time.Time
	Generation uint64
}

// Len returns the number of rows, tolerating a nil catalog
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Rows)
}

// RowsBySegment returns the rows whose segment equals the filter, ignoring case.
// An empty filter returns every row.
func (c *Catalog) RowsBySegment(segment string) []ProductRow {
	if c == nil {
		return nil
	}
	if segment == "" {
		return c.Rows
	}

	want := strings.ToLower(segment)
	rows := make([]ProductRow, 0)
	for _, row := range c.Rows {
		if strings.ToLower(row.Segment) == want {
			rows = append(rows, row)
		}
	}
	return rows
}

// SegmentCounts groups rows by segment and counts them.
// Rows with a blank segment are counted under the empty key.
func (c *Catalog) SegmentCounts() SegmentSummary {
	summary := make(SegmentSummary)
	if c == nil {
		return summary
	}
	for _, row := range c.Rows {
		summary[row.Segment]++
	}
	return summary
}

// SegmentSummary maps a segment label to the number of rows carrying it
type SegmentSummary map[string]int

// Total returns the number of rows accounted for in the summary
func (s SegmentSummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Query is one search unit: free text plus an optional segment filter
type Query struct {
	Text    string `json:"consulta"`
	Segment string `json:"segmento,omitempty"`
}

// MatchResult is a scored catalog row
type MatchResult struct {
	ProductRow
	Score float64 `json:"score"` // 0-100
}

// QueryResult holds the matches of a single query before merging
type QueryResult struct {
	Query   Query
	Matches []MatchResult
}

// BatchResult is the outcome of evaluating several queries at once
type BatchResult struct {
	PerQuery []QueryResult
	Combined []MatchResult
}

// Misses returns the queries that produced no match
func (b *BatchResult) Misses() []Query {
	var misses []Query
	for _, qr := range b.PerQuery {
		if len(qr.Matches) == 0 {
			misses = append(misses, qr.Query)
		}
	}
	return misses
}
