package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cotizador/backend/internal/domain"
)

// Required column names as they appear in the source file
const (
	ColumnDescription = "Descripcion"
	ColumnCashPrice   = "Precio Contado"
	ColumnCardPrice   = "Precio Tarjeta"
	ColumnSegment     = "Segmento"
)

const defaultSeparator = ';'

// requiredColumns lists the schema in the order it is reported on error
var requiredColumns = []string{ColumnDescription, ColumnCashPrice, ColumnCardPrice, ColumnSegment}

// LoadOptions controls how a catalog source is parsed
type LoadOptions struct {
	Separator rune
	Logger    *zap.Logger
}

func (o LoadOptions) separator() rune {
	if o.Separator == 0 {
		return defaultSeparator
	}
	return o.Separator
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// LoadFile opens path and loads it as a catalog
func LoadFile(path string, opts LoadOptions) (*domain.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	cat, err := Load(f, opts)
	if err != nil {
		return nil, err
	}
	cat.Source = path
	return cat, nil
}

// Load reads a delimited table and maps it onto product rows.
// It fails with *domain.SchemaError when a required column is missing.
// Blank cells are kept; prices that cannot be parsed are left unset.
func Load(r io.Reader, opts LoadOptions) (*domain.Catalog, error) {
	log := opts.logger()

	reader := csv.NewReader(r)
	reader.Comma = opts.separator()
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.SchemaError{Missing: append([]string(nil), requiredColumns...)}
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	idx, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.ProductRow
	badPrices := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog line %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}

		cash, okCash := parsePrice(cell(record, idx.cash))
		card, okCard := parsePrice(cell(record, idx.card))
		if !okCash {
			badPrices++
		}
		if !okCard {
			badPrices++
		}

		rows = append(rows, domain.ProductRow{
			Description: cell(record, idx.description),
			CashPrice:   cash,
			CardPrice:   card,
			Segment:     cell(record, idx.segment),
		})
	}

	if badPrices > 0 {
		log.Warn("catalog contains unparsable prices", zap.Int("cells", badPrices))
	}

	return &domain.Catalog{
		Rows:     rows,
		LoadedAt: time.Now(),
	}, nil
}

type columnIndex struct {
	description int
	cash        int
	card        int
	segment     int
}

// mapHeader locates the required columns. Header names are compared after
// trimming, dropping a UTF-8 BOM, folding case and removing accents, so
// "Descripción" and "SEGMENTO" are accepted.
func mapHeader(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeHeader(name)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	var missing []string
	find := func(column string) int {
		i, ok := positions[normalizeHeader(column)]
		if !ok {
			missing = append(missing, column)
			return -1
		}
		return i
	}

	idx := columnIndex{
		description: find(ColumnDescription),
		cash:        find(ColumnCashPrice),
		card:        find(ColumnCardPrice),
		segment:     find(ColumnSegment),
	}
	if len(missing) > 0 {
		return columnIndex{}, &domain.SchemaError{Missing: missing}
	}
	return idx, nil
}

func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.Join(strings.Fields(name), " ")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(folded)
}

// cell returns the value at i as written, or "" for short records
func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parsePrice accepts plain decimals ("1234.50") as well as the comma
// decimal and dot thousands forms common in Spanish spreadsheets
// ("1.234,50", "1234,5"). A blank cell is unset but not an error.
func parsePrice(raw string) (decimal.NullDecimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.NullDecimal{}, true
	}

	if d, err := decimal.NewFromString(s); err == nil {
		return decimal.NewNullDecimal(d), true
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		if d, err := decimal.NewFromString(s); err == nil {
			return decimal.NewNullDecimal(d), true
		}
	}

	return decimal.NullDecimal{}, false
}
