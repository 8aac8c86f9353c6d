package http

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cotizador/backend/internal/domain"
	"github.com/cotizador/backend/internal/usecase"
)

const (
	serviceName    = "cotizador-backend"
	defaultVersion = "1.0.0"
)

// HandlerConfig holds request-level defaults
type HandlerConfig struct {
	DefaultMinScore int
	Version         string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	quotes          *usecase.QuoteService
	defaultMinScore int
	version         string
	log             *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(quotes *usecase.QuoteService, log *zap.Logger, config HandlerConfig) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	version := config.Version
	if version == "" {
		version = defaultVersion
	}

	return &Handler{
		quotes:          quotes,
		defaultMinScore: config.DefaultMinScore,
		version:         version,
		log:             log,
	}
}

// errorResponse is the body of every error reply
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// resultItem is one matched catalog row
type resultItem struct {
	Descripcion   string   `json:"descripcion"`
	PrecioContado *float64 `json:"precio_contado"`
	PrecioTarjeta *float64 `json:"precio_tarjeta"`
	Segmento      string   `json:"segmento"`
	Score         float64  `json:"score"`
}

// consultaItem is one query of a batch request
type consultaItem struct {
	Consulta *string `json:"consulta"`
	Segmento *string `json:"segmento"`
}

// cotizarRequest accepts both the single form (consulta) and the batch form
// (consultas). The single form wins when both are present.
type cotizarRequest struct {
	Consulta    *string         `json:"consulta"`
	Segmento    *string         `json:"segmento"`
	Consultas   *[]consultaItem `json:"consultas"`
	ScoreMinimo *int            `json:"score_minimo"`
}

// consultaResponse answers one query
type consultaResponse struct {
	Consulta         string       `json:"consulta"`
	Resultados       []resultItem `json:"resultados"`
	TotalEncontrados int          `json:"total_encontrados"`
	SegmentoFiltrado string       `json:"segmento_filtrado,omitempty"`
}

// batchResponse answers a batch of queries
type batchResponse struct {
	ConsultasProcesadas       []consultaResponse `json:"consultas_procesadas"`
	ResultadosCombinados      []resultItem       `json:"resultados_combinados"`
	TotalConsultas            int                `json:"total_consultas"`
	TotalEncontradosCombinado int                `json:"total_encontrados_combinados"`
	ConsultasSinResultados    []string           `json:"consultas_sin_resultados"`
}

type segmentoItem struct {
	Segmento          string `json:"segmento"`
	CantidadProductos int    `json:"cantidad_productos"`
}

type segmentosResponse struct {
	Segmentos      []segmentoItem `json:"segmentos"`
	TotalSegmentos int            `json:"total_segmentos"`
}

// Root is the liveness probe kept for existing webhook integrations
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Webhook activo"})
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	rows := h.quotes.CatalogRows()
	status, code := "healthy", http.StatusOK
	if !h.quotes.CatalogLoaded() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"service":      serviceName,
		"version":      h.version,
		"catalog_rows": rows,
	})
}

// Segments lists the catalog segments with their product counts
func (h *Handler) Segments(c *gin.Context) {
	summary, err := h.quotes.Segments(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	counts := usecase.SortedSegments(summary)
	items := make([]segmentoItem, 0, len(counts))
	for _, sc := range counts {
		items = append(items, segmentoItem{Segmento: sc.Segment, CantidadProductos: sc.Count})
	}

	c.JSON(http.StatusOK, segmentosResponse{Segmentos: items, TotalSegmentos: len(items)})
}

// Cotizar handles quotation requests in single or batch form
func (h *Handler) Cotizar(c *gin.Context) {
	if !isJSONContentType(c.GetHeader("Content-Type")) {
		abortWithError(c, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var req cotizarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	minScore := h.defaultMinScore
	if req.ScoreMinimo != nil {
		minScore = *req.ScoreMinimo
	}

	switch {
	case req.Consulta != nil:
		h.cotizarSingle(c, req, minScore)
	case req.Consultas != nil:
		h.cotizarBatch(c, *req.Consultas, minScore)
	default:
		abortWithError(c, http.StatusBadRequest,
			"Missing required field. Use 'consulta' for single search or 'consultas' for multiple searches")
	}
}

func (h *Handler) cotizarSingle(c *gin.Context, req cotizarRequest, minScore int) {
	segment, err := segmentFilter(req.Segmento, 0)
	if err != nil {
		h.handleError(c, err)
		return
	}

	query := domain.Query{Text: *req.Consulta, Segment: segment}
	matches, err := h.quotes.QuoteSingle(c.Request.Context(), query, minScore)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConsultaResponse(*req.Consulta, segment, matches))
}

func (h *Handler) cotizarBatch(c *gin.Context, items []consultaItem, minScore int) {
	if len(items) == 0 {
		h.handleError(c, &domain.InvalidQueryError{Field: "consultas", Reason: "must be a non-empty list"})
		return
	}

	queries := make([]domain.Query, len(items))
	for i, item := range items {
		if item.Consulta == nil {
			h.handleError(c, &domain.InvalidQueryError{Index: i + 1, Field: "consulta", Reason: "is required"})
			return
		}
		segment, err := segmentFilter(item.Segmento, i+1)
		if err != nil {
			h.handleError(c, err)
			return
		}
		queries[i] = domain.Query{Text: *item.Consulta, Segment: segment}
	}

	result, err := h.quotes.Quote(c.Request.Context(), queries, minScore)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := batchResponse{
		ConsultasProcesadas:    make([]consultaResponse, len(result.PerQuery)),
		ResultadosCombinados:   toResultItems(result.Combined),
		TotalConsultas:         len(queries),
		ConsultasSinResultados: []string{},
	}
	resp.TotalEncontradosCombinado = len(resp.ResultadosCombinados)

	// Echo the caller's text: cached results carry normalised queries.
	for i, qr := range result.PerQuery {
		resp.ConsultasProcesadas[i] = toConsultaResponse(*items[i].Consulta, queries[i].Segment, qr.Matches)
		if len(qr.Matches) == 0 {
			resp.ConsultasSinResultados = append(resp.ConsultasSinResultados, *items[i].Consulta)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// NotFound answers unknown routes
func (h *Handler) NotFound(c *gin.Context) {
	abortWithError(c, http.StatusNotFound, "Endpoint not found")
}

// MethodNotAllowed answers known routes called with the wrong method
func (h *Handler) MethodNotAllowed(c *gin.Context) {
	abortWithError(c, http.StatusMethodNotAllowed, "Method not allowed")
}

// handleError maps domain errors to HTTP status codes
func (h *Handler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCatalogNotLoaded):
		abortWithError(c, http.StatusServiceUnavailable, "Product catalog not loaded")
	default:
		h.log.Error("request failed", zap.String("request_id", requestID(c)), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message, RequestID: requestID(c)})
}

// segmentFilter trims an optional segment; provided-but-blank is rejected
func segmentFilter(segment *string, index int) (string, error) {
	if segment == nil {
		return "", nil
	}
	trimmed := strings.TrimSpace(*segment)
	if trimmed == "" {
		return "", &domain.InvalidQueryError{Index: index, Field: "segmento", Reason: "must be a non-empty string when provided"}
	}
	return trimmed, nil
}

func isJSONContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func toConsultaResponse(text, segment string, matches []domain.MatchResult) consultaResponse {
	items := toResultItems(matches)
	return consultaResponse{
		Consulta:         text,
		Resultados:       items,
		TotalEncontrados: len(items),
		SegmentoFiltrado: segment,
	}
}

func toResultItems(matches []domain.MatchResult) []resultItem {
	items := make([]resultItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, resultItem{
			Descripcion:   m.Description,
			PrecioContado: priceValue(m.CashPrice),
			PrecioTarjeta: priceValue(m.CardPrice),
			Segmento:      m.Segment,
			Score:         m.Score,
		})
	}
	return items
}

// priceValue renders a price as a JSON number, or null when absent
func priceValue(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}
