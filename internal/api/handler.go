package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/eugenenazirov/share-selector/internal/catalog"
	"github.com/eugenenazirov/share-selector/internal/engine"
	"github.com/eugenenazirov/share-selector/internal/ingest"
	"github.com/eugenenazirov/share-selector/internal/solver"
	"github.com/eugenenazirov/share-selector/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// maxUploadBytes bounds catalog uploads.
const maxUploadBytes = 16 << 20

// Handler wires the solving engine and storage dependencies into HTTP handlers.
type Handler struct {
	engine  *engine.Engine
	storage storage.Storage

	clock func() time.Time

	// mu guards the stored catalog together with its metadata, so a solve
	// never pairs a catalog with another upload's scale.
	mu               sync.RWMutex
	catalogUpdatedAt time.Time
	catalogScale     int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(eng *engine.Engine, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:       eng,
		storage:      store,
		catalogScale: 1,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.catalogUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStrategies(w http.ResponseWriter, r *http.Request) {
	_ = r
	strategies := solver.Strategies()
	resp := strategiesResponse{Strategies: make([]strategyInfo, 0, len(strategies))}
	for _, s := range strategies {
		resp.Strategies = append(resp.Strategies, strategyInfo{Name: s, Exact: s.Exact()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	items, err := h.storage.GetCatalog()
	updatedAt, scale := h.catalogUpdatedAt, h.catalogScale
	h.mu.RUnlock()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := catalogResponse{
		Items:     items,
		Count:     len(items),
		Scale:     scale,
		UpdatedAt: updatedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePutCatalog accepts either a JSON body or a CSV/TSV listing with
// profit rates in percent (Content-Type text/csv or text/tab-separated-values).
// The cost scale of a listing is stored with the catalog and applied to every
// later budget.
func (h *Handler) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	items, scale, clean, err := decodeCatalog(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid catalog", err.Error())
		return
	}

	var stats *ingest.CleanStats
	if clean {
		kept, s := ingest.CleanCatalog(items)
		items, stats = kept, &s
	}

	h.mu.Lock()
	if err := h.storage.SetCatalog(items); err != nil {
		h.mu.Unlock()
		if errors.Is(err, storage.ErrInvalidCatalog) {
			writeError(w, http.StatusBadRequest, "Invalid catalog", err.Error(), "Enable cleaning to drop invalid shares")
			return
		}
		writeInternalError(w, err)
		return
	}
	h.catalogUpdatedAt = h.clock()
	h.catalogScale = scale
	updatedAt := h.catalogUpdatedAt
	stored, err := h.storage.GetCatalog()
	h.mu.Unlock()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := catalogResponse{
		Items:     stored,
		Count:     len(stored),
		Scale:     scale,
		UpdatedAt: updatedAt,
		Cleaning:  stats,
		Message:   "Catalog updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeCatalog(r *http.Request) (catalog.Catalog, int64, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	query := r.URL.Query()

	var format ingest.Format
	switch mediaType {
	case "text/csv":
		format = ingest.FormatCSV
	case "text/tab-separated-values":
		format = ingest.FormatText
	default:
		var req catalogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, 0, false, errors.New("unable to parse JSON payload")
		}
		return req.Items, 1, req.Clean, nil
	}

	scale := int64(1)
	if raw := query.Get("scale"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, false, fmt.Errorf("invalid scale %q", raw)
		}
		scale = parsed
	}
	if scale == 0 {
		scale = 1
	}
	clean := query.Get("clean") == "true"

	records, err := ingest.ReadRecords(r.Body, format)
	if err != nil {
		return nil, 0, false, err
	}
	if clean {
		records, _ = ingest.Clean(records)
	}
	items, err := ingest.ToCatalog(records, scale)
	if err != nil {
		return nil, 0, false, err
	}
	// Records were already cleaned before their amounts were validated.
	return items, scale, false, nil
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Budget == nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "budget is required")
		return
	}

	strategy := solver.Dynamic
	if req.Strategy != "" {
		parsed, err := solver.ParseStrategy(req.Strategy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		strategy = parsed
	}

	items, scale, budget, err := h.scaledCatalog(*req.Budget)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	out, err := h.engine.Solve(r.Context(), items, budget, strategy)
	if err != nil {
		writeSolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOutcomeResponse(out, *req.Budget, scale))
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Budget == nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "budget is required")
		return
	}

	strategies := make([]solver.Strategy, 0, len(req.Strategies))
	for _, raw := range req.Strategies {
		parsed, err := solver.ParseStrategy(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		strategies = append(strategies, parsed)
	}

	items, scale, budget, err := h.scaledCatalog(*req.Budget)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	outcomes, err := h.engine.Compare(r.Context(), items, budget, strategies)
	if err != nil {
		writeSolveError(w, err)
		return
	}

	resp := compareResponse{Budget: *req.Budget, Scale: scale, Results: make([]outcomeResponse, 0, len(outcomes))}
	for _, out := range outcomes {
		resp.Results = append(resp.Results, newOutcomeResponse(out, *req.Budget, scale))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSolveError(w http.ResponseWriter, err error) {
	switch {
	case solver.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, engine.ErrCatalogTooLarge):
		writeError(w, http.StatusUnprocessableEntity, "Catalog too large", err.Error(), "Use the greedy or dynamic strategy for large catalogs")
	case errors.Is(err, engine.ErrTableTooLarge):
		writeError(w, http.StatusUnprocessableEntity, "Budget too large", err.Error(), "Lower the budget or use the greedy strategy")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
	case errors.Is(err, solver.ErrInconsistentTable):
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
	default:
		writeInternalError(w, err)
	}
}

// scaledCatalog returns the stored catalog, its cost scale and budget
// expressed in the same units as the catalog costs.
func (h *Handler) scaledCatalog(budget float64) (catalog.Catalog, int64, float64, error) {
	h.mu.RLock()
	items, err := h.storage.GetCatalog()
	scale := h.catalogScale
	h.mu.RUnlock()
	if err != nil {
		return nil, 0, 0, err
	}

	scaled, err := ingest.ScaleBudget(budget, scale)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, scale, scaled, nil
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type catalogRequest struct {
	Items catalog.Catalog `json:"items"`
	Clean bool            `json:"clean"`
}

type solveRequest struct {
	Budget   *float64 `json:"budget"`
	Strategy string   `json:"strategy"`
}

type compareRequest struct {
	Budget     *float64 `json:"budget"`
	Strategies []string `json:"strategies"`
}

// outcomeResponse reports amounts in currency: costs of a scaled catalog are
// divided back by Scale.
type outcomeResponse struct {
	Strategy          solver.Strategy   `json:"strategy"`
	Budget            float64           `json:"budget"`
	Scale             int64             `json:"scale"`
	Items             catalog.Selection `json:"items"`
	TotalCost         float64           `json:"totalCost"`
	TotalProfit       float64           `json:"totalProfit"`
	Remaining         float64           `json:"remaining"`
	CalculationTimeMs int64             `json:"calculationTimeMs"`
	Error             string            `json:"error,omitempty"`
}

func newOutcomeResponse(out engine.Outcome, budget float64, scale int64) outcomeResponse {
	if scale < 1 {
		scale = 1
	}
	unscale := func(cost float64) float64 { return cost / float64(scale) }

	items := make(catalog.Selection, 0, len(out.Selection))
	for _, item := range out.Selection {
		item.Cost = unscale(item.Cost)
		items = append(items, item)
	}

	totalCost := unscale(out.TotalCost)
	resp := outcomeResponse{
		Strategy:          out.Strategy,
		Budget:            budget,
		Scale:             scale,
		Items:             items,
		TotalCost:         totalCost,
		TotalProfit:       out.TotalProfit,
		Remaining:         budget - totalCost,
		CalculationTimeMs: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
		resp.Remaining = budget
	}
	return resp
}

type compareResponse struct {
	Budget  float64           `json:"budget"`
	Scale   int64             `json:"scale"`
	Results []outcomeResponse `json:"results"`
}

type catalogResponse struct {
	Items     catalog.Catalog    `json:"items"`
	Count     int                `json:"count"`
	Scale     int64              `json:"scale"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Cleaning  *ingest.CleanStats `json:"cleaning,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type strategyInfo struct {
	Name  solver.Strategy `json:"name"`
	Exact bool            `json:"exact"`
}

type strategiesResponse struct {
	Strategies []strategyInfo `json:"strategies"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
