package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/share-selector/internal/catalog"
	"github.com/eugenenazirov/share-selector/internal/config"
	"github.com/eugenenazirov/share-selector/internal/engine"
	"github.com/eugenenazirov/share-selector/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testLimits = config.Limits{MaxExhaustiveItems: 12, MaxTableCells: 1e6}

func setupTestRouter(t *testing.T) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	eng := engine.New(testLimits, zap.NewNop())
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(eng, store, WithClock(clock.Now))
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock
}

func serveJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func loadWorkedExample(t *testing.T, router http.Handler) {
	t.Helper()

	rec := serveJSON(t, router, http.MethodPut, "/api/catalog", map[string]any{
		"items": []catalog.Item{
			{Name: "A", Cost: 1, Profit: 1},
			{Name: "B", Cost: 2, Profit: 3},
			{Name: "C", Cost: 3, Profit: 4},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected catalog upload to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeBody[healthResponse](t, rec)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := serveJSON(t, router, http.MethodGet, "/api/strategies", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeBody[strategiesResponse](t, rec)
	exact := map[string]bool{}
	for _, s := range body.Strategies {
		exact[string(s.Name)] = s.Exact
	}
	want := map[string]bool{"bruteforce": true, "greedy": false, "dynamic": true}
	if len(exact) != len(want) {
		t.Fatalf("expected %d strategies, got %v", len(want), exact)
	}
	for name, isExact := range want {
		got, ok := exact[name]
		if !ok || got != isExact {
			t.Fatalf("strategy %s: expected exact=%v, got %v (present=%v)", name, isExact, got, ok)
		}
	}
}

func TestGetCatalogReturnsDefaults(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := serveJSON(t, router, http.MethodGet, "/api/catalog", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeBody[catalogResponse](t, rec)
	want := storage.DefaultCatalog()
	if body.Count != len(want) || len(body.Items) != len(want) {
		t.Fatalf("expected %d items, got count=%d len=%d", len(want), body.Count, len(body.Items))
	}
	for i, item := range want {
		if body.Items[i] != item {
			t.Fatalf("expected %+v at position %d, got %+v", item, i, body.Items[i])
		}
	}
	if !body.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), body.UpdatedAt)
	}
}

func TestPutCatalogJSONUpdatesStorage(t *testing.T) {
	router, clock := setupTestRouter(t)
	clock.Advance(time.Hour)

	loadWorkedExample(t, router)

	rec := serveJSON(t, router, http.MethodGet, "/api/catalog", nil)
	body := decodeBody[catalogResponse](t, rec)
	if body.Count != 3 {
		t.Fatalf("expected 3 items after update, got %d", body.Count)
	}
	if body.Items[1].Name != "B" || body.Items[1].Cost != 2 || body.Items[1].Profit != 3 {
		t.Fatalf("unexpected stored item: %+v", body.Items[1])
	}
	if !body.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt to advance to %s, got %s", clock.Now(), body.UpdatedAt)
	}
}

func TestPutCatalogJSONClean(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := serveJSON(t, router, http.MethodPut, "/api/catalog", map[string]any{
		"clean": true,
		"items": []catalog.Item{
			{Name: "A", Cost: 5, Profit: 1},
			{Name: "A", Cost: 6, Profit: 2},
			{Name: "Free", Cost: 0, Profit: 1},
			{Name: "B", Cost: 2, Profit: 0},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[catalogResponse](t, rec)
	if body.Count != 2 {
		t.Fatalf("expected 2 items to survive cleaning, got %d", body.Count)
	}
	if body.Cleaning == nil {
		t.Fatalf("expected cleaning stats in response")
	}
	if body.Cleaning.Duplicates != 1 || body.Cleaning.NonPositiveCost != 1 || body.Cleaning.Kept != 2 {
		t.Fatalf("unexpected cleaning stats: %+v", *body.Cleaning)
	}
}

func TestPutCatalogCSVWithScale(t *testing.T) {
	router, _ := setupTestRouter(t)

	csv := "name,price,profit\nShare-A,12.34,10\nShare-B,0.5,20\nShare-A,1,1\n"
	req := httptest.NewRequest(http.MethodPut, "/api/catalog?scale=100&clean=true", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[catalogResponse](t, rec)
	if body.Count != 2 {
		t.Fatalf("expected duplicate to be dropped, got %d items", body.Count)
	}
	if body.Items[0].Cost != 1234 || body.Items[1].Cost != 50 {
		t.Fatalf("expected costs in cents, got %+v", body.Items)
	}
}

func TestSolveScaledCatalogTakesBudgetInCurrency(t *testing.T) {
	router, _ := setupTestRouter(t)

	csv := "name,price,profit\nA,1.25,10\nB,2.50,10\nC,2.75,50\n"
	req := httptest.NewRequest(http.MethodPut, "/api/catalog?scale=100", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if uploaded := decodeBody[catalogResponse](t, rec); uploaded.Scale != 100 {
		t.Fatalf("expected catalog scale 100, got %d", uploaded.Scale)
	}

	rec = serveJSON(t, router, http.MethodPost, "/api/solve", map[string]any{"budget": 4.05, "strategy": "dynamic"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[outcomeResponse](t, rec)
	if body.Scale != 100 || body.Budget != 4.05 {
		t.Fatalf("expected budget 4.05 at scale 100, got %v at %d", body.Budget, body.Scale)
	}
	if names := body.Items.Names(); len(names) != 2 || names[0] != "A" || names[1] != "C" {
		t.Fatalf("expected selection [A C], got %v", names)
	}
	if body.TotalCost != 4 || body.Items[0].Cost != 1.25 || body.Items[1].Cost != 2.75 {
		t.Fatalf("expected costs in currency, got total %v items %+v", body.TotalCost, body.Items)
	}
	if math.Abs(body.Remaining-0.05) > 1e-9 {
		t.Fatalf("expected 0.05 remaining, got %v", body.Remaining)
	}

	rec = serveJSON(t, router, http.MethodPost, "/api/compare", map[string]any{"budget": 4.05})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cmp := decodeBody[compareResponse](t, rec)
	if cmp.Scale != 100 {
		t.Fatalf("expected compare scale 100, got %d", cmp.Scale)
	}
	for _, res := range cmp.Results {
		if res.Error != "" || res.TotalCost > 4.05 {
			t.Fatalf("%s: expected a selection within 4.05, got cost %v error %q", res.Strategy, res.TotalCost, res.Error)
		}
	}

	loadWorkedExample(t, router)
	rec = serveJSON(t, router, http.MethodGet, "/api/catalog", nil)
	if got := decodeBody[catalogResponse](t, rec); got.Scale != 1 {
		t.Fatalf("expected JSON upload to reset the scale, got %d", got.Scale)
	}
}

func TestPutCatalogRejectsInvalidPayloads(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "MalformedJSON", contentType: "application/json", body: "{"},
		{name: "NegativeCost", contentType: "application/json", body: `{"items":[{"name":"A","cost":-1,"profit":1}]}`},
		{name: "EmptyName", contentType: "application/json", body: `{"items":[{"name":"","cost":1,"profit":1}]}`},
		{name: "MalformedCSV", contentType: "text/csv", body: "name,price,profit\nA,abc,1\n"},
		{name: "NegativeRowWithoutClean", contentType: "text/csv", body: "A,-3,10\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/catalog", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSolveWorkedExample(t *testing.T) {
	router, _ := setupTestRouter(t)
	loadWorkedExample(t, router)

	for _, strategy := range []string{"bruteforce", "dynamic", "dp", "exhaustive"} {
		t.Run(strategy, func(t *testing.T) {
			rec := serveJSON(t, router, http.MethodPost, "/api/solve", map[string]any{
				"budget":   4,
				"strategy": strategy,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}

			body := decodeBody[outcomeResponse](t, rec)
			if body.TotalProfit != 5 || body.TotalCost != 4 {
				t.Fatalf("expected profit 5 at cost 4, got profit %v cost %v", body.TotalProfit, body.TotalCost)
			}
			if body.Remaining != 0 {
				t.Fatalf("expected no remaining budget, got %v", body.Remaining)
			}
			names := body.Items.Names()
			if len(names) != 2 || names[0] != "A" || names[1] != "C" {
				t.Fatalf("expected selection [A C], got %v", names)
			}
		})
	}
}

func TestSolveDefaultsToDynamic(t *testing.T) {
	router, _ := setupTestRouter(t)
	loadWorkedExample(t, router)

	rec := serveJSON(t, router, http.MethodPost, "/api/solve", map[string]any{"budget": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeBody[outcomeResponse](t, rec)
	if body.Strategy != "dynamic" {
		t.Fatalf("expected dynamic strategy, got %s", body.Strategy)
	}
}

func TestSolveEmptySelectionIsArray(t *testing.T) {
	router, _ := setupTestRouter(t)
	loadWorkedExample(t, router)

	rec := serveJSON(t, router, http.MethodPost, "/api/solve", map[string]any{"budget": 0, "strategy": "greedy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestSolveValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name    string
		payload any
		status  int
	}{
		{name: "MissingBudget", payload: map[string]any{"strategy": "greedy"}, status: http.StatusBadRequest},
		{name: "NegativeBudget", payload: map[string]any{"budget": -1}, status: http.StatusBadRequest},
		{name: "UnknownStrategy", payload: map[string]any{"budget": 10, "strategy": "quantum"}, status: http.StatusBadRequest},
		{name: "FractionalBudgetDynamic", payload: map[string]any{"budget": 10.5, "strategy": "dynamic"}, status: http.StatusBadRequest},
		{name: "TableTooLarge", payload: map[string]any{"budget": 1e9, "strategy": "dynamic"}, status: http.StatusUnprocessableEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveJSON(t, router, http.MethodPost, "/api/solve", tc.payload)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSolveRejectsLargeCatalogForBruteForce(t *testing.T) {
	router, _ := setupTestRouter(t)

	items := make([]catalog.Item, testLimits.MaxExhaustiveItems+1)
	for i := range items {
		items[i] = catalog.Item{Name: "S" + strings.Repeat("x", i+1), Cost: float64(i + 1), Profit: 1}
	}
	rec := serveJSON(t, router, http.MethodPut, "/api/catalog", map[string]any{"items": items})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected catalog upload to succeed, got %d", rec.Code)
	}

	rec = serveJSON(t, router, http.MethodPost, "/api/solve", map[string]any{"budget": 10, "strategy": "bruteforce"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[errorResponse](t, rec)
	if body.Suggestion == "" {
		t.Fatalf("expected a suggestion for the oversized catalog")
	}
}

func TestCompareEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	loadWorkedExample(t, router)

	rec := serveJSON(t, router, http.MethodPost, "/api/compare", map[string]any{"budget": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[compareResponse](t, rec)
	if len(body.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(body.Results))
	}
	profits := map[string]float64{}
	for _, r := range body.Results {
		if r.Error != "" {
			t.Fatalf("strategy %s failed: %s", r.Strategy, r.Error)
		}
		profits[string(r.Strategy)] = r.TotalProfit
	}
	if profits["bruteforce"] != 5 || profits["dynamic"] != 5 {
		t.Fatalf("expected exact strategies to reach 5, got %v", profits)
	}
	// Greedy takes B (ratio 1.5), skips C and then takes A.
	if profits["greedy"] != 4 {
		t.Fatalf("expected greedy profit 4, got %v", profits["greedy"])
	}
}

func TestCompareReportsPerStrategyErrors(t *testing.T) {
	router, _ := setupTestRouter(t)
	loadWorkedExample(t, router)

	rec := serveJSON(t, router, http.MethodPost, "/api/compare", map[string]any{
		"budget":     3.5,
		"strategies": []string{"greedy", "dynamic"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[compareResponse](t, rec)
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(body.Results))
	}
	if body.Results[0].Error != "" {
		t.Fatalf("expected greedy to succeed, got %s", body.Results[0].Error)
	}
	if body.Results[1].Error == "" {
		t.Fatalf("expected dynamic to reject a fractional budget")
	}
	if body.Results[1].Remaining != 3.5 {
		t.Fatalf("expected failed outcome to keep the whole budget, got %v", body.Results[1].Remaining)
	}
}

func TestCompareValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := serveJSON(t, router, http.MethodPost, "/api/compare", map[string]any{"strategies": []string{"greedy"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing budget, got %d", rec.Code)
	}

	rec = serveJSON(t, router, http.MethodPost, "/api/compare", map[string]any{"budget": 4, "strategies": []string{"nope"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown strategy, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/solve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on preflight")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", got)
	}
}
