package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/internal/optimizer"
	"github.com/eugenenazirov/tour-planner/internal/storage"
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

func testProvider() *catalog.StaticProvider {
	return &catalog.StaticProvider{
		RegionRows: []catalog.Region{{ID: "R", Name: "Example"}, {ID: "E", Name: "Empty"}},
		TourRows: []catalog.TourRow{
			{ID: "T1", RegionID: "R", Name: "One", DurationDays: 2, Cost: 100},
			{ID: "T2", RegionID: "R", Name: "Two", DurationDays: 3, Cost: 150},
			{ID: "T3", RegionID: "R", Name: "Three", DurationDays: 3, Cost: 50},
		},
		AttractionRows: []catalog.AttractionRow{
			{ID: "a1", Name: "First", CulturalValue: 5},
			{ID: "a2", Name: "Second", CulturalValue: 8},
			{ID: "a3", Name: "Third", CulturalValue: 3},
		},
		Links: map[string][]string{
			"T1": {"a1"},
			"T2": {"a2"},
			"T3": {"a1", "a3"},
		},
	}
}

func loadTestCatalog(t *testing.T, p catalog.Provider) *catalog.Catalog {
	t.Helper()

	c, err := catalog.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	if err := store.SetCatalog(loadTestCatalog(t, testProvider())); err != nil {
		t.Fatalf("set catalog: %v", err)
	}
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(optimizer.New(store), store, append([]HandlerOption{WithClock(clock.Now)}, opts...)...)
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock
}

func postJSON(t *testing.T, router http.Handler, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
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

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestListRegions(t *testing.T) {
	router, clock := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Regions []struct {
			ID        string `json:"id"`
			TourCount int    `json:"tourCount"`
		} `json:"regions"`
		LoadedAt time.Time `json:"loadedAt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(body.Regions))
	}
	if body.Regions[0].ID != "E" || body.Regions[0].TourCount != 0 {
		t.Fatalf("expected empty region E first, got %+v", body.Regions[0])
	}
	if body.Regions[1].ID != "R" || body.Regions[1].TourCount != 3 {
		t.Fatalf("unexpected second region: %+v", body.Regions[1])
	}
	if !body.LoadedAt.Equal(clock.Now()) {
		t.Fatalf("expected loadedAt %s, got %s", clock.Now(), body.LoadedAt)
	}
}

func TestListRegionsWithoutCatalog(t *testing.T) {
	store := storage.NewMemoryStorage()
	handler := NewHandler(optimizer.New(store), store)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestListRegionTours(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/regions/R/tours", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Tours []struct {
			ID            string `json:"id"`
			CulturalValue int    `json:"culturalValue"`
			Attractions   []struct {
				ID string `json:"id"`
			} `json:"attractions"`
		} `json:"tours"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Tours) != 3 {
		t.Fatalf("expected 3 tours, got %d", len(body.Tours))
	}
	if got := body.Tours[2]; got.ID != "T3" || got.CulturalValue != 8 || len(got.Attractions) != 2 {
		t.Fatalf("unexpected tour T3: %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/regions/nowhere/tours", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown region, got %d", rec.Code)
	}
}

func TestOptimizeEndpointSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/optimize", map[string]any{
		"regionId":  "R",
		"maxDays":   5,
		"maxBudget": 300,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Tours []struct {
			ID string `json:"id"`
		} `json:"tours"`
		TotalCost  float64 `json:"totalCost"`
		TotalValue int     `json:"totalValue"`
		TotalDays  int     `json:"totalDays"`
		Limits     struct {
			MaxDays   *int     `json:"maxDays"`
			MaxBudget *float64 `json:"maxBudget"`
		} `json:"limits"`
		Candidates []string `json:"candidates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Tours) != 2 || body.Tours[0].ID != "T1" || body.Tours[1].ID != "T2" {
		t.Fatalf("expected package [T1 T2], got %+v", body.Tours)
	}
	if body.TotalValue != 13 {
		t.Fatalf("expected total value 13, got %d", body.TotalValue)
	}
	if body.TotalCost != 250 {
		t.Fatalf("expected total cost 250, got %v", body.TotalCost)
	}
	if body.TotalDays != 5 {
		t.Fatalf("expected total days 5, got %d", body.TotalDays)
	}
	if body.Limits.MaxDays == nil || *body.Limits.MaxDays != 5 {
		t.Fatalf("expected maxDays limit 5, got %v", body.Limits.MaxDays)
	}
	if len(body.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %v", body.Candidates)
	}
}

func TestOptimizeEndpointUnboundedLimits(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/optimize", map[string]any{"regionId": "R"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		TotalValue int                        `json:"totalValue"`
		Limits     map[string]json.RawMessage `json:"limits"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.TotalValue != 16 {
		t.Fatalf("expected total value 16, got %d", body.TotalValue)
	}
	if string(body.Limits["maxDays"]) != "null" || string(body.Limits["maxBudget"]) != "null" {
		t.Fatalf("expected null limits, got %s / %s", body.Limits["maxDays"], body.Limits["maxBudget"])
	}
}

func TestOptimizeEndpointUnknownRegionIsEmpty(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/optimize", map[string]any{"regionId": "nowhere"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Tours      []json.RawMessage `json:"tours"`
		TotalValue int               `json:"totalValue"`
		TotalCost  float64           `json:"totalCost"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Tours == nil || len(body.Tours) != 0 || body.TotalValue != 0 || body.TotalCost != 0 {
		t.Fatalf("expected empty package, got %+v", body)
	}
}

func TestOptimizeEndpointValidatesInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	cases := map[string]any{
		"missing region":  map[string]any{"maxDays": 3},
		"negative days":   map[string]any{"regionId": "R", "maxDays": -1},
		"negative budget": map[string]any{"regionId": "R", "maxBudget": -10.5},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/optimize", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed JSON, got %d", rec.Code)
	}
}

type stubOptimizer struct {
	err error
}

func (s stubOptimizer) Optimize(context.Context, string, optimizer.Limits) (optimizer.Result, error) {
	return optimizer.Result{}, s.err
}

func TestOptimizeEndpointMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"too many tours", optimizer.ErrTooManyTours, http.StatusUnprocessableEntity},
		{"timeout", errors.Join(optimizer.ErrSearchAborted, context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"canceled", errors.Join(optimizer.ErrSearchAborted, context.Canceled), http.StatusServiceUnavailable},
		{"unexpected", assertError("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			handler := NewHandler(stubOptimizer{err: tc.err}, store)
			router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

			rec := postJSON(t, router, "/api/optimize", map[string]any{"regionId": "R"})
			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestOptimizeEndpointRejectsLargeRegions(t *testing.T) {
	store := storage.NewMemoryStorage()
	if err := store.SetCatalog(loadTestCatalog(t, testProvider())); err != nil {
		t.Fatalf("set catalog: %v", err)
	}
	handler := NewHandler(optimizer.New(store, optimizer.WithMaxTours(2)), store)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	rec := postJSON(t, router, "/api/optimize", map[string]any{"regionId": "R"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var body struct {
		Suggestion string `json:"suggestion"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected suggestion to be populated")
	}
}

func TestReloadCatalog(t *testing.T) {
	replacement := testProvider()
	replacement.TourRows = append(replacement.TourRows, catalog.TourRow{ID: "T4", RegionID: "E", Name: "Four", DurationDays: 1, Cost: 10})

	loader := func(ctx context.Context) (*catalog.Catalog, error) {
		return catalog.Load(ctx, replacement)
	}
	router, clock := setupTestRouter(t, WithCatalogLoader(loader))
	clock.Advance(time.Hour)

	rec := postJSON(t, router, "/api/catalog/reload", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Stats    catalog.Stats `json:"stats"`
		LoadedAt time.Time     `json:"loadedAt"`
		Message  string        `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Stats.Tours != 4 {
		t.Fatalf("expected 4 tours after reload, got %d", body.Stats.Tours)
	}
	if !body.LoadedAt.Equal(clock.Now()) {
		t.Fatalf("expected loadedAt %s, got %s", clock.Now(), body.LoadedAt)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/regions/E/tours", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `"T4"`) {
		t.Fatalf("expected reloaded tour to be served, got %s", rec.Body.String())
	}
}

func TestReloadCatalogFailures(t *testing.T) {
	router, _ := setupTestRouter(t)
	rec := postJSON(t, router, "/api/catalog/reload", map[string]any{})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 without loader, got %d", rec.Code)
	}

	failing := func(context.Context) (*catalog.Catalog, error) {
		return nil, assertError("source down")
	}
	router, _ = setupTestRouter(t, WithCatalogLoader(failing))
	rec = postJSON(t, router, "/api/catalog/reload", map[string]any{})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 on loader failure, got %d", rec.Code)
	}
}

func TestCorsPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/optimize", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected generated UUID request id, got %q", got)
	}
}
