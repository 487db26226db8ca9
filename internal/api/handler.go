package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/internal/optimizer"
	"github.com/eugenenazirov/tour-planner/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultSearchTimeout = 10 * time.Second

// CatalogLoader reads a fresh catalog snapshot from the configured source.
type CatalogLoader func(ctx context.Context) (*catalog.Catalog, error)

// Handler wires optimizer and storage dependencies into HTTP handlers.
type Handler struct {
	optimizer optimizer.Optimizer
	storage   storage.Storage
	loader    CatalogLoader
	validate  *validator.Validate

	clock         func() time.Time
	searchTimeout time.Duration

	mu              sync.RWMutex
	catalogLoadedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithCatalogLoader enables POST /api/catalog/reload.
func WithCatalogLoader(loader CatalogLoader) HandlerOption {
	return func(h *Handler) {
		h.loader = loader
	}
}

// WithSearchTimeout bounds the duration of a single package search.
func WithSearchTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.searchTimeout = d
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(opt optimizer.Optimizer, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		optimizer:     opt,
		storage:       store,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		searchTimeout: defaultSearchTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, o := range opts {
		o(h)
	}
	h.catalogLoadedAt = h.clock()
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

func (h *Handler) handleListRegions(w http.ResponseWriter, r *http.Request) {
	_ = r
	c, err := h.storage.GetCatalog()
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	regions := c.Regions()
	resp := regionsResponse{
		Regions:  make([]regionResponse, 0, len(regions)),
		LoadedAt: h.currentCatalogLoadedAt(),
	}
	for _, region := range regions {
		resp.Regions = append(resp.Regions, regionResponse{
			ID:        region.ID,
			Name:      region.Name,
			TourCount: len(c.ToursInRegion(region.ID)),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListRegionTours(w http.ResponseWriter, r *http.Request) {
	c, err := h.storage.GetCatalog()
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	regionID := r.PathValue("id")
	region, ok := c.Region(regionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Region not found", fmt.Sprintf("no region with id %q", regionID))
		return
	}

	tours := c.ToursInRegion(region.ID)
	resp := regionToursResponse{
		Region: regionResponse{ID: region.ID, Name: region.Name, TourCount: len(tours)},
		Tours:  toTourResponses(tours),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", validationDetails(err))
		return
	}

	limits := optimizer.Limits{
		Days:   optimizer.LimitFrom(req.MaxDays),
		Budget: optimizer.LimitFrom(req.MaxBudget),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.searchTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.optimizer.Optimize(ctx, req.RegionID, limits)
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, optimizer.ErrTooManyTours):
			writeError(w, http.StatusUnprocessableEntity, "Region too large", err.Error(),
				"Narrow the catalog for this region or raise the tour ceiling")
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "Search timed out", err.Error(),
				"Tighten maxDays or maxBudget, or retry later")
		case errors.Is(err, optimizer.ErrSearchAborted):
			writeError(w, http.StatusServiceUnavailable, "Search aborted", err.Error())
		default:
			writeInternalError(w, err)
		}
		return
	}

	resp := optimizeResponse{
		RegionID:          req.RegionID,
		Tours:             toTourResponses(result.Tours),
		TotalDays:         result.TotalDays,
		TotalCost:         result.TotalCost,
		TotalValue:        result.TotalValue,
		Limits:            result.Limits,
		Candidates:        result.Candidates,
		Explored:          result.Explored,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "Reload unavailable", "no catalog source configured")
		return
	}

	c, err := h.loader(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if err := h.storage.SetCatalog(c); err != nil {
		writeInternalError(w, err)
		return
	}
	h.markCatalogLoaded()

	resp := reloadResponse{
		Stats:    c.Stats(),
		LoadedAt: h.currentCatalogLoadedAt(),
		Message:  "Catalog reloaded successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) currentCatalogLoadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.catalogLoadedAt
}

func (h *Handler) markCatalogLoaded() {
	h.mu.Lock()
	h.catalogLoadedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func toTourResponses(tours []*catalog.Tour) []tourResponse {
	out := make([]tourResponse, 0, len(tours))
	for _, t := range tours {
		attractions := t.Attractions()
		resp := tourResponse{
			ID:            t.ID,
			RegionID:      t.RegionID,
			Name:          t.Name,
			DurationDays:  t.DurationDays,
			Cost:          t.Cost,
			CulturalValue: t.CulturalValue(),
			Attractions:   make([]attractionResponse, 0, len(attractions)),
		}
		for _, a := range attractions {
			resp.Attractions = append(resp.Attractions, attractionResponse{
				ID:            a.ID,
				Name:          a.Name,
				CulturalValue: a.CulturalValue,
			})
		}
		out = append(out, resp)
	}
	return out
}

type optimizeRequest struct {
	RegionID  string   `json:"regionId" validate:"required"`
	MaxDays   *int     `json:"maxDays" validate:"omitempty,gte=0"`
	MaxBudget *float64 `json:"maxBudget" validate:"omitempty,gte=0"`
}

type attractionResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CulturalValue int    `json:"culturalValue"`
}

type tourResponse struct {
	ID            string               `json:"id"`
	RegionID      string               `json:"regionId"`
	Name          string               `json:"name"`
	DurationDays  int                  `json:"durationDays"`
	Cost          float64              `json:"cost"`
	CulturalValue int                  `json:"culturalValue"`
	Attractions   []attractionResponse `json:"attractions"`
}

type optimizeResponse struct {
	RegionID          string           `json:"regionId"`
	Tours             []tourResponse   `json:"tours"`
	TotalDays         int              `json:"totalDays"`
	TotalCost         float64          `json:"totalCost"`
	TotalValue        int              `json:"totalValue"`
	Limits            optimizer.Limits `json:"limits"`
	Candidates        []string         `json:"candidates"`
	Explored          int              `json:"explored"`
	CalculationTimeMs int64            `json:"calculationTimeMs"`
}

type regionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TourCount int    `json:"tourCount"`
}

type regionsResponse struct {
	Regions  []regionResponse `json:"regions"`
	LoadedAt time.Time        `json:"loadedAt"`
}

type regionToursResponse struct {
	Region regionResponse `json:"region"`
	Tours  []tourResponse `json:"tours"`
}

type reloadResponse struct {
	Stats    catalog.Stats `json:"stats"`
	LoadedAt time.Time     `json:"loadedAt"`
	Message  string        `json:"message"`
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

func writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrCatalogNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, "Catalog unavailable", err.Error())
		return
	}
	writeInternalError(w, err)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", jsonFieldName(fe.Field()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", jsonFieldName(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", jsonFieldName(fe.Field()), fe.Tag())
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "RegionID":
		return "regionId"
	case "MaxDays":
		return "maxDays"
	case "MaxBudget":
		return "maxBudget"
	default:
		return field
	}
}
