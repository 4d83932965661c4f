package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// prepare parses the request and checks that there is data to aggregate.
func (h *APIHandlers) prepare(w http.ResponseWriter, r *http.Request) (models.FilterSelection, queryParams, bool) {
	if !h.dashboard.Loaded() {
		h.fail(w, r, errors.ServiceUnavailable("sales data is not loaded"))
		return nil, queryParams{}, false
	}
	selection, params, err := parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, params, false
	}
	return selection, params, true
}

func (h *APIHandlers) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.dashboard.FilterOptions(), nil)
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	selection, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	report, err := h.dashboard.Report(r.Context(), selection, models.Bucket(params.Bucket))
	h.respond(w, r, report, err)
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	selection, _, ok := h.prepare(w, r)
	if !ok {
		return
	}
	kpi, err := h.dashboard.KPIs(r.Context(), selection)
	h.respond(w, r, kpi, err)
}

func (h *APIHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	selection, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	series, err := h.dashboard.Series(r.Context(), selection, models.DimensionDate, models.Bucket(params.Bucket))
	h.respond(w, r, series, err)
}

// HandleSalesBy groups sales by the dimension named in the path.
func (h *APIHandlers) HandleSalesBy(w http.ResponseWriter, r *http.Request) {
	selection, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	series, err := h.dashboard.Series(r.Context(), selection, models.Dimension(params.Dimension), models.Bucket(params.Bucket))
	h.respond(w, r, series, err)
}

func (h *APIHandlers) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	selection, _, ok := h.prepare(w, r)
	if !ok {
		return
	}
	dist, err := h.dashboard.Distribution(r.Context(), selection)
	h.respond(w, r, dist, err)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"records":   h.dashboard.Dataset().Len(),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}
