package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const maxTableRows = 50

var productTableTemplate = template.Must(template.New("productTable").Parse(`
<div id="product-line-table">
<table class="modern-table">
<thead><tr><th>Product line</th><th>Sales</th><th>Share</th></tr></thead>
<tbody>
{{range $i, $row := .Rows}}{{if lt $i $.MaxRows}}<tr>
<td>{{$row.Label}}</td>
<td><strong>${{$row.Sales}}</strong></td>
<td>{{$row.Share}}%</td>
</tr>{{end}}{{else}}<tr><td colspan="3">No sales match the current filters</td></tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(
	`<div id="dashboard-error" class="error-banner">{{.}}</div>`))

const clearedError = `<div id="dashboard-error"></div>`

// chartPoint is the shape the page's chart script consumes. Values are floats
// because they are only used for plotting; the JSON API keeps decimals.
type chartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type tableRow struct {
	Label string
	Sales string
	Share string
}

type tableData struct {
	Rows    []tableRow
	MaxRows int
}

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

func chartPoints(series models.GroupedSeries) []chartPoint {
	points := make([]chartPoint, 0, len(series.Points))
	for _, p := range series.Points {
		points = append(points, chartPoint{Label: p.Key, Value: p.Value.InexactFloat64()})
	}
	return points
}

func distributionPoints(dist models.Distribution) []chartPoint {
	points := make([]chartPoint, 0, len(dist.Bins))
	for _, b := range dist.Bins {
		points = append(points, chartPoint{
			Label: b.Lower.StringFixed(2) + "-" + b.Upper.StringFixed(2),
			Value: float64(b.Count),
		})
	}
	return points
}

func (h *SSEHandlers) renderProductTable(series models.GroupedSeries, total decimal.Decimal) (string, error) {
	rows := make([]tableRow, 0, min(len(series.Points), maxTableRows))
	for i, p := range series.Points {
		if i == maxTableRows {
			break
		}
		share := decimal.Zero
		if total.IsPositive() {
			share = p.Value.Div(total).Mul(decimal.NewFromInt(100))
		}
		rows = append(rows, tableRow{Label: p.Key, Sales: p.Value.StringFixed(2), Share: share.StringFixed(1)})
	}

	var buf strings.Builder
	err := productTableTemplate.Execute(&buf, tableData{Rows: rows, MaxRows: maxTableRows})
	return buf.String(), err
}

func renderKPICards(r *http.Request, kpi models.KPIResult) (string, error) {
	var buf strings.Builder
	err := templates.KPICards(kpi).Render(r.Context(), &buf)
	return buf.String(), err
}

// patchError shows err in the page's error banner. Server-side failures are
// logged and replaced by a generic message.
func (h *SSEHandlers) patchError(ctx context.Context, sse *datastar.ServerSentEventGenerator, err error) {
	message := "Something went wrong while refreshing the dashboard"
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		message = appErr.Message
		if appErr.Details != "" {
			message += ": " + appErr.Details
		}
		h.logger.WarnContext(ctx, "dashboard refresh rejected", "error", err)
	} else {
		h.logger.ErrorContext(ctx, "dashboard refresh failed", "error", err)
	}

	var buf strings.Builder
	if err := errorTemplate.Execute(&buf, message); err != nil {
		h.logger.ErrorContext(ctx, "render error banner", "error", err)
		return
	}
	sse.PatchElements(buf.String())
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	selection, _, err := readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	kpi, err := h.dashboard.KPIs(r.Context(), selection)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	html, err := renderKPICards(r, kpi)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render KPI cards", "error", err)
		return
	}
	sse.PatchElements(html)
	sse.PatchElements(clearedError)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	selection, bucket, err := readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	series, err := h.dashboard.Series(r.Context(), selection, models.DimensionDate, bucket)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"trendData": chartPoints(series),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "marshal trend data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(clearedError)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleRefreshAll recomputes the whole dashboard for the current signals:
// KPI cards and the product table are patched as elements, every chart as a
// signal.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	selection, bucket, err := readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	report, err := h.dashboard.Report(r.Context(), selection, bucket)
	if err != nil {
		h.patchError(r.Context(), sse, err)
		return
	}

	html, err := renderKPICards(r, report.KPIs)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render KPI cards", "error", err)
		return
	}
	sse.PatchElements(html)

	table, err := h.renderProductTable(report.ByProductLine, report.KPIs.TotalSales)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render product table", "error", err)
		return
	}
	sse.PatchElements(table)

	allSignals, err := json.Marshal(map[string]any{
		"trendData":        chartPoints(report.Trend),
		"productLineData":  chartPoints(report.ByProductLine),
		"paymentData":      chartPoints(report.ByPaymentMethod),
		"cityData":         chartPoints(report.ByCity),
		"distributionData": distributionPoints(report.Distribution),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)
	sse.PatchElements(clearedError)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
