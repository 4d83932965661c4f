package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

func TestDashboard(t *testing.T) {
	options := models.FilterOptions{
		Cities:        []string{"Yangon", "Naypyitaw"},
		CustomerTypes: []string{"Member", "Normal"},
		Genders:       []string{"Female", "Male"},
	}

	var buf strings.Builder
	if err := Dashboard(options, models.BucketMonthly).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	body := buf.String()

	expected := []string{
		Title,
		Subtitle,
		`data-bind="cities" value="Yangon"`,
		`data-bind="customerTypes" value="Normal"`,
		`data-bind="genders" value="Male"`,
		`data-init="@get('/sse/refresh-all')"`,
		`&#34;bucket&#34;:&#34;monthly&#34;`,
		`id="` + KPIContainerID + `"`,
		"Sales by Product Line",
		"Order Value Distribution",
	}
	for _, s := range expected {
		if !strings.Contains(body, s) {
			t.Errorf("dashboard should contain %q", s)
		}
	}
}

func TestDashboard_EscapesOptions(t *testing.T) {
	options := models.FilterOptions{Cities: []string{`<script>alert(1)</script>`}}

	var buf strings.Builder
	if err := Dashboard(options, models.BucketDaily).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("option values must be escaped")
	}
}

func TestKPICards(t *testing.T) {
	kpi := models.KPIResult{
		TotalSales:        decimal.RequireFromString("225"),
		AverageOrderValue: decimal.NewNullDecimal(decimal.RequireFromString("75")),
		NumTransactions:   3,
		TotalQuantity:     15,
	}

	var buf strings.Builder
	if err := KPICards(kpi).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	body := buf.String()

	for _, s := range []string{"$225.00", "$75.00", ">3<", ">15<"} {
		if !strings.Contains(body, s) {
			t.Errorf("KPI cards should contain %q, got %s", s, body)
		}
	}
}

func TestKPICards_EmptyView(t *testing.T) {
	var buf strings.Builder
	if err := KPICards(models.KPIResult{}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	if !strings.Contains(buf.String(), "n/a") {
		t.Error("undefined average should render as n/a")
	}
	if !strings.Contains(buf.String(), "$0.00") {
		t.Error("empty total should render as $0.00")
	}
}

func TestDashboard_BlankOptionLabel(t *testing.T) {
	options := models.FilterOptions{Cities: []string{"Yangon", ""}}

	var buf strings.Builder
	if err := Dashboard(options, models.BucketDaily).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	body := buf.String()

	if !strings.Contains(body, `data-bind="cities" value=""> `+blankLabel+`</label>`) {
		t.Errorf("blank city should render as a selectable %q option, got %s", blankLabel, body)
	}
	if !strings.Contains(body, `renderChart('trend-chart','line',$trendData)`) &&
		!strings.Contains(body, `renderChart(&#39;trend-chart&#39;,&#39;line&#39;,$trendData)`) {
		t.Error("trend chart should be bound to the trendData signal")
	}
}
