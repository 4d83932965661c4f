package templates

import (
	"encoding/json"
	"fmt"
	"strconv"

	"sales-dashboard/internal/models"
)

const (
	Title    = "Supermarket Sales Dashboard"
	Subtitle = "Filter by city, customer type and gender to explore sales"

	KPIContainerID = "kpi-cards"
)

// blankLabel stands in for an empty category value on the page. The checkbox
// value itself stays "".
const blankLabel = "(blank)"

type kpiCard struct {
	id    string
	label string
	value string
}

func kpiCards(kpi models.KPIResult) []kpiCard {
	average := "n/a"
	if kpi.AverageOrderValue.Valid {
		average = "$" + kpi.AverageOrderValue.Decimal.StringFixed(2)
	}

	return []kpiCard{
		{id: "kpi-total-sales", label: "Total Sales", value: "$" + kpi.TotalSales.StringFixed(2)},
		{id: "kpi-average-order", label: "Average Order Value", value: average},
		{id: "kpi-transactions", label: "Transactions", value: strconv.Itoa(kpi.NumTransactions)},
		{id: "kpi-quantity", label: "Units Sold", value: strconv.Itoa(kpi.TotalQuantity)},
	}
}

type filterOption struct {
	value string
	label string
}

type filterGroup struct {
	legend  string
	signal  string
	options []filterOption
}

func filterGroups(options models.FilterOptions) []filterGroup {
	group := func(legend, signal string, values []string) filterGroup {
		g := filterGroup{legend: legend, signal: signal, options: make([]filterOption, 0, len(values))}
		for _, v := range values {
			label := v
			if v == "" {
				label = blankLabel
			}
			g.options = append(g.options, filterOption{value: v, label: label})
		}
		return g
	}

	return []filterGroup{
		group("City", "cities", options.Cities),
		group("Customer type", "customerTypes", options.CustomerTypes),
		group("Gender", "genders", options.Genders),
	}
}

type chartSpec struct {
	id     string
	title  string
	kind   string
	signal string
}

var chartSpecs = []chartSpec{
	{id: "trend-chart", title: "Sales Trend", kind: "line", signal: "trendData"},
	{id: "product-line-chart", title: "Sales by Product Line", kind: "bar", signal: "productLineData"},
	{id: "payment-chart", title: "Sales by Payment Method", kind: "doughnut", signal: "paymentData"},
	{id: "city-chart", title: "Sales by City", kind: "bar", signal: "cityData"},
	{id: "distribution-chart", title: "Order Value Distribution", kind: "bar", signal: "distributionData"},
}

func chartEffect(c chartSpec) string {
	return fmt.Sprintf("renderChart('%s','%s',$%s)", c.id, c.kind, c.signal)
}

// pageSignals seeds the datastar store. Filters start with every option
// selected so the first refresh shows the whole dataset.
type pageSignals struct {
	Cities           []string `json:"cities"`
	CustomerTypes    []string `json:"customerTypes"`
	Genders          []string `json:"genders"`
	Bucket           string   `json:"bucket"`
	TrendData        []any    `json:"trendData"`
	ProductLineData  []any    `json:"productLineData"`
	PaymentData      []any    `json:"paymentData"`
	CityData         []any    `json:"cityData"`
	DistributionData []any    `json:"distributionData"`
}

func initialSignals(options models.FilterOptions, bucket models.Bucket) (string, error) {
	raw, err := json.Marshal(pageSignals{
		Cities:           nonNil(options.Cities),
		CustomerTypes:    nonNil(options.CustomerTypes),
		Genders:          nonNil(options.Genders),
		Bucket:           string(bucket),
		TrendData:        []any{},
		ProductLineData:  []any{},
		PaymentData:      []any{},
		CityData:         []any{},
		DistributionData: []any{},
	})
	if err != nil {
		return "", fmt.Errorf("encode initial signals: %w", err)
	}
	return string(raw), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
