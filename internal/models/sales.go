package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Dimension string

const (
	DimensionDate          Dimension = "date"
	DimensionCity          Dimension = "city"
	DimensionCustomerType  Dimension = "customer_type"
	DimensionGender        Dimension = "gender"
	DimensionProductLine   Dimension = "product_line"
	DimensionPaymentMethod Dimension = "payment_method"
)

// FilterDimensions are the dimensions a user can narrow the dashboard by.
var FilterDimensions = []Dimension{DimensionCity, DimensionCustomerType, DimensionGender}

// CategoricalDimensions can be used as group-by keys without a bucket.
var CategoricalDimensions = []Dimension{
	DimensionCity,
	DimensionCustomerType,
	DimensionGender,
	DimensionProductLine,
	DimensionPaymentMethod,
}

func (d Dimension) IsCategorical() bool {
	return slices.Contains(CategoricalDimensions, d)
}

func (d Dimension) IsFilterable() bool {
	return slices.Contains(FilterDimensions, d)
}

type Bucket string

const (
	BucketDaily   Bucket = "daily"
	BucketMonthly Bucket = "monthly"
)

func (b Bucket) Valid() bool {
	return b == BucketDaily || b == BucketMonthly
}

// Floor collapses t to the start of its bucket.
func (b Bucket) Floor(t time.Time) time.Time {
	if b == BucketMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Key formats a bucket boundary so that lexical order is chronological.
func (b Bucket) Key(t time.Time) string {
	if b == BucketMonthly {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

type Record struct {
	Date          time.Time
	City          string
	CustomerType  string
	Gender        string
	ProductLine   string
	PaymentMethod string
	Quantity      int
	Total         decimal.Decimal
}

// Value returns the categorical value of r for d. The date dimension is not
// categorical and reports false.
func (r Record) Value(d Dimension) (string, bool) {
	switch d {
	case DimensionCity:
		return r.City, true
	case DimensionCustomerType:
		return r.CustomerType, true
	case DimensionGender:
		return r.Gender, true
	case DimensionProductLine:
		return r.ProductLine, true
	case DimensionPaymentMethod:
		return r.PaymentMethod, true
	default:
		return "", false
	}
}

type KPIResult struct {
	TotalSales        decimal.Decimal     `json:"total_sales"`
	AverageOrderValue decimal.NullDecimal `json:"average_order_value"`
	NumTransactions   int                 `json:"num_transactions"`
	TotalQuantity     int                 `json:"total_quantity"`
}

type SeriesPoint struct {
	Key   string          `json:"key"`
	Value decimal.Decimal `json:"value"`
}

type GroupedSeries struct {
	Dimension Dimension     `json:"dimension"`
	Bucket    Bucket        `json:"bucket,omitempty"`
	Points    []SeriesPoint `json:"points"`
}

// Sum adds every point value of the series.
func (s GroupedSeries) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Points {
		total = total.Add(p.Value)
	}
	return total
}

type HistogramBin struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
	Count int             `json:"count"`
}

type Distribution struct {
	Bins []HistogramBin `json:"bins"`
}

type Report struct {
	KPIs            KPIResult     `json:"kpis"`
	Trend           GroupedSeries `json:"trend"`
	ByProductLine   GroupedSeries `json:"by_product_line"`
	ByPaymentMethod GroupedSeries `json:"by_payment_method"`
	ByCity          GroupedSeries `json:"by_city"`
	Distribution    Distribution  `json:"distribution"`
}

// FilterOptions lists the distinct values of each filterable dimension in the
// order they first appear in the dataset.
type FilterOptions struct {
	Cities        []string `json:"cities"`
	CustomerTypes []string `json:"customer_types"`
	Genders       []string `json:"genders"`
}
