package services

import (
	"slices"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

const DefaultHistogramBins = 20

// ComputeKPIs summarises a view. The average order value is the unrounded
// decimal mean; it is left invalid for an empty view instead of dividing by
// zero.
func ComputeKPIs(view models.FilteredView) models.KPIResult {
	total := decimal.Zero
	quantity := 0
	view.Each(func(r models.Record) {
		total = total.Add(r.Total)
		quantity += r.Quantity
	})

	kpi := models.KPIResult{
		TotalSales:      total,
		NumTransactions: view.Len(),
		TotalQuantity:   quantity,
	}
	if n := view.Len(); n > 0 {
		avg := total.Div(decimal.NewFromInt(int64(n)))
		kpi.AverageOrderValue = decimal.NewNullDecimal(avg)
	}
	return kpi
}

// GroupBy sums Total per distinct key of dim.
//
// For the date dimension each record is collapsed to the start of its bucket
// (daily when bucket is empty) and points come back in chronological order.
// Buckets without records are not synthesized, so a daily trend over a sparse
// selection has gaps. Categorical dimensions ignore bucket and return points
// sorted by key.
func GroupBy(view models.FilteredView, dim models.Dimension, bucket models.Bucket) (models.GroupedSeries, error) {
	var keyOf func(models.Record) string

	switch {
	case dim == models.DimensionDate:
		if bucket == "" {
			bucket = models.BucketDaily
		}
		if !bucket.Valid() {
			return models.GroupedSeries{}, errors.Validation("unsupported time bucket").
				WithDetails("bucket %q, expected %q or %q", bucket, models.BucketDaily, models.BucketMonthly)
		}
		keyOf = func(r models.Record) string {
			return bucket.Key(bucket.Floor(r.Date))
		}
	case dim.IsCategorical():
		bucket = ""
		keyOf = func(r models.Record) string {
			v, _ := r.Value(dim)
			return v
		}
	default:
		return models.GroupedSeries{}, errors.Validation("unsupported group-by dimension").
			WithDetails("dimension %q", dim)
	}

	sums := make(map[string]decimal.Decimal)
	view.Each(func(r models.Record) {
		key := keyOf(r)
		sums[key] = sums[key].Add(r.Total)
	})

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	points := make([]models.SeriesPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, models.SeriesPoint{Key: k, Value: sums[k]})
	}

	return models.GroupedSeries{Dimension: dim, Bucket: bucket, Points: points}, nil
}

// Histogram splits the range of Total into equal-width bins. Every bin is
// half-open except the last, which also holds the maximum. When every total is
// equal the result is a single bin.
func Histogram(view models.FilteredView, bins int) models.Distribution {
	if bins < 1 {
		bins = DefaultHistogramBins
	}

	n := view.Len()
	if n == 0 {
		return models.Distribution{Bins: []models.HistogramBin{}}
	}

	lo, hi := view.At(0).Total, view.At(0).Total
	view.Each(func(r models.Record) {
		lo = decimal.Min(lo, r.Total)
		hi = decimal.Max(hi, r.Total)
	})

	if lo.Equal(hi) {
		return models.Distribution{Bins: []models.HistogramBin{{Lower: lo, Upper: hi, Count: n}}}
	}

	count := decimal.NewFromInt(int64(bins))
	width := hi.Sub(lo).Div(count)

	out := make([]models.HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo.Add(width.Mul(decimal.NewFromInt(int64(i))))
		out[i].Upper = lo.Add(width.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	out[bins-1].Upper = hi

	view.Each(func(r models.Record) {
		idx := int(r.Total.Sub(lo).Div(width).IntPart())
		if idx >= bins {
			idx = bins - 1
		}
		// Division rounding can place a value a hair below its bin's lower edge.
		for idx > 0 && r.Total.LessThan(out[idx].Lower) {
			idx--
		}
		out[idx].Count++
	})

	return models.Distribution{Bins: out}
}
