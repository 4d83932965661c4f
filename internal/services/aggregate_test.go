package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

func fullView(records []models.Record) models.FilteredView {
	return ApplyFilters(models.NewDataset(records), nil)
}

func TestComputeKPIs_WorkedExample(t *testing.T) {
	ds := models.NewDataset(sampleRecords())
	view := ApplyFilters(ds, models.FilterSelection{}.With(models.DimensionCity, "Yangon"))

	kpi := ComputeKPIs(view)

	assert.True(t, kpi.TotalSales.Equal(dec("150")), "total sales = %s", kpi.TotalSales)
	assert.Equal(t, 2, kpi.NumTransactions)
	assert.Equal(t, 12, kpi.TotalQuantity)
	require.True(t, kpi.AverageOrderValue.Valid)
	assert.True(t, kpi.AverageOrderValue.Decimal.Equal(dec("75")))
}

func TestComputeKPIs_EmptyView(t *testing.T) {
	ds := models.NewDataset(sampleRecords())
	view := ApplyFilters(ds, models.FilterSelection{models.DimensionCity: models.NewValueSet()})

	kpi := ComputeKPIs(view)

	assert.True(t, kpi.TotalSales.IsZero())
	assert.Equal(t, 0, kpi.NumTransactions)
	assert.Equal(t, 0, kpi.TotalQuantity)
	assert.False(t, kpi.AverageOrderValue.Valid)

	raw, err := json.Marshal(kpi)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"average_order_value":null`)
}

func TestComputeKPIs_AverageKeepsPrecision(t *testing.T) {
	records := []models.Record{{Total: dec("10")}, {Total: dec("10")}, {Total: dec("10.01")}}

	kpi := ComputeKPIs(fullView(records))

	require.True(t, kpi.AverageOrderValue.Valid)
	assert.True(t, kpi.AverageOrderValue.Decimal.GreaterThan(dec("10.003")))
	assert.True(t, kpi.AverageOrderValue.Decimal.LessThan(dec("10.004")))
	assert.Equal(t, "10.00", kpi.AverageOrderValue.Decimal.StringFixed(2))
	assert.True(t, kpi.TotalSales.Equal(dec("30.01")))

	exact := ComputeKPIs(fullView([]models.Record{{Total: dec("0.005")}, {Total: dec("0.010")}}))
	assert.True(t, exact.AverageOrderValue.Decimal.Equal(dec("0.0075")), "got %s", exact.AverageOrderValue.Decimal)
}

func TestComputeKPIs_DecimalExact(t *testing.T) {
	records := make([]models.Record, 10)
	for i := range records {
		records[i] = models.Record{Total: dec("0.1")}
	}

	kpi := ComputeKPIs(fullView(records))

	assert.Equal(t, "1", kpi.TotalSales.String())
}

func TestGroupBy_ProductLineAssignsEveryRecord(t *testing.T) {
	view := fullView(sampleRecords())

	series, err := GroupBy(view, models.DimensionProductLine, "")
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.Equal(t, "Electronic accessories", series.Points[0].Key)
	assert.True(t, series.Points[0].Value.Equal(dec("50")))
	assert.Equal(t, "Health and beauty", series.Points[1].Key)
	assert.True(t, series.Points[1].Value.Equal(dec("175")))
	assert.True(t, series.Sum().Equal(ComputeKPIs(view).TotalSales))
}

func TestGroupBy_DailyIsChronological(t *testing.T) {
	records := []models.Record{
		{Date: day(2019, time.March, 2), Total: dec("1")},
		{Date: day(2019, time.January, 15), Total: dec("2")},
		{Date: day(2019, time.March, 2), Total: dec("3")},
		{Date: day(2018, time.December, 31), Total: dec("4")},
	}

	series, err := GroupBy(fullView(records), models.DimensionDate, models.BucketDaily)
	require.NoError(t, err)

	keys := make([]string, 0, len(series.Points))
	for _, p := range series.Points {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"2018-12-31", "2019-01-15", "2019-03-02"}, keys)
	assert.True(t, series.Points[2].Value.Equal(dec("4")))
	assert.Equal(t, models.BucketDaily, series.Bucket)
}

func TestGroupBy_MonthlyCollapsesAndStaysSparse(t *testing.T) {
	records := []models.Record{
		{Date: day(2019, time.January, 1), Total: dec("10")},
		{Date: day(2019, time.January, 31), Total: dec("5")},
		{Date: day(2019, time.March, 8), Total: dec("7.5")},
	}

	series, err := GroupBy(fullView(records), models.DimensionDate, models.BucketMonthly)
	require.NoError(t, err)

	// February has no sales and is not synthesized.
	require.Len(t, series.Points, 2)
	assert.Equal(t, "2019-01", series.Points[0].Key)
	assert.True(t, series.Points[0].Value.Equal(dec("15")))
	assert.Equal(t, "2019-03", series.Points[1].Key)
}

func TestGroupBy_DateDefaultsToDaily(t *testing.T) {
	series, err := GroupBy(fullView(sampleRecords()), models.DimensionDate, "")
	require.NoError(t, err)
	assert.Equal(t, models.BucketDaily, series.Bucket)
	assert.Len(t, series.Points, 2)
}

func TestGroupBy_CategoricalIgnoresBucket(t *testing.T) {
	series, err := GroupBy(fullView(sampleRecords()), models.DimensionCity, models.BucketMonthly)
	require.NoError(t, err)
	assert.Empty(t, series.Bucket)
}

func TestGroupBy_Invalid(t *testing.T) {
	view := fullView(sampleRecords())

	_, err := GroupBy(view, models.DimensionDate, models.Bucket("weekly"))
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = GroupBy(view, models.Dimension("unit_price"), "")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestGroupBy_EmptyView(t *testing.T) {
	series, err := GroupBy(fullView(nil), models.DimensionPaymentMethod, "")
	require.NoError(t, err)
	assert.NotNil(t, series.Points)
	assert.Empty(t, series.Points)

	raw, err := json.Marshal(series)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"points":[]`)
}

func TestGroupBy_SumInvariant(t *testing.T) {
	ds := models.NewDataset(fakeRecords(99, 2000))
	selections := []models.FilterSelection{
		nil,
		models.FilterSelection{}.With(models.DimensionCity, "Mandalay"),
		models.FilterSelection{}.With(models.DimensionGender, "Female").With(models.DimensionCustomerType, "Member"),
	}

	type grouping struct {
		dim    models.Dimension
		bucket models.Bucket
	}
	groupings := []grouping{
		{models.DimensionDate, models.BucketDaily},
		{models.DimensionDate, models.BucketMonthly},
		{models.DimensionProductLine, ""},
		{models.DimensionPaymentMethod, ""},
		{models.DimensionCity, ""},
		{models.DimensionGender, ""},
	}

	for _, sel := range selections {
		view := ApplyFilters(ds, sel)
		total := ComputeKPIs(view).TotalSales

		for _, g := range groupings {
			series, err := GroupBy(view, g.dim, g.bucket)
			require.NoError(t, err)
			assert.True(t, series.Sum().Equal(total), "%s/%s: %s != %s", g.dim, g.bucket, series.Sum(), total)
		}
	}
}

func TestHistogram(t *testing.T) {
	records := []models.Record{
		{Total: dec("0")},
		{Total: dec("10")},
		{Total: dec("49.99")},
		{Total: dec("50")},
		{Total: dec("100")},
	}

	dist := Histogram(fullView(records), 2)

	require.Len(t, dist.Bins, 2)
	assert.True(t, dist.Bins[0].Lower.Equal(dec("0")))
	assert.True(t, dist.Bins[0].Upper.Equal(dec("50")))
	assert.Equal(t, 3, dist.Bins[0].Count)
	assert.True(t, dist.Bins[1].Upper.Equal(dec("100")))
	assert.Equal(t, 2, dist.Bins[1].Count)
}

func TestHistogram_EdgeCases(t *testing.T) {
	assert.Empty(t, Histogram(fullView(nil), 20).Bins)

	same := []models.Record{{Total: dec("5")}, {Total: dec("5")}}
	dist := Histogram(fullView(same), 20)
	require.Len(t, dist.Bins, 1)
	assert.Equal(t, 2, dist.Bins[0].Count)

	assert.Len(t, Histogram(fullView(sampleRecords()), 0).Bins, DefaultHistogramBins)
}

func TestHistogram_CountsCoverView(t *testing.T) {
	view := fullView(fakeRecords(5, 1500))

	dist := Histogram(view, 20)

	total := 0
	for i, b := range dist.Bins {
		total += b.Count
		if i > 0 {
			assert.True(t, b.Lower.Equal(dist.Bins[i-1].Upper))
		}
	}
	assert.Equal(t, view.Len(), total)
}

func TestKPIResult_TotalSalesJSON(t *testing.T) {
	kpi := ComputeKPIs(fullView([]models.Record{{Total: decimal.New(12345, -2), Quantity: 1}}))

	raw, err := json.Marshal(kpi)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_sales":"123.45","average_order_value":"123.45","num_transactions":1,"total_quantity":1}`, string(raw))
}

func BenchmarkGroupBy_Daily(b *testing.B) {
	view := fullView(fakeRecords(11, 100000))

	b.ResetTimer()
	for b.Loop() {
		_, _ = GroupBy(view, models.DimensionDate, models.BucketDaily)
	}
}
