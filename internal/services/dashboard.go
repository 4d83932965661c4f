package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

type Option func(*Dashboard)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dashboard) { d.logger = logger }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(d *Dashboard) { d.metrics = metrics }
}

// WithCacheDir enables the parsed-dataset snapshot cache under dir.
func WithCacheDir(dir string) Option {
	return func(d *Dashboard) { d.cache = datasetCache{dir: dir} }
}

func WithDateLayouts(layouts []string) Option {
	return func(d *Dashboard) { d.dateLayouts = layouts }
}

func WithDefaultBucket(bucket models.Bucket) Option {
	return func(d *Dashboard) { d.defaultBucket = bucket }
}

func WithHistogramBins(bins int) Option {
	return func(d *Dashboard) { d.histogramBins = bins }
}

// Dashboard owns the loaded sales dataset and runs the filter and aggregate
// pipeline against it. The dataset is replaced wholesale on load and never
// modified afterwards, so concurrent requests share it read-only.
type Dashboard struct {
	mu       sync.RWMutex
	dataset  *models.Dataset
	options  models.FilterOptions
	source   string
	loadedAt time.Time

	cache         datasetCache
	dateLayouts   []string
	defaultBucket models.Bucket
	histogramBins int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

func NewDashboard(opts ...Option) *Dashboard {
	d := &Dashboard{
		dataset:       models.NewDataset(nil),
		dateLayouts:   config.DefaultDateLayouts,
		defaultBucket: models.BucketDaily,
		histogramBins: DefaultHistogramBins,
		logger:        slog.Default(),
	}
	d.options = d.dataset.FilterOptions()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetData replaces the dataset with records.
func (d *Dashboard) SetData(records []models.Record) {
	d.swap(models.NewDataset(records), "memory")
}

func (d *Dashboard) swap(dataset *models.Dataset, source string) {
	options := dataset.FilterOptions()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dataset = dataset
	d.options = options
	d.source = source
	d.loadedAt = time.Now()
}

// LoadFromCSV loads filename, reusing the snapshot cache when it matches the
// file. On failure the previously loaded dataset stays in place.
func (d *Dashboard) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()

	info, err := os.Stat(filename)
	if err != nil {
		d.metrics.ObserveLoad("csv", 0, 0, err)
		return fmt.Errorf("stat dataset: %w", err)
	}

	if d.cache.enabled() {
		if records, err := d.cache.load(filename, info, d.dateLayouts); err == nil {
			dataset := models.NewDataset(records)
			d.swap(dataset, filename)
			d.metrics.ObserveLoad("cache", dataset.Len(), time.Since(start), nil)
			d.logger.Info("loaded dataset from cache", "filename", filename, "records", dataset.Len())
			return nil
		} else if !os.IsNotExist(err) {
			d.logger.Debug("dataset cache miss", "filename", filename, "reason", err)
		}
	}

	d.logger.Info("processing CSV file", "filename", filename)

	file, err := os.Open(filename)
	if err != nil {
		d.metrics.ObserveLoad("csv", 0, 0, err)
		return fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	dataset, err := LoadCSV(ctx, file, d.dateLayouts)
	if err != nil {
		d.metrics.ObserveLoad("csv", 0, 0, err)
		return fmt.Errorf("load %s: %w", filename, err)
	}

	if d.cache.enabled() {
		if err := d.cache.save(filename, info, d.dateLayouts, dataset); err != nil {
			d.logger.Warn("failed to save dataset cache", "error", err)
		}
	}

	d.swap(dataset, filename)

	duration := time.Since(start)
	d.metrics.ObserveLoad("csv", dataset.Len(), duration, nil)
	d.logger.Info("csv processing complete",
		"records", dataset.Len(),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(dataset.Len())/duration.Seconds()))

	return nil
}

func (d *Dashboard) Dataset() *models.Dataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dataset
}

func (d *Dashboard) FilterOptions() models.FilterOptions {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.options
}

func (d *Dashboard) DefaultSelection() models.FilterSelection {
	return DefaultSelection(d.Dataset())
}

func (d *Dashboard) DefaultBucket() models.Bucket {
	return d.defaultBucket
}

// run filters the current dataset and hands the view to fn, recording the
// invocation in metrics and a span.
func (d *Dashboard) run(ctx context.Context, operation string, selection models.FilterSelection, fn func(context.Context, models.FilteredView) error) error {
	if err := ValidateSelection(selection); err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, operation)
	defer span.End(d.logger)
	span.SetTag("selection", describeSelection(selection))

	start := time.Now()
	view := ApplyFilters(d.Dataset(), selection)
	span.SetTag("filtered_records", strconv.Itoa(view.Len()))

	err := fn(ctx, view)
	if err != nil {
		span.SetError(err)
	}
	d.metrics.ObservePipeline(view.Len(), time.Since(start), err)
	return err
}

func (d *Dashboard) bucketOrDefault(bucket models.Bucket) models.Bucket {
	if bucket == "" {
		return d.defaultBucket
	}
	return bucket
}

func (d *Dashboard) KPIs(ctx context.Context, selection models.FilterSelection) (models.KPIResult, error) {
	var kpi models.KPIResult
	err := d.run(ctx, "dashboard.kpis", selection, func(_ context.Context, view models.FilteredView) error {
		kpi = ComputeKPIs(view)
		return nil
	})
	return kpi, err
}

func (d *Dashboard) Series(ctx context.Context, selection models.FilterSelection, dim models.Dimension, bucket models.Bucket) (models.GroupedSeries, error) {
	if dim == models.DimensionDate {
		bucket = d.bucketOrDefault(bucket)
	}
	var series models.GroupedSeries
	err := d.run(ctx, "dashboard.series", selection, func(_ context.Context, view models.FilteredView) error {
		var err error
		series, err = GroupBy(view, dim, bucket)
		return err
	})
	return series, err
}

func (d *Dashboard) Distribution(ctx context.Context, selection models.FilterSelection) (models.Distribution, error) {
	var dist models.Distribution
	err := d.run(ctx, "dashboard.distribution", selection, func(_ context.Context, view models.FilteredView) error {
		dist = Histogram(view, d.histogramBins)
		return nil
	})
	return dist, err
}

// Report computes every KPI and chart table for selection. The aggregations
// run concurrently over the same read-only view, each writing only its own
// field of the report.
func (d *Dashboard) Report(ctx context.Context, selection models.FilterSelection, bucket models.Bucket) (*models.Report, error) {
	bucket = d.bucketOrDefault(bucket)
	if !bucket.Valid() {
		return nil, errors.Validation("unsupported time bucket").WithDetails("bucket %q", bucket)
	}

	report := &models.Report{}
	err := d.run(ctx, "dashboard.report", selection, func(ctx context.Context, view models.FilteredView) error {
		g, gctx := errgroup.WithContext(ctx)

		series := func(dim models.Dimension, b models.Bucket, out *models.GroupedSeries) func() error {
			return func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := GroupBy(view, dim, b)
				if err != nil {
					return err
				}
				*out = s
				return nil
			}
		}

		g.Go(func() error {
			report.KPIs = ComputeKPIs(view)
			return nil
		})
		g.Go(series(models.DimensionDate, bucket, &report.Trend))
		g.Go(series(models.DimensionProductLine, "", &report.ByProductLine))
		g.Go(series(models.DimensionPaymentMethod, "", &report.ByPaymentMethod))
		g.Go(series(models.DimensionCity, "", &report.ByCity))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Distribution = Histogram(view, d.histogramBins)
			return nil
		})

		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Stats summarises the loaded dataset for monitoring.
func (d *Dashboard) Stats() map[string]any {
	d.mu.RLock()
	dataset, options, source, loadedAt := d.dataset, d.options, d.source, d.loadedAt
	d.mu.RUnlock()

	stats := map[string]any{
		"record_count":   dataset.Len(),
		"source":         source,
		"loaded_at":      loadedAt,
		"cities":         len(options.Cities),
		"customer_types": len(options.CustomerTypes),
		"genders":        len(options.Genders),
		"product_lines":  len(dataset.Distinct(models.DimensionProductLine)),
		"payment_types":  len(dataset.Distinct(models.DimensionPaymentMethod)),
	}

	if dataset.Len() > 0 {
		first, last := dataset.At(0).Date, dataset.At(0).Date
		for i := range dataset.Len() {
			r := dataset.At(i)
			if r.Date.Before(first) {
				first = r.Date
			}
			if r.Date.After(last) {
				last = r.Date
			}
		}
		stats["first_date"] = first.Format("2006-01-02")
		stats["last_date"] = last.Format("2006-01-02")
	}
	return stats
}

// Loaded reports whether a non-empty dataset is available.
func (d *Dashboard) Loaded() bool {
	return d.Dataset().Len() > 0
}
