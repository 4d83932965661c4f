package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout      = 10 * time.Second
	csvLoadTimeout     = 30 * time.Second
	limiterSweepPeriod = time.Minute
	pageCacheControl   = "no-cache"
)

// dashboardPage renders the page with filter options from the loaded dataset.
func dashboardPage(dashboard *services.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Cache-Control", pageCacheControl)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := templates.Dashboard(dashboard.FilterOptions(), dashboard.DefaultBucket())
		if err := page.Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func newDashboard(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *services.Dashboard {
	return services.NewDashboard(
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithCacheDir(cfg.Database.CacheDir),
		services.WithDateLayouts(cfg.Database.DateLayouts),
		services.WithDefaultBucket(models.Bucket(cfg.Dashboard.DefaultBucket)),
		services.WithHistogramBins(cfg.Dashboard.HistogramBins),
	)
}

func newHandler(cfg *config.Config, logger *slog.Logger, dashboard *services.Dashboard, metrics *observability.Metrics, limiter *middleware.RateLimiter) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardPage(dashboard),
	}

	srv := server.NewServer(dashboard, metrics, logger, templateHandlers)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	metrics := observability.NewMetrics()
	dashboard := newDashboard(cfg, logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := dashboard.LoadFromCSV(ctx, cfg.Database.CSVFile); err != nil {
		logger.Error("failed to load CSV data", "error", err, "filename", cfg.Database.CSVFile)
		os.Exit(1)
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	limiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go limiter.Run(sweepCtx, limiterSweepPeriod)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, dashboard, metrics, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweep")
		stopSweep()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
