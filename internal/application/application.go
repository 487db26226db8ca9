package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/tour-planner/internal/api"
	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/internal/catalog/source"
	"github.com/eugenenazirov/tour-planner/internal/config"
	"github.com/eugenenazirov/tour-planner/internal/optimizer"
	"github.com/eugenenazirov/tour-planner/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	source    *source.Handle
	storage   storage.Storage
	optimizer optimizer.Optimizer
	handler   *api.Handler
	router    http.Handler
	registry  *prometheus.Registry
	logger    *zap.Logger
	server    *http.Server
}

// New opens the configured catalog source, loads the first snapshot and wires
// the optimizer, handlers and HTTP server around it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	handle, err := source.Open(ctx, cfg.CatalogSource, cfg.CatalogDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog source %s: %w", cfg.CatalogSource, err)
	}

	loader := newCatalogLoader(cfg, handle)
	snapshot, err := loader(ctx)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	store := storage.NewMemoryStorage()
	if err := store.SetCatalog(snapshot); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to apply initial catalog: %w", err)
	}
	stats := snapshot.Stats()
	logger.Info("catalog loaded",
		zap.String("source", cfg.CatalogSource),
		zap.Int("regions", stats.Regions),
		zap.Int("tours", stats.Tours),
		zap.Int("attractions", stats.Attractions),
		zap.Int("links", stats.Links),
		zap.Int("skipped_links", stats.SkippedLinks),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opt := optimizer.New(store,
		optimizer.WithMaxTours(cfg.MaxToursPerRegion),
		optimizer.WithMetrics(optimizer.NewMetrics(registry)),
		optimizer.WithLogger(logger.Named("optimizer")),
	)
	handler := api.NewHandler(opt, store,
		api.WithCatalogLoader(loader),
		api.WithSearchTimeout(cfg.SearchTimeout),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)

	rootHandler, err := BuildRootHandler(apiRouter, registry)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &App{
		source:    handle,
		storage:   store,
		optimizer: opt,
		handler:   handler,
		router:    apiRouter,
		registry:  registry,
		logger:    logger,
		server:    NewServer(cfg, rootHandler),
	}, nil
}

// newCatalogLoader returns a loader reading a full snapshot from handle. File
// sources are reopened on every call so edits are picked up on reload.
func newCatalogLoader(cfg config.Config, handle *source.Handle) api.CatalogLoader {
	return func(ctx context.Context) (*catalog.Catalog, error) {
		var provider catalog.Provider = handle
		if cfg.CatalogSource == source.KindYAML {
			fresh, err := source.Open(ctx, source.KindYAML, cfg.CatalogDSN)
			if err != nil {
				return nil, err
			}
			provider = fresh
		}
		return catalog.Load(ctx, provider, catalog.WithConcurrency(cfg.CatalogLoadConcurrency))
	}
}

// BuildRootHandler constructs the root HTTP handler that serves static files,
// metrics and API requests.
func BuildRootHandler(apiHandler http.Handler, gatherer prometheus.Gatherer) (http.Handler, error) {
	mux := http.NewServeMux()

	staticPath, err := resolveProjectPath(filepath.Join("web", "static"))
	if err != nil {
		return nil, err
	}
	staticDir := http.Dir(staticPath)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(staticDir)))
	mux.Handle("/api/", apiHandler)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	indexPath, err := resolveProjectPath(filepath.Join("web", "templates", "index.html"))
	if err != nil {
		return nil, err
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	}))

	return mux, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the catalog source. Call it after the server has shut down.
func (a *App) Close() error {
	if a.source == nil {
		return nil
	}
	return a.source.Close()
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
