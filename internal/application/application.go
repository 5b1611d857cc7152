package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/share-selector/internal/api"
	"github.com/eugenenazirov/share-selector/internal/config"
	"github.com/eugenenazirov/share-selector/internal/engine"
	"github.com/eugenenazirov/share-selector/internal/ingest"
	"github.com/eugenenazirov/share-selector/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	engine  *engine.Engine
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if cfg.CatalogFile != "" {
		if err := preloadCatalog(store, cfg, logger); err != nil {
			return nil, fmt.Errorf("failed to load initial catalog: %w", err)
		}
	}

	eng := engine.New(cfg.Limits(), logger)
	handler := api.NewHandler(eng, store)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		engine:  eng,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

func preloadCatalog(store storage.Storage, cfg config.Config, logger *zap.Logger) error {
	path, err := resolveDataPath(cfg.CatalogFile)
	if err != nil {
		return err
	}
	items, stats, err := ingest.Load(path, ingest.Options{Scale: cfg.CostScale, Clean: cfg.Clean})
	if err != nil {
		return err
	}
	if err := store.SetCatalog(items); err != nil {
		return err
	}
	logger.Info("catalog loaded",
		zap.String("path", path),
		zap.Int("items", len(items)),
		zap.Int64("cost_scale", cfg.CostScale),
		zap.Int("dropped", stats.Input-stats.Kept),
	)
	return nil
}

// BuildRootHandler mounts the API under /api/. The bare root redirects to the
// health endpoint; every other path is not found.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
	}))
	return mux
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

// resolveDataPath returns path unchanged when it exists. A relative path that
// does not exist under the working directory is looked up in each parent
// directory, so datasets under the project root resolve from any subdirectory.
func resolveDataPath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w: %s", ingest.ErrFileNotFound, path)
}
