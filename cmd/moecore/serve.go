package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	moehttp "github.com/Strob0t/moecore/internal/adapter/http"
	moemcp "github.com/Strob0t/moecore/internal/adapter/mcp"
	moeotel "github.com/Strob0t/moecore/internal/adapter/otel"
	"github.com/Strob0t/moecore/internal/adapter/ws"
	"github.com/Strob0t/moecore/internal/config"
	"github.com/Strob0t/moecore/internal/middleware"
	"github.com/Strob0t/moecore/internal/port/a2a"
	"github.com/Strob0t/moecore/internal/service"
	"github.com/Strob0t/moecore/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "serve",
		Short:       "Run the HTTP API, WebSocket feed, A2A endpoint and optional MCP server",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"daemon": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"dataset_driver", cfg.Dataset.Driver,
	)

	// --- Telemetry ---
	shutdownOTEL, err := moeotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := moeotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Engine ---
	a, err := newApp(ctx, cfg, appOptions{orchestrator: true, queue: true})
	if err != nil {
		return err
	}
	defer a.Close()

	hub := ws.NewHub(originPatterns(cfg.Server.CORSOrigin)...)
	a.engine.SetBroadcaster(hub)
	a.engine.SetMetrics(metrics)
	a.orch.SetBroadcaster(hub)
	a.orch.SetMetrics(metrics)

	if err := os.MkdirAll(cfg.Server.RegistryDir, 0o750); err != nil {
		return fmt.Errorf("registry dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// --- Registry hot reload ---
	if cfg.Registry.Watch && cfg.Registry.File != "" {
		w, err := watcher.New(cfg.Registry.File, cfg.Registry.Debounce, func(ctx context.Context, path string) error {
			_, err := a.engine.ReloadRegistry(ctx, path)
			return err
		})
		if err != nil {
			return fmt.Errorf("registry watcher: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := moemcp.NewServer(moemcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "moecore",
			Version: moehttp.Version,
			APIKey:  cfg.MCP.APIKey,
		}, moemcp.ServerDeps{Engine: a.engine, Orchestration: a.orch})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = mcpSrv.Stop(sctx)
		}()
		slog.Info("mcp server started", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(moehttp.CORS(cfg.Server.CORSOrigin))
	r.Use(moehttp.Logger)
	r.Use(moehttp.SecurityHeaders)
	r.Use(moeotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	// WebSocket connections outlive the request timeout.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))

		publicURL := cfg.Server.PublicURL
		if publicURL == "" {
			publicURL = "http://localhost:" + cfg.Server.Port
		}
		a2a.NewHandler(publicURL, moehttp.Version, a.engine, service.NewTaskRunner(a.engine, a.orch)).MountRoutes(r)

		moehttp.MountRoutes(r, &moehttp.Handlers{
			Engine:        a.engine,
			Orchestration: a.orch,
			RegistryDir:   cfg.Server.RegistryDir,
		})
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// originPatterns turns the configured CORS origin into WebSocket origin
// host patterns. "*" accepts any origin.
func originPatterns(origin string) []string {
	if origin == "" {
		return nil
	}
	if origin == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
