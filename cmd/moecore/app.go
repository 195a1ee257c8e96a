package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/moecore/internal/adapter/gemini"
	"github.com/Strob0t/moecore/internal/adapter/httpexpert"
	"github.com/Strob0t/moecore/internal/adapter/litellm"
	moenats "github.com/Strob0t/moecore/internal/adapter/nats"
	"github.com/Strob0t/moecore/internal/adapter/natskv"
	"github.com/Strob0t/moecore/internal/adapter/postgres"
	"github.com/Strob0t/moecore/internal/adapter/ristretto"
	"github.com/Strob0t/moecore/internal/adapter/sqlite"
	"github.com/Strob0t/moecore/internal/adapter/tiered"
	"github.com/Strob0t/moecore/internal/config"
	"github.com/Strob0t/moecore/internal/pool"
	"github.com/Strob0t/moecore/internal/port/cache"
	"github.com/Strob0t/moecore/internal/port/datasetstore"
	"github.com/Strob0t/moecore/internal/port/expertbackend"
	"github.com/Strob0t/moecore/internal/resilience"
	"github.com/Strob0t/moecore/internal/service"
)

// appOptions selects which parts of the engine a command needs.
type appOptions struct {
	orchestrator bool // token pool, dataset store and summarizer
	queue        bool // connect to NATS when configured
}

// app is the assembled engine.
type app struct {
	cfg      *config.Config
	engine   *service.IntegrationService
	orch     *service.OrchestrationService
	backends *expertbackend.Registry
	llm      *litellm.Client
	queue    *moenats.Queue

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// --- Expert backends ---
	a.llm = litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	a.llm.SetBreaker(resilience.NewBreaker("litellm", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	a.backends, err = newBackends(ctx, cfg, a.llm)
	if err != nil {
		return nil, err
	}

	// --- Registry, host and router ---
	reg := service.NewExpertRegistry()
	if cfg.Registry.Defaults {
		reg = service.NewDefaultRegistry()
	}
	host, err := newHost(reg, a.backends, cfg.Analyzers)
	if err != nil {
		return nil, err
	}
	p := pool.New(1)
	a.engine = service.NewIntegrationService(service.NewRouterService(reg, cfg.Router.MaxExperts), host, p)
	if cfg.Registry.File != "" {
		if _, err := a.engine.ImportRegistry(ctx, cfg.Registry.File); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}
	for _, b := range cfg.Analyzers {
		if reg.Get(b.ExpertID) == nil {
			slog.Warn("analyzer bound to an unregistered expert", "expert_id", b.ExpertID)
		}
	}

	// --- Messaging ---
	if opts.queue && cfg.NATS.URL != "" {
		q, err := moenats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		a.closers = append(a.closers, func() { _ = q.Drain() })
		a.engine.SetQueue(q)
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	if !opts.orchestrator {
		return a, nil
	}

	// --- Orchestrator ---
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	var c cache.Cache
	if needsCache(cfg.Orchestrator.Experts) {
		if c, err = a.openCache(ctx); err != nil {
			return nil, err
		}
	}
	slots, err := service.BuildSlots(cfg.Orchestrator.Experts, a.backends, service.SlotOptions{
		Cache:    c,
		CacheTTL: cfg.Cache.L2TTL,
		Breaker:  cfg.Breaker,
	})
	if err != nil {
		return nil, fmt.Errorf("expert slots: %w", err)
	}
	orch, err := service.NewOrchestrator(service.OrchestratorConfig{
		ExpertsPerToken: cfg.Orchestrator.ExpertsPerToken,
		Slots:           slots,
		Store:           store,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	a.orch = service.NewOrchestrationService(orch, store, p)
	if a.queue != nil {
		a.orch.SetQueue(a.queue)
	}

	if b := cfg.Summarizer.Backend; b != "" {
		fn, err := a.backends.New(b, cfg.Summarizer.Config)
		if err != nil {
			return nil, fmt.Errorf("summarizer: %w", err)
		}
		a.orch.SetSummarizer(service.SummarizeWith(fn))
		a.orch.SetLightPull(fn)
		slog.Info("summarizer configured", "backend", b)
	}
	return a, nil
}

// newBackends registers every expert backend. Gemini is only available
// when an API key is configured.
func newBackends(ctx context.Context, cfg *config.Config, llm *litellm.Client) (*expertbackend.Registry, error) {
	r := expertbackend.NewRegistry()
	r.MustRegister(expertbackend.MockBackend, expertbackend.Mock)
	r.MustRegister(httpexpert.BackendHTTP, httpexpert.HTTPFactory)
	r.MustRegister(httpexpert.BackendOllama, httpexpert.OllamaFactory)
	r.MustRegister(litellm.BackendName, litellm.Factory(llm, cfg.LiteLLM.Model))

	if cfg.Gemini.APIKey != "" {
		g, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		r.MustRegister(gemini.BackendName, g.Factory())
	}
	return r, nil
}

// newHost resolves registered experts for the facade. Bound experts answer
// through their backend; the rest get placeholder analyses.
func newHost(reg *service.ExpertRegistry, backends *expertbackend.Registry, bindings []config.Analyzer) (*service.BackendHost, error) {
	host := service.NewBackendHost(reg)
	for _, b := range bindings {
		fn, err := backends.New(b.Backend, b.Config)
		if err != nil {
			return nil, fmt.Errorf("analyzer %s: %w", b.ExpertID, err)
		}
		host.Bind(b.ExpertID, b.Backend, fn)
	}
	return host, nil
}

func (a *app) openStore(ctx context.Context) (datasetstore.Store, error) {
	switch a.cfg.Dataset.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, a.cfg.Dataset.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		slog.Info("dataset store ready", "driver", "sqlite", "path", a.cfg.Dataset.SQLitePath)
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		slog.Info("dataset store ready", "driver", "postgres")
		return s, nil
	default:
		slog.Info("dataset kept in memory only")
		return nil, nil
	}
}

// openCache builds the expert response cache: ristretto in process, backed
// by a NATS KV bucket when a queue is connected.
func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	cc := a.cfg.Cache
	l1, err := ristretto.New(cc.L1MaxSizeMB<<20, cc.L2TTL)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	a.closers = append(a.closers, l1.Close)
	if a.queue == nil {
		return l1, nil
	}

	l2, err := natskv.Open(ctx, a.queue.JetStream(), cc.L2Bucket, cc.L2TTL)
	if err != nil {
		slog.Warn("l2 cache unavailable, using l1 only", "bucket", cc.L2Bucket, "error", err)
		return l1, nil
	}
	return tiered.New(l1, l2, cc.L2TTL), nil
}

func needsCache(entries []config.ExpertSlot) bool {
	for _, e := range entries {
		if e.Cache {
			return true
		}
	}
	return false
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
