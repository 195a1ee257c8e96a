package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	moeotel "github.com/Strob0t/moecore/internal/adapter/otel"
	"github.com/Strob0t/moecore/internal/adapter/ws"
	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/pool"
	"github.com/Strob0t/moecore/internal/port/broadcast"
	"github.com/Strob0t/moecore/internal/port/messagequeue"
)

// NoExpertsWarning is reported by QueryExperts when routing selects nobody.
const NoExpertsWarning = "No relevant experts found for this query"

// Analysis is one expert's answer to a facade query.
type Analysis struct {
	ExpertID   string         `json:"expert_id"`
	ExpertName string         `json:"expert_name"`
	Analysis   map[string]any `json:"analysis"`
	Score      float64        `json:"relevance_score"`
}

// QueryResponse is the result of QueryExperts.
type QueryResponse struct {
	Query       string           `json:"query"`
	Experts     []expert.Summary `json:"experts"`
	Analyses    []Analysis       `json:"analyses"`
	RouterStats *RouterStats     `json:"router_stats,omitempty"`
	Warning     string           `json:"warning,omitempty"`
}

// Suggestion is a routed expert with its descriptor details inlined.
type Suggestion struct {
	ExpertID       string   `json:"expert_id"`
	Name           string   `json:"name"`
	Domain         string   `json:"domain"`
	Expertise      string   `json:"expertise"`
	Specialization string   `json:"specialization"`
	Score          float64  `json:"relevance_score"`
	Reasoning      string   `json:"reasoning"`
	Keywords       []string `json:"keywords"`
}

// DomainExpert is the listing entry returned by DomainExperts.
type DomainExpert struct {
	ExpertID       string   `json:"expert_id"`
	Name           string   `json:"name"`
	Expertise      string   `json:"expertise"`
	Specialization string   `json:"specialization"`
	Keywords       []string `json:"keywords"`
}

// DomainInfo describes one domain and the experts registered under it.
type DomainInfo struct {
	Domain      string   `json:"domain"`
	DisplayName string   `json:"display_name"`
	ExpertCount int      `json:"expert_count"`
	Experts     []string `json:"experts"`
}

// EngineStats combines registry totals with router statistics.
type EngineStats struct {
	TotalExperts    int            `json:"total_experts"`
	EnabledExperts  int            `json:"enabled_experts"`
	Domains         int            `json:"domains"`
	RouterStats     RouterStats    `json:"router_stats"`
	DomainBreakdown map[string]int `json:"domain_breakdown"`
}

// CustomExpertRequest registers an operator-defined expert.
type CustomExpertRequest struct {
	ExpertID       string   `json:"expert_id"`
	Name           string   `json:"name"`
	Domain         string   `json:"domain"`
	Expertise      string   `json:"expertise"`
	Specialization string   `json:"specialization"`
	Keywords       []string `json:"keywords"`
	Description    string   `json:"description,omitempty"`
	Version        string   `json:"version,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	FragmentsPath  *string  `json:"fragments_path,omitempty"`
	ModelPath      *string  `json:"model_path,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

// IntegrationService bridges the router and registry to the live expert
// objects a host application holds. Router calls are serialized through
// the pool.
type IntegrationService struct {
	router  *RouterService
	host    expert.Host
	pool    *pool.Pool
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *moeotel.Metrics

	filesMu sync.Mutex
	fileIDs map[string][]string // ids last loaded from each registry file
}

// NewIntegrationService creates a facade over router. host may be nil when
// no live expert objects exist; QueryExperts then returns no analyses.
func NewIntegrationService(router *RouterService, host expert.Host, p *pool.Pool) *IntegrationService {
	if host == nil {
		host = expert.HostMap{}
	}
	slog.Info("expert registry ready", "experts", router.Registry().Len())
	return &IntegrationService{router: router, host: host, pool: p, fileIDs: make(map[string][]string)}
}

// SetBroadcaster attaches the live event feed.
func (s *IntegrationService) SetBroadcaster(hub broadcast.Broadcaster) { s.hub = hub }

// SetQueue attaches the message queue used for route events.
func (s *IntegrationService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics attaches metric instruments.
func (s *IntegrationService) SetMetrics(m *moeotel.Metrics) { s.metrics = m }

// Registry returns the underlying registry.
func (s *IntegrationService) Registry() *ExpertRegistry { return s.router.Registry() }

// Route ranks experts for query.
func (s *IntegrationService) Route(ctx context.Context, query string, rc *expert.RouteContext) ([]expert.Selection, error) {
	ctx, span := moeotel.StartRouteSpan(ctx, "route", s.router.MaxExperts())
	defer span.End()

	sels, err := pool.Do(ctx, s.pool, func() ([]expert.Selection, error) {
		return s.router.Route(ctx, query, rc), nil
	})
	if err != nil {
		return nil, err
	}
	s.routed(ctx, "route", query, sels)
	return sels, nil
}

// Suggestions infers domain and complexity hints from description and
// returns the routed experts with their descriptor details.
func (s *IntegrationService) Suggestions(ctx context.Context, description string) ([]Suggestion, error) {
	ctx, span := moeotel.StartRouteSpan(ctx, "suggest", s.router.MaxExperts())
	defer span.End()

	sels, err := pool.Do(ctx, s.pool, func() ([]expert.Selection, error) {
		return s.router.SuggestForTask(ctx, description), nil
	})
	if err != nil {
		return nil, err
	}
	s.routed(ctx, "suggest", description, sels)

	out := make([]Suggestion, 0, len(sels))
	for _, sel := range sels {
		d := sel.Descriptor
		out = append(out, Suggestion{
			ExpertID:       sel.ExpertID,
			Name:           d.Name,
			Domain:         string(d.Domain),
			Expertise:      d.Expertise,
			Specialization: d.Specialization,
			Score:          sel.Score,
			Reasoning:      sel.Reasoning,
			Keywords:       d.Keywords,
		})
	}
	return out, nil
}

// QueryExperts routes query and collects an analysis from every selected
// expert the host can resolve.
func (s *IntegrationService) QueryExperts(ctx context.Context, query string, rc *expert.RouteContext) (*QueryResponse, error) {
	slog.InfoContext(ctx, "processing query", "query", truncate(query, 50))

	sels, err := s.Route(ctx, query, rc)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 {
		slog.WarnContext(ctx, "no experts selected for query")
		return &QueryResponse{
			Query:    query,
			Experts:  []expert.Summary{},
			Analyses: []Analysis{},
			Warning:  NoExpertsWarning,
		}, nil
	}

	runCtx := contextMap(rc)
	analyses := make([]Analysis, 0, len(sels))
	for _, sel := range sels {
		if a, ok := s.analyze(ctx, sel, query, runCtx); ok {
			analyses = append(analyses, a)
		}
	}

	stats, err := s.RouterStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return &QueryResponse{
		Query:       query,
		Experts:     expert.Summarize(sels),
		Analyses:    analyses,
		RouterStats: &stats,
	}, nil
}

func (s *IntegrationService) analyze(ctx context.Context, sel expert.Selection, query string, runCtx map[string]any) (Analysis, bool) {
	live, ok := s.host.LookupExpert(sel.ExpertID)
	if !ok {
		slog.WarnContext(ctx, "expert not found in host", "expert_id", sel.ExpertID)
		return Analysis{}, false
	}
	d := sel.Descriptor
	a := Analysis{ExpertID: sel.ExpertID, ExpertName: d.Name, Score: sel.Score}

	analyzer, ok := live.(expert.Analyzer)
	if !ok {
		a.Analysis = map[string]any{
			"message":        d.Name + " available for " + d.Expertise,
			"specialization": d.Specialization,
		}
		return a, true
	}

	res, err := analyzer.AnalyzeTask(ctx, query, runCtx)
	if err != nil {
		slog.ErrorContext(ctx, "expert analysis failed", "expert_id", sel.ExpertID, "error", err)
		return Analysis{}, false
	}
	a.Analysis = res
	return a, true
}

// contextMap flattens a route context into the generic map analyzers receive.
func contextMap(rc *expert.RouteContext) map[string]any {
	out := map[string]any{}
	if rc == nil {
		return out
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// routed records metrics and fans route events out to the hub and the queue.
func (s *IntegrationService) routed(ctx context.Context, op, query string, sels []expert.Selection) {
	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("op", op))
		s.metrics.Routes.Add(ctx, 1, attrs)
		s.metrics.Selections.Add(ctx, int64(len(sels)), attrs)
	}

	summaries := expert.Summarize(sels)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventRouteCompleted, ws.RouteCompletedEvent{Query: query, Experts: summaries})
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.RouteCompletedPayload{Query: query, Experts: summaries})
	if err != nil {
		slog.ErrorContext(ctx, "marshal route event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectRouteCompleted, data); err != nil {
		slog.ErrorContext(ctx, "failed to publish route event", "error", err)
	}
}

// History returns the router's retained query log.
func (s *IntegrationService) History(ctx context.Context) ([]QueryRecord, error) {
	return pool.Do(ctx, s.pool, func() ([]QueryRecord, error) {
		return s.router.History(), nil
	})
}

// RouterStatistics returns the router's usage statistics.
func (s *IntegrationService) RouterStatistics(ctx context.Context) (RouterStats, error) {
	return pool.Do(ctx, s.pool, func() (RouterStats, error) {
		return s.router.Statistics(), nil
	})
}

// Statistics reports registry totals, per-domain counts and router statistics.
func (s *IntegrationService) Statistics(ctx context.Context) (*EngineStats, error) {
	rs, err := s.RouterStatistics(ctx)
	if err != nil {
		return nil, err
	}
	reg := s.Registry()
	all := expert.AllDomains()
	stats := &EngineStats{
		TotalExperts:    reg.Len(),
		EnabledExperts:  reg.EnabledCount(),
		Domains:         len(all),
		RouterStats:     rs,
		DomainBreakdown: make(map[string]int, len(all)),
	}
	for _, dom := range all {
		stats.DomainBreakdown[string(dom)] = len(reg.DomainIDs(dom))
	}
	return stats, nil
}

// DomainExperts lists the enabled experts of a domain. An unknown label is
// logged and yields an empty list.
func (s *IntegrationService) DomainExperts(ctx context.Context, label string) []DomainExpert {
	dom, err := expert.ParseDomain(label)
	if err != nil {
		slog.ErrorContext(ctx, "invalid domain", "domain", label, "error", err)
		return []DomainExpert{}
	}
	sels, err := pool.Do(ctx, s.pool, func() ([]expert.Selection, error) {
		return s.router.ByDomain(dom), nil
	})
	if err != nil {
		return []DomainExpert{}
	}
	out := make([]DomainExpert, 0, len(sels))
	for _, sel := range sels {
		d := sel.Descriptor
		out = append(out, DomainExpert{
			ExpertID:       d.ID,
			Name:           d.Name,
			Expertise:      d.Expertise,
			Specialization: d.Specialization,
			Keywords:       d.Keywords,
		})
	}
	return out
}

// ListDomains describes every domain, including those without experts.
func (s *IntegrationService) ListDomains() []DomainInfo {
	reg := s.Registry()
	out := make([]DomainInfo, 0, len(expert.AllDomains()))
	for _, dom := range expert.AllDomains() {
		ids := reg.DomainIDs(dom)
		if ids == nil {
			ids = []string{}
		}
		out = append(out, DomainInfo{
			Domain:      string(dom),
			DisplayName: dom.DisplayName(),
			ExpertCount: len(ids),
			Experts:     ids,
		})
	}
	return out
}

// Expert returns one descriptor.
func (s *IntegrationService) Expert(id string) (*expert.Descriptor, error) {
	d := s.Registry().Get(id)
	if d == nil {
		return nil, fmt.Errorf("expert %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

// Experts returns every descriptor in registration order.
func (s *IntegrationService) Experts() []*expert.Descriptor {
	return s.Registry().All()
}

// EnableExpert enables id. It reports false for an unknown id.
func (s *IntegrationService) EnableExpert(ctx context.Context, id string) bool {
	return s.setEnabled(ctx, id, true)
}

// DisableExpert disables id. It reports false for an unknown id.
func (s *IntegrationService) DisableExpert(ctx context.Context, id string) bool {
	return s.setEnabled(ctx, id, false)
}

func (s *IntegrationService) setEnabled(ctx context.Context, id string, enabled bool) bool {
	if !s.Registry().SetEnabled(id, enabled) {
		return false
	}
	action := "disabled"
	if enabled {
		action = "enabled"
	}
	slog.InfoContext(ctx, "expert "+action, "expert_id", id)
	s.registryChanged(ctx, action, id, 1)
	return true
}

// AddCustomExpert registers an operator-defined expert. An unknown domain
// is rejected without touching the registry.
func (s *IntegrationService) AddCustomExpert(ctx context.Context, req CustomExpertRequest) (*expert.Descriptor, error) {
	dom, err := expert.ParseDomain(req.Domain)
	if err != nil {
		slog.ErrorContext(ctx, "invalid domain", "domain", req.Domain, "expert_id", req.ExpertID)
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	d := expert.Descriptor{
		ID:             req.ExpertID,
		Name:           req.Name,
		Domain:         dom,
		Expertise:      req.Expertise,
		Specialization: req.Specialization,
		Keywords:       req.Keywords,
		Enabled:        req.Enabled == nil || *req.Enabled,
		Version:        req.Version,
		Description:    req.Description,
		FragmentsPath:  req.FragmentsPath,
		ModelPath:      req.ModelPath,
		Dependencies:   req.Dependencies,
	}
	if err := s.Registry().Register(d); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "added custom expert", "expert_id", d.ID, "domain", dom)
	s.registryChanged(ctx, "added", d.ID, 1)
	return s.Registry().Get(d.ID), nil
}

// RemoveExpert unregisters id. It reports false for an unknown id.
func (s *IntegrationService) RemoveExpert(ctx context.Context, id string) bool {
	if !s.Registry().Unregister(id) {
		return false
	}
	slog.InfoContext(ctx, "expert removed", "expert_id", id)
	s.registryChanged(ctx, "removed", id, 1)
	return true
}

// ExportRegistry writes the registry to path (JSON, or YAML for .yaml/.yml).
func (s *IntegrationService) ExportRegistry(ctx context.Context, path string) error {
	if err := s.Registry().SaveFile(path); err != nil {
		slog.ErrorContext(ctx, "failed to export registry", "path", path, "error", err)
		return err
	}
	slog.InfoContext(ctx, "exported registry", "path", path)
	return nil
}

// ImportRegistry loads path on top of the current registry. Nothing is
// registered if any record is invalid.
func (s *IntegrationService) ImportRegistry(ctx context.Context, path string) (int, error) {
	return s.loadRegistry(ctx, path, false)
}

// ReloadRegistry makes the registry reflect the current contents of path:
// records are registered and experts an earlier load of path brought in,
// but that the file no longer lists, are removed. Experts from other
// sources are untouched. Nothing changes if any record is invalid.
func (s *IntegrationService) ReloadRegistry(ctx context.Context, path string) (int, error) {
	return s.loadRegistry(ctx, path, true)
}

func (s *IntegrationService) loadRegistry(ctx context.Context, path string, prune bool) (int, error) {
	ds, err := ReadRegistryFile(path)
	if err == nil {
		err = s.applyRegistryFile(ctx, path, ds, prune)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to import registry", "path", path, "error", err)
		return 0, err
	}

	action := "imported"
	if prune {
		action = "reloaded"
	}
	slog.InfoContext(ctx, action+" registry", "path", path, "experts", len(ds))
	s.registryChanged(ctx, action, "", len(ds))
	return len(ds), nil
}

func (s *IntegrationService) applyRegistryFile(ctx context.Context, path string, ds []expert.Descriptor, prune bool) error {
	key := registryKey(path)
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	var stale []string
	if prune {
		stale = s.fileIDs[key]
	}
	removed, err := s.Registry().Replace(stale, ds)
	if err != nil {
		return fmt.Errorf("load registry %s: %w", path, err)
	}
	ids := make([]string, len(ds))
	for i := range ds {
		ids[i] = ds[i].ID
	}
	s.fileIDs[key] = ids
	if len(removed) > 0 {
		slog.InfoContext(ctx, "removed experts dropped from registry file", "path", path, "expert_ids", removed)
	}
	return nil
}

func registryKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (s *IntegrationService) registryChanged(ctx context.Context, action, id string, count int) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventRegistryChanged, ws.RegistryChangedEvent{Action: action, ExpertID: id, Count: count})
}
