package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/service"
)

// Version is reported by GET /api/v1/ and /health.
const Version = "0.1.0"

const maxQueryLength = 2000
const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the services the API routes call.
type Handlers struct {
	Engine        *service.IntegrationService
	Orchestration *service.OrchestrationService
	// RegistryDir is the only directory export and import may touch.
	RegistryDir string
}

// Health reports liveness together with a few engine counters.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	size, err := h.Orchestration.DatasetSize(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      Version,
		"experts":      h.Engine.Registry().Len(),
		"enabled":      h.Engine.Registry().EnabledCount(),
		"dataset_size": size,
	})
}

type routeRequest struct {
	Query   string               `json:"query"`
	Context *expert.RouteContext `json:"context,omitempty"`
}

type routeResponse struct {
	Query      string             `json:"query"`
	Selections []expert.Selection `json:"selections"`
}

func readQuery(w http.ResponseWriter, r *http.Request) (routeRequest, bool) {
	req, ok := readJSON[routeRequest](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.Query, "query") {
		return req, false
	}
	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query exceeds %d characters", maxQueryLength))
		return req, false
	}
	return req, true
}

// Route handles POST /api/v1/route.
func (h *Handlers) Route(w http.ResponseWriter, r *http.Request) {
	req, ok := readQuery(w, r)
	if !ok {
		return
	}
	sels, err := h.Engine.Route(r.Context(), req.Query, req.Context)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	if sels == nil {
		sels = []expert.Selection{}
	}
	writeJSON(w, http.StatusOK, routeResponse{Query: req.Query, Selections: sels})
}

// Suggest handles POST /api/v1/suggest.
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Description string `json:"description"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.Description, "description") {
		return
	}
	out, err := h.Engine.Suggestions(r.Context(), req.Description)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// QueryExperts handles POST /api/v1/query.
func (h *Handlers) QueryExperts(w http.ResponseWriter, r *http.Request) {
	req, ok := readQuery(w, r)
	if !ok {
		return
	}
	resp, err := h.Engine.QueryExperts(r.Context(), req.Query, req.Context)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Statistics handles GET /api/v1/stats.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Statistics(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) listExperts(context.Context) ([]*expert.Descriptor, error) {
	return h.Engine.Experts(), nil
}

func expertLocation(d *expert.Descriptor) string {
	return "/api/v1/experts/" + url.PathEscape(d.ID)
}

func (h *Handlers) getExpert(_ context.Context, id string) (*expert.Descriptor, error) {
	return h.Engine.Expert(id)
}

func (h *Handlers) addExpert(ctx context.Context, req *service.CustomExpertRequest) (*expert.Descriptor, error) {
	return h.Engine.AddCustomExpert(ctx, *req)
}

func (h *Handlers) removeExpert(ctx context.Context, id string) error {
	if !h.Engine.RemoveExpert(ctx, id) {
		return fmt.Errorf("expert %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (h *Handlers) domainExperts(ctx context.Context, label string) ([]service.DomainExpert, error) {
	if _, err := expert.ParseDomain(label); err != nil {
		return nil, fmt.Errorf("domain %s: %w", label, domain.ErrNotFound)
	}
	return h.Engine.DomainExperts(ctx, label), nil
}

// EnableExpert handles POST /api/v1/experts/{id}/enable.
func (h *Handlers) EnableExpert(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// DisableExpert handles POST /api/v1/experts/{id}/disable.
func (h *Handlers) DisableExpert(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := urlParam(r, "id")
	set := h.Engine.DisableExpert
	if enabled {
		set = h.Engine.EnableExpert
	}
	if !set(r.Context(), id) {
		writeError(w, http.StatusNotFound, "expert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expert_id": id, "enabled": enabled})
}

// ListDomains handles GET /api/v1/domains.
func (h *Handlers) ListDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.ListDomains())
}

type registryFileRequest struct {
	Name string `json:"name"`
}

// registryPath resolves a file name inside RegistryDir.
func (h *Handlers) registryPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	req, ok := readJSON[registryFileRequest](w, r, maxRequestBodySize)
	if !ok {
		return "", false
	}
	if err := sanitizeName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	dir := h.RegistryDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, req.Name), true
}

// ExportRegistry handles POST /api/v1/registry/export.
func (h *Handlers) ExportRegistry(w http.ResponseWriter, r *http.Request) {
	path, ok := h.registryPath(w, r)
	if !ok {
		return
	}
	if err := h.Engine.ExportRegistry(r.Context(), path); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "experts": h.Engine.Registry().Len()})
}

// ImportRegistry handles POST /api/v1/registry/import.
func (h *Handlers) ImportRegistry(w http.ResponseWriter, r *http.Request) {
	path, ok := h.registryPath(w, r)
	if !ok {
		return
	}
	n, err := h.Engine.ImportRegistry(r.Context(), path)
	if err != nil {
		writeDomainError(w, err, "registry file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "imported": n})
}

type runRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// Run handles POST /api/v1/orchestrator/run.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[runRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	rep, err := h.Orchestration.Run(r.Context(), req.Prompt, req.Context)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// LightPull handles POST /api/v1/orchestrator/light-pull.
func (h *Handlers) LightPull(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Query string `json:"query"`
	}](w, r, maxRequestBodySize)
	if !ok || !requireField(w, req.Query, "query") {
		return
	}
	answer, err := h.Orchestration.LightPull(r.Context(), req.Query)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"query": req.Query, "answer": answer})
}

// RouteToken handles GET /api/v1/orchestrator/route-token?token=.
func (h *Handlers) RouteToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !requireField(w, token, "token") {
		return
	}
	routes, err := h.Orchestration.RouteToken(r.Context(), token)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "slots": routes})
}

// Slots handles GET /api/v1/orchestrator/slots.
func (h *Handlers) Slots(w http.ResponseWriter, r *http.Request) {
	names, err := h.Orchestration.Slots(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ListExamples handles GET /api/v1/dataset/examples?limit=n.
func (h *Handlers) ListExamples(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	examples, err := h.Orchestration.Examples(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, examples)
}
