package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// maxTasks bounds the in-memory task store; the oldest task is evicted first.
const maxTasks = 1000

// ExpertLister supplies the experts advertised on the agent card.
type ExpertLister interface {
	Experts() []*expert.Descriptor
}

// TaskRunner executes one task and returns its output.
type TaskRunner interface {
	RunTask(ctx context.Context, req TaskRequest) (any, error)
}

// Handler serves the A2A protocol endpoints.
type Handler struct {
	baseURL string
	version string
	experts ExpertLister
	runner  TaskRunner

	mu    sync.RWMutex
	tasks map[string]*TaskResponse
	order []string
}

// NewHandler creates an A2A handler. runner may be nil, in which case every
// task fails.
func NewHandler(baseURL, version string, experts ExpertLister, runner TaskRunner) *Handler {
	return &Handler{
		baseURL: baseURL,
		version: version,
		experts: experts,
		runner:  runner,
		tasks:   make(map[string]*TaskResponse),
	}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level, not under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	card := BuildAgentCard(h.baseURL, h.version, h.experts.Experts())
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	if req.Skill == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "skill is required"})
		return
	}

	h.mu.RLock()
	_, exists := h.tasks[req.ID]
	h.mu.RUnlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task already exists"})
		return
	}

	resp := &TaskResponse{ID: req.ID, Skill: req.Skill, Status: StatusCompleted}
	if h.runner == nil {
		resp.Status = StatusFailed
		resp.Error = "no task runner configured"
	} else if out, err := h.runner.RunTask(r.Context(), req); err != nil {
		resp.Status = StatusFailed
		resp.Error = err.Error()
	} else {
		resp.Output = out
	}

	h.store(resp)
	slog.Info("a2a task finished", "id", req.ID, "skill", req.Skill, "status", resp.Status)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) store(resp *TaskResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[resp.ID] = resp
	h.order = append(h.order, resp.ID)
	if len(h.order) > maxTasks {
		delete(h.tasks, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	resp, ok := h.tasks[id]
	h.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
