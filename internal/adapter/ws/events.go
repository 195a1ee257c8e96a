package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// RouteCompletedEvent is broadcast after a query has been routed.
type RouteCompletedEvent struct {
	Query   string           `json:"query"`
	Experts []expert.Summary `json:"experts"`
}

// RunCompletedEvent is broadcast after an orchestrator run has been recorded.
type RunCompletedEvent struct {
	RunID       string `json:"run_id"`
	Scrubbed    string `json:"scrubbed"`
	Decision    string `json:"decision"`
	Experts     int    `json:"experts"`
	DatasetSize int    `json:"dataset_size"`
}

// RegistryChangedEvent is broadcast when experts are added, removed, toggled or imported.
type RegistryChangedEvent struct {
	Action   string `json:"action"`
	ExpertID string `json:"expert_id,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
