// Package broadcast defines the port for pushing live engine events to connected clients.
package broadcast

import "context"

// Broadcaster sends typed events to every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Event types pushed by the engine.
const (
	EventRouteCompleted  = "route.completed"
	EventRunCompleted    = "run.completed"
	EventRegistryChanged = "registry.changed"
)
