// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain processes pending messages and then closes the connection.
	Drain() error

	Close() error

	IsConnected() bool
}

// Subjects used by the engine and its workers.
const (
	SubjectInteractionRecorded = "moe.interactions.recorded" // an orchestrator run was persisted
	SubjectRouteCompleted      = "moe.routes.completed"      // a query was routed
	SubjectTaskRun             = "moe.tasks.run"             // request for a worker to run the orchestrator
	SubjectTaskResult          = "moe.tasks.result"          // worker result for a moe.tasks.run request
)
