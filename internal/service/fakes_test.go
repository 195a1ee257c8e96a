package service

import (
	"context"
	"sync"

	"github.com/Strob0t/moecore/internal/port/broadcast"
	"github.com/Strob0t/moecore/internal/port/messagequeue"
)

var (
	_ messagequeue.Queue    = (*recordingQueue)(nil)
	_ broadcast.Broadcaster = (*recordingHub)(nil)
)

type published struct {
	subject string
	data    []byte
}

// recordingQueue implements messagequeue.Queue in memory. Subscribed
// handlers are kept so tests can deliver messages by hand.
type recordingQueue struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]messagequeue.Handler
	publishErr error
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, published{subject, data})
	return nil
}

func (q *recordingQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handlers == nil {
		q.handlers = make(map[string]messagequeue.Handler)
	}
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		delete(q.handlers, subject)
		q.mu.Unlock()
	}, nil
}

func (q *recordingQueue) deliver(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	h := q.handlers[subject]
	q.mu.Unlock()
	return h(ctx, subject, data)
}

func (q *recordingQueue) on(subject string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out [][]byte
	for _, p := range q.published {
		if p.subject == subject {
			out = append(out, p.data)
		}
	}
	return out
}

func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return true }

type hubEvent struct {
	eventType string
	payload   any
}

type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *recordingHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{eventType, payload})
}

func (h *recordingHub) of(eventType string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, e := range h.events {
		if e.eventType == eventType {
			out = append(out, e.payload)
		}
	}
	return out
}
