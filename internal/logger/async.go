package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AsyncHandler hands records to a pool of writer goroutines through a
// bounded channel. When the channel is full the record is dropped and counted.
type AsyncHandler struct {
	inner  slog.Handler
	shared *asyncShared
}

type asyncShared struct {
	ch      chan slog.Record
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// NewAsyncHandler starts workers draining into inner.
func NewAsyncHandler(inner slog.Handler, bufferSize, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	s := &asyncShared{ch: make(chan slog.Record, bufferSize)}
	for range workers {
		s.wg.Add(1)
		go s.drain(inner)
	}
	return &AsyncHandler{inner: inner, shared: s}
}

// drain writes through the root handler; derived handlers pre-render their
// attrs into the record before enqueueing.
func (s *asyncShared) drain(root slog.Handler) {
	defer s.wg.Done()
	for rec := range s.ch {
		_ = root.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it if the buffer is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.shared.ch <- rec.Clone():
	default:
		h.shared.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler that shares the queue and prepends attrs to every record.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attrAsyncHandler{parent: h, attrs: attrs}
}

// WithGroup is not supported across the async hop; records keep flat keys.
func (h *AsyncHandler) WithGroup(string) slog.Handler {
	return h
}

// Dropped returns the number of records discarded because the buffer was full.
func (h *AsyncHandler) Dropped() int64 {
	return h.shared.dropped.Load()
}

// Close stops accepting records and waits until the buffer is drained.
func (h *AsyncHandler) Close() {
	h.shared.once.Do(func() { close(h.shared.ch) })
	h.shared.wg.Wait()
}

// attrAsyncHandler carries With(...) attributes in front of an AsyncHandler.
type attrAsyncHandler struct {
	parent *AsyncHandler
	attrs  []slog.Attr
}

func (h *attrAsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.parent.Enabled(ctx, level)
}

func (h *attrAsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	out.AddAttrs(h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.parent.Handle(ctx, out)
}

func (h *attrAsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &attrAsyncHandler{parent: h.parent, attrs: merged}
}

func (h *attrAsyncHandler) WithGroup(string) slog.Handler { return h }
