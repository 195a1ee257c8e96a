package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/moecore/internal/port/messagequeue"
)

// WorkerService consumes moe.tasks.run requests, runs them on its own
// orchestrator and publishes a moe.tasks.result for each.
type WorkerService struct {
	id     string
	engine *OrchestrationService
	queue  messagequeue.Queue
}

// NewWorkerService creates a worker. An empty id gets a random one.
func NewWorkerService(id string, engine *OrchestrationService, queue messagequeue.Queue) *WorkerService {
	if id == "" {
		id = "worker-" + uuid.NewString()[:8]
	}
	return &WorkerService{id: id, engine: engine, queue: queue}
}

// ID returns the worker id reported in results.
func (w *WorkerService) ID() string { return w.id }

// Start subscribes to task requests. The returned function cancels the subscription.
func (w *WorkerService) Start(ctx context.Context) (cancel func(), err error) {
	slog.Info("worker subscribing", "worker_id", w.id, "subject", messagequeue.SubjectTaskRun)
	return w.queue.Subscribe(ctx, messagequeue.SubjectTaskRun, w.handle)
}

// handle runs one task. A failed run is reported in the result payload;
// only a failure to publish the result is returned so the message is retried.
func (w *WorkerService) handle(ctx context.Context, _ string, data []byte) error {
	var req messagequeue.TaskRunPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}

	result := messagequeue.TaskResultPayload{TaskID: req.TaskID, WorkerID: w.id}
	report, err := w.engine.Run(ctx, req.Prompt, req.Context)
	if err != nil {
		slog.WarnContext(ctx, "task run failed", "task_id", req.TaskID, "error", err)
		result.Error = err.Error()
	} else {
		result.Scrubbed = report.Scrubbed
		result.Combined = report.Combined
		result.Decision = report.Decision
		result.PerExpert = report.PerExpert
		result.DatasetSize = report.DatasetSize
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := w.queue.Publish(ctx, messagequeue.SubjectTaskResult, out); err != nil {
		return fmt.Errorf("publish result for %s: %w", req.TaskID, err)
	}
	return nil
}
