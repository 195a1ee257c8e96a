package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	moeotel "github.com/Strob0t/moecore/internal/adapter/otel"
	"github.com/Strob0t/moecore/internal/adapter/ws"
	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/dataset"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/logger"
	"github.com/Strob0t/moecore/internal/pool"
	"github.com/Strob0t/moecore/internal/port/broadcast"
	"github.com/Strob0t/moecore/internal/port/datasetstore"
	"github.com/Strob0t/moecore/internal/port/messagequeue"
)

// Example listing bounds.
const (
	DefaultExampleLimit = 20
	MaxExampleLimit     = 500
)

const expertErrorPrefix = "Error in expert "

// RunReport is a RunResult tagged with the id of the run that produced it.
type RunReport struct {
	RunID string `json:"run_id"`
	*RunResult
}

// SlotRoute names one pool position a token is dispatched to.
type SlotRoute struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// OrchestrationService wraps an Orchestrator with call serialization,
// telemetry and event fan-out.
type OrchestrationService struct {
	orch      *Orchestrator
	pool      *pool.Pool
	store     datasetstore.Store
	summarize Summarizer
	light     expert.Callable
	hub       broadcast.Broadcaster
	queue     messagequeue.Queue
	metrics   *moeotel.Metrics
}

// NewOrchestrationService creates a service around orch. store should be the
// store orch persists into; nil lists examples from memory.
func NewOrchestrationService(orch *Orchestrator, store datasetstore.Store, p *pool.Pool) *OrchestrationService {
	return &OrchestrationService{orch: orch, store: store, pool: p}
}

// SetSummarizer sets the decision function used by Run. Nil selects the
// built-in "Top suggestions" decision.
func (s *OrchestrationService) SetSummarizer(fn Summarizer) { s.summarize = fn }

// SetLightPull sets the callable LightPull asks.
func (s *OrchestrationService) SetLightPull(fn expert.Callable) { s.light = fn }

// SetBroadcaster attaches the live event feed.
func (s *OrchestrationService) SetBroadcaster(hub broadcast.Broadcaster) { s.hub = hub }

// SetQueue attaches the message queue used for interaction events.
func (s *OrchestrationService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics attaches metric instruments.
func (s *OrchestrationService) SetMetrics(m *moeotel.Metrics) { s.metrics = m }

// Run executes one orchestrator run under a fresh run id.
func (s *OrchestrationService) Run(ctx context.Context, prompt string, runCtx map[string]any) (*RunReport, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := moeotel.StartRunSpan(ctx, runID, len(strings.Fields(prompt)), s.orch.ExpertsPerToken())
	defer span.End()

	start := time.Now()
	res, err := pool.Do(ctx, s.pool, func() (*RunResult, error) {
		return s.orch.Run(ctx, prompt, runCtx, s.summarize)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.RunsFailed.Add(ctx, 1)
		}
		slog.WarnContext(ctx, "orchestrator run aborted", "error", err)
		return nil, err
	}

	s.observe(ctx, res, time.Since(start))
	slog.InfoContext(ctx, "orchestrator run completed",
		"experts", len(res.PerExpert),
		"dataset_size", res.DatasetSize,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.publish(ctx, runID, res)
	return &RunReport{RunID: runID, RunResult: res}, nil
}

func (s *OrchestrationService) observe(ctx context.Context, res *RunResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RunsCompleted.Add(ctx, 1)
	s.metrics.RunDuration.Record(ctx, elapsed.Seconds())
	for name, outs := range res.PerExpert {
		n := 0
		for _, o := range outs {
			if strings.HasPrefix(o, expertErrorPrefix) {
				n++
			}
		}
		if n > 0 {
			s.metrics.ExpertErrors.Add(ctx, int64(n), metric.WithAttributes(attribute.String("expert", name)))
		}
	}
	if s.store != nil && res.ExampleID == 0 {
		s.metrics.DatasetFailures.Add(ctx, 1)
	}
}

func (s *OrchestrationService) publish(ctx context.Context, runID string, res *RunResult) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventRunCompleted, ws.RunCompletedEvent{
			RunID:       runID,
			Scrubbed:    res.Scrubbed,
			Decision:    res.Decision,
			Experts:     len(res.PerExpert),
			DatasetSize: res.DatasetSize,
		})
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.InteractionRecordedPayload{
		RunID:         runID,
		ExampleID:     res.ExampleID,
		Scrubbed:      res.Scrubbed,
		ExpertOutputs: res.PerExpert,
		Decision:      res.Decision,
		DatasetSize:   res.DatasetSize,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal interaction event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectInteractionRecorded, data); err != nil {
		slog.ErrorContext(ctx, "failed to publish interaction event", "error", err)
	}
}

// LightPull answers query from the most recent runs using the configured
// light-pull callable.
func (s *OrchestrationService) LightPull(ctx context.Context, query string) (string, error) {
	if s.light == nil {
		return "", fmt.Errorf("%w: no light-pull expert configured", domain.ErrValidation)
	}
	return pool.Do(ctx, s.pool, func() (string, error) {
		return s.orch.LightPull(s.light, query)
	})
}

// RouteToken reports which pool slots a token is dispatched to.
func (s *OrchestrationService) RouteToken(ctx context.Context, token string) ([]SlotRoute, error) {
	return pool.Do(ctx, s.pool, func() ([]SlotRoute, error) {
		slots := s.orch.Slots()
		idx := s.orch.RouteToken(token)
		out := make([]SlotRoute, 0, len(idx))
		for _, i := range idx {
			out = append(out, SlotRoute{Index: i, Name: slots[i].Name})
		}
		return out, nil
	})
}

// Slots returns the names of the pool positions in order.
func (s *OrchestrationService) Slots(ctx context.Context) ([]string, error) {
	return pool.Do(ctx, s.pool, func() ([]string, error) {
		slots := s.orch.Slots()
		names := make([]string, len(slots))
		for i, sl := range slots {
			names[i] = sl.Name
		}
		return names, nil
	})
}

// Examples returns up to limit recorded examples, newest first. limit is
// clamped to 1..MaxExampleLimit; zero selects DefaultExampleLimit.
func (s *OrchestrationService) Examples(ctx context.Context, limit int) ([]*dataset.Example, error) {
	switch {
	case limit <= 0:
		limit = DefaultExampleLimit
	case limit > MaxExampleLimit:
		limit = MaxExampleLimit
	}
	if s.store != nil {
		return s.store.LoadLast(ctx, limit)
	}
	return pool.Do(ctx, s.pool, func() ([]*dataset.Example, error) {
		recent := s.orch.Recent(limit)
		slices.Reverse(recent)
		return recent, nil
	})
}

// DatasetSize returns the number of examples recorded in this process.
func (s *OrchestrationService) DatasetSize(ctx context.Context) (int, error) {
	return pool.Do(ctx, s.pool, func() (int, error) {
		return s.orch.DatasetSize(), nil
	})
}
