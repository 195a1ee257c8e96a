package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/a2a"
)

// TaskRunner executes A2A tasks. The "query" skill routes through the
// engine, "orchestrate" runs the orchestrator, and any other skill names a
// single expert to consult directly.
type TaskRunner struct {
	engine *IntegrationService
	orch   *OrchestrationService
}

var _ a2a.TaskRunner = (*TaskRunner)(nil)

// NewTaskRunner creates a runner. orch may be nil when no token pool is configured.
func NewTaskRunner(engine *IntegrationService, orch *OrchestrationService) *TaskRunner {
	return &TaskRunner{engine: engine, orch: orch}
}

// RunTask dispatches req by skill.
func (t *TaskRunner) RunTask(ctx context.Context, req a2a.TaskRequest) (any, error) {
	switch req.Skill {
	case a2a.SkillQuery:
		q, err := inputString(req.Input, "query")
		if err != nil {
			return nil, err
		}
		rc, err := routeContextFrom(req.Context)
		if err != nil {
			return nil, err
		}
		return t.engine.QueryExperts(ctx, q, rc)

	case a2a.SkillOrchestrate:
		if t.orch == nil {
			return nil, fmt.Errorf("%w: orchestrator not configured", domain.ErrValidation)
		}
		p, err := inputString(req.Input, "prompt")
		if err != nil {
			return nil, err
		}
		return t.orch.Run(ctx, p, req.Context)

	default:
		return t.consult(ctx, req)
	}
}

// consult asks one enabled expert directly, bypassing ranking.
func (t *TaskRunner) consult(ctx context.Context, req a2a.TaskRequest) (*Analysis, error) {
	d, err := t.engine.Expert(req.Skill)
	if err != nil {
		return nil, fmt.Errorf("unknown skill %q: %w", req.Skill, err)
	}
	if !d.Enabled {
		return nil, fmt.Errorf("%w: expert %s is disabled", domain.ErrValidation, d.ID)
	}
	q, err := inputString(req.Input, "query")
	if err != nil {
		return nil, err
	}
	score := d.MatchQuery(q)
	sel := expert.Selection{ExpertID: d.ID, Descriptor: d, Score: score, Reasoning: reasoning(d, score, q)}
	a, ok := t.engine.analyze(ctx, sel, q, req.Context)
	if !ok {
		return nil, fmt.Errorf("expert %s produced no analysis", d.ID)
	}
	return &a, nil
}

func inputString(input map[string]any, key string) (string, error) {
	v, _ := input[key].(string)
	if v == "" {
		return "", fmt.Errorf("%w: input.%s is required", domain.ErrValidation, key)
	}
	return v, nil
}

func routeContextFrom(m map[string]any) (*expert.RouteContext, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal task context: %w", err)
	}
	var rc expert.RouteContext
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("%w: task context: %w", domain.ErrValidation, err)
	}
	return &rc, nil
}
