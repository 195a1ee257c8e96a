package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/dataset"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/domain/scrub"
	"github.com/Strob0t/moecore/internal/port/datasetstore"
)

// DefaultExpertsPerToken is the number of slots each token is dispatched to.
const DefaultExpertsPerToken = 2

// lightPullWindow is the number of recent examples LightPull uses as context.
const lightPullWindow = 10

// NoDatasetMessage is returned by LightPull before any run has been recorded.
const NoDatasetMessage = "No dataset available."

// Summarizer turns the combined expert text of a run into a decision.
type Summarizer func(combined string, payload SummaryPayload) (string, error)

// SummaryPayload is everything a Summarizer may look at.
type SummaryPayload struct {
	Prompt    string              `json:"prompt"`
	Scrubbed  string              `json:"scrubbed"`
	Combined  string              `json:"combined"`
	PerExpert map[string][]string `json:"per_expert"`
}

// RunResult is the outcome of one orchestrator run.
type RunResult struct {
	Scrubbed    string              `json:"scrubbed"`
	PerExpert   map[string][]string `json:"per_expert"`
	Combined    string              `json:"combined"`
	Decision    string              `json:"decision"`
	DatasetSize int                 `json:"dataset_size"`
	ExampleID   int64               `json:"example_id,omitempty"`
}

// OrchestratorConfig configures NewOrchestrator.
type OrchestratorConfig struct {
	// ExpertsPerToken is clamped to the pool size. Zero selects DefaultExpertsPerToken.
	ExpertsPerToken int
	// Slots fill pool positions from 0; missing positions get no-op experts.
	Slots []expert.Slot
	// Store receives every recorded example. Nil keeps the dataset in memory only.
	Store datasetstore.Store
}

// Orchestrator dispatches each token of a prompt to a small, deterministic
// subset of a fixed pool of expert callables and aggregates their replies.
// An Orchestrator is not safe for concurrent use.
type Orchestrator struct {
	slots   [expert.PoolSize]expert.Slot
	k       int
	store   datasetstore.Store
	dataset []*dataset.Example
	now     func() time.Time
}

// NewOrchestrator builds an orchestrator. ExpertsPerToken below zero is rejected.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	k := cfg.ExpertsPerToken
	if k == 0 {
		k = DefaultExpertsPerToken
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: experts_per_token must be >= 1, got %d", domain.ErrValidation, cfg.ExpertsPerToken)
	}
	if len(cfg.Slots) > expert.PoolSize {
		slog.Warn("ignoring extra expert slots", "given", len(cfg.Slots), "pool_size", expert.PoolSize)
	}

	o := &Orchestrator{k: min(k, expert.PoolSize), store: cfg.Store, now: time.Now}
	for i := range o.slots {
		o.slots[i] = expert.NoopSlot(i)
		if i < len(cfg.Slots) && cfg.Slots[i].Fn != nil {
			o.slots[i] = cfg.Slots[i]
		}
	}
	return o, nil
}

// ExpertsPerToken returns the effective fan-out per token.
func (o *Orchestrator) ExpertsPerToken() int { return o.k }

// RegisterSlot replaces the expert at idx.
func (o *Orchestrator) RegisterSlot(idx int, s expert.Slot) error {
	if idx < 0 || idx >= expert.PoolSize {
		return fmt.Errorf("%w: expert index must be in 0..%d, got %d", domain.ErrValidation, expert.PoolSize-1, idx)
	}
	if s.Fn == nil {
		return fmt.Errorf("%w: slot %d has no callable", domain.ErrValidation, idx)
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("expert_%d", idx)
	}
	o.slots[idx] = s
	return nil
}

// Slots returns a copy of the pool.
func (o *Orchestrator) Slots() []expert.Slot {
	out := make([]expert.Slot, len(o.slots))
	copy(out, o.slots[:])
	return out
}

// RouteToken returns the slot indices a token is dispatched to: K
// consecutive positions, wrapping, starting at the first sha256 byte
// modulo the pool size.
func (o *Orchestrator) RouteToken(token string) []int {
	sum := sha256.Sum256([]byte(token))
	start := int(sum[0]) % expert.PoolSize
	out := make([]int, o.k)
	for i := range out {
		out[i] = (start + i) % expert.PoolSize
	}
	return out
}

// Run scrubs prompt, dispatches every whitespace token to its routed slots,
// aggregates the replies and records the interaction. Expert failures never
// abort a run; only cancellation of ctx does.
func (o *Orchestrator) Run(ctx context.Context, prompt string, runCtx map[string]any, summarize Summarizer) (*RunResult, error) {
	scrubbed := scrub.Text(prompt)
	tokens := strings.Fields(scrubbed)

	perExpert := make(map[string][]string)
	firstSlot := make(map[string]int)
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, idx := range o.RouteToken(tok) {
			s := o.slots[idx]
			if _, seen := firstSlot[s.Name]; !seen {
				firstSlot[s.Name] = idx
			}
			perExpert[s.Name] = append(perExpert[s.Name], invoke(s, tok, callContext(runCtx, scrubbed)))
		}
	}

	top := rankExperts(perExpert, firstSlot, topExperts)
	combined := combineOutputs(perExpert, top)
	decision := o.decide(ctx, summarize, combined, SummaryPayload{
		Prompt:    prompt,
		Scrubbed:  scrubbed,
		Combined:  combined,
		PerExpert: dataset.CloneOutputs(perExpert),
	}, top)

	ex := &dataset.Example{
		Prompt:        prompt,
		Scrubbed:      scrubbed,
		ExpertOutputs: dataset.CloneOutputs(perExpert),
		CreatedAt:     o.now().UTC(),
	}
	o.record(ctx, ex)

	return &RunResult{
		Scrubbed:    scrubbed,
		PerExpert:   perExpert,
		Combined:    combined,
		Decision:    decision,
		DatasetSize: len(o.dataset),
		ExampleID:   ex.ID,
	}, nil
}

// callContext gives every call its own map so experts cannot see each other's writes.
func callContext(runCtx map[string]any, scrubbed string) map[string]any {
	m := make(map[string]any, len(runCtx)+1)
	for k, v := range runCtx {
		m[k] = v
	}
	m["full_prompt"] = scrubbed
	return m
}

func invoke(s expert.Slot, token string, callCtx map[string]any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error in expert %s: %v", s.Name, r)
		}
	}()
	res, err := s.Fn(token, callCtx)
	if err != nil {
		return fmt.Sprintf("Error in expert %s: %v", s.Name, err)
	}
	return res
}

func (o *Orchestrator) decide(ctx context.Context, summarize Summarizer, combined string, payload SummaryPayload, top []string) (decision string) {
	if summarize == nil {
		return defaultDecision(payload.PerExpert, top)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "summarizer panicked, using combined text", "panic", fmt.Sprint(r))
			decision = combined
		}
	}()
	out, err := summarize(combined, payload)
	if err != nil {
		slog.WarnContext(ctx, "summarizer failed, using combined text", "error", err)
		return combined
	}
	return out
}

// record persists ex to the durable store, then keeps a private copy in the
// in-memory dataset so later edits to ex or the run result cannot reach it.
func (o *Orchestrator) record(ctx context.Context, ex *dataset.Example) {
	if o.store != nil {
		if err := o.store.SaveExample(ctx, ex); err != nil {
			slog.ErrorContext(ctx, "failed to persist example", "error", err)
		}
	}
	o.dataset = append(o.dataset, ex.Clone())
}

// DatasetSize returns the number of examples recorded by this orchestrator.
func (o *Orchestrator) DatasetSize() int { return len(o.dataset) }

// Recent returns up to n of the most recent in-memory examples, oldest first.
func (o *Orchestrator) Recent(n int) []*dataset.Example {
	if n > len(o.dataset) {
		n = len(o.dataset)
	}
	out := make([]*dataset.Example, 0, n)
	for _, ex := range o.dataset[len(o.dataset)-n:] {
		out = append(out, ex.Clone())
	}
	return out
}

// LightPull asks lightFn to answer query using the scrubbed prompts of the
// most recent runs as context.
func (o *Orchestrator) LightPull(lightFn expert.Callable, query string) (string, error) {
	if len(o.dataset) == 0 {
		return NoDatasetMessage, nil
	}
	recent := o.dataset[max(0, len(o.dataset)-lightPullWindow):]
	return lightFn(query+" based on: "+dataset.JoinScrubbed(recent), map[string]any{})
}
