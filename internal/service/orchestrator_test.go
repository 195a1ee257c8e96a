package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/dataset"
	"github.com/Strob0t/moecore/internal/domain/expert"
)

// fakeStore records saved examples and optionally fails.
type fakeStore struct {
	saved []*dataset.Example
	err   error
}

func (f *fakeStore) SaveExample(_ context.Context, ex *dataset.Example) error {
	if f.err != nil {
		return f.err
	}
	ex.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, ex.Clone())
	return nil
}

func (f *fakeStore) LoadLast(_ context.Context, n int) ([]*dataset.Example, error) {
	var out []*dataset.Example
	for i := len(f.saved) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.saved[i].Clone())
	}
	return out, nil
}

func (f *fakeStore) Count(context.Context) (int64, error) { return int64(len(f.saved)), nil }
func (f *fakeStore) Close() error                          { return nil }

func echoSlot(name string) expert.Slot {
	return expert.Slot{Name: name, Fn: func(tok string, _ map[string]any) (string, error) {
		return name + ":" + tok, nil
	}}
}

func newOrch(t *testing.T, cfg OrchestratorConfig) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestNewOrchestrator_ExpertsPerToken(t *testing.T) {
	if _, err := NewOrchestrator(OrchestratorConfig{ExpertsPerToken: -1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := newOrch(t, OrchestratorConfig{}).ExpertsPerToken(); got != DefaultExpertsPerToken {
		t.Fatalf("default K = %d", got)
	}
	if got := newOrch(t, OrchestratorConfig{ExpertsPerToken: 20}).ExpertsPerToken(); got != expert.PoolSize {
		t.Fatalf("K not clamped: %d", got)
	}
}

func TestNewOrchestrator_FillsNoopSlots(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{Slots: []expert.Slot{echoSlot("first")}})
	slots := o.Slots()
	if len(slots) != expert.PoolSize {
		t.Fatalf("pool size = %d", len(slots))
	}
	if slots[0].Name != "first" || slots[1].Name != "expert_1" || slots[7].Name != "expert_7" {
		t.Fatalf("unexpected slot names: %s %s %s", slots[0].Name, slots[1].Name, slots[7].Name)
	}
}

func TestRegisterSlot(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	if err := o.RegisterSlot(8, echoSlot("x")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for idx 8, got %v", err)
	}
	if err := o.RegisterSlot(-1, echoSlot("x")); err == nil {
		t.Fatal("expected error for negative idx")
	}
	if err := o.RegisterSlot(0, expert.Slot{Name: "nil"}); err == nil {
		t.Fatal("expected error for nil callable")
	}
	if err := o.RegisterSlot(3, echoSlot("three")); err != nil {
		t.Fatal(err)
	}
	if o.Slots()[3].Name != "three" {
		t.Fatal("slot not replaced")
	}
}

func TestRouteToken(t *testing.T) {
	for _, k := range []int{1, 2, 3, 8} {
		o := newOrch(t, OrchestratorConfig{ExpertsPerToken: k})
		for _, tok := range []string{"hello", "world", "", "ünïcode", "[REDACTED_EMAIL]"} {
			sum := sha256.Sum256([]byte(tok))
			start := int(sum[0]) % expert.PoolSize

			got := o.RouteToken(tok)
			if len(got) != k {
				t.Fatalf("k=%d: got %d indices", k, len(got))
			}
			seen := map[int]bool{}
			for i, idx := range got {
				if idx != (start+i)%expert.PoolSize {
					t.Fatalf("k=%d tok=%q: index %d = %d", k, tok, i, idx)
				}
				if seen[idx] {
					t.Fatalf("duplicate index %d", idx)
				}
				seen[idx] = true
			}
			if !cmp.Equal(got, o.RouteToken(tok)) {
				t.Fatal("routing is not deterministic")
			}
		}
	}
}

func TestRun_NoopPool(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	res, err := o.Run(context.Background(), "hello world", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.DatasetSize != 1 || o.DatasetSize() != 1 {
		t.Fatalf("dataset size = %d/%d", res.DatasetSize, o.DatasetSize())
	}

	want := map[string]bool{}
	for _, tok := range []string{"hello", "world"} {
		for _, idx := range o.RouteToken(tok) {
			want[fmt.Sprintf("expert_%d", idx)] = true
		}
	}
	var gotNames, wantNames []string
	for n := range res.PerExpert {
		gotNames = append(gotNames, n)
	}
	for n := range want {
		wantNames = append(wantNames, n)
	}
	sort.Strings(gotNames)
	sort.Strings(wantNames)
	if !cmp.Equal(gotNames, wantNames) {
		t.Fatalf("per_expert keys = %v, want %v", gotNames, wantNames)
	}

	total := 0
	for _, outs := range res.PerExpert {
		for _, out := range outs {
			if !strings.HasPrefix(out, "(noop) ") {
				t.Fatalf("unexpected noop output %q", out)
			}
		}
		total += len(outs)
	}
	if total != 2*DefaultExpertsPerToken {
		t.Fatalf("total outputs = %d", total)
	}
	if !strings.HasPrefix(res.Decision, "Top suggestions:\n1. From expert_") {
		t.Fatalf("decision = %q", res.Decision)
	}
}

func TestRun_EmptyPrompt(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	res, err := o.Run(context.Background(), "   ", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PerExpert) != 0 || res.Combined != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Decision != "Top suggestions:\n(no suggestion)" {
		t.Fatalf("decision = %q", res.Decision)
	}
	if res.DatasetSize != 1 {
		t.Fatalf("empty prompt should still be recorded, size = %d", res.DatasetSize)
	}
}

func TestRun_ScrubsBeforeDispatch(t *testing.T) {
	var seen []string
	var fullPrompts []string
	spy := expert.Slot{Name: "spy", Fn: func(tok string, ctx map[string]any) (string, error) {
		seen = append(seen, tok)
		fullPrompts = append(fullPrompts, ctx["full_prompt"].(string))
		return tok, nil
	}}
	slots := make([]expert.Slot, expert.PoolSize)
	for i := range slots {
		slots[i] = spy
	}
	o := newOrch(t, OrchestratorConfig{ExpertsPerToken: 1, Slots: slots})

	prompt := "mail bob@example.com see https://x.io password=hunter2"
	res, err := o.Run(context.Background(), prompt, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range append(seen, fullPrompts...) {
		if strings.Contains(s, "bob@example.com") || strings.Contains(s, "https://x.io") || strings.Contains(s, "hunter2") {
			t.Fatalf("sensitive text reached an expert: %q", s)
		}
	}
	if fullPrompts[0] != res.Scrubbed {
		t.Fatalf("full_prompt = %q, want %q", fullPrompts[0], res.Scrubbed)
	}
}

func TestRun_ContextIsolatedPerCall(t *testing.T) {
	mutator := expert.Slot{Name: "mutator", Fn: func(tok string, ctx map[string]any) (string, error) {
		if _, dirty := ctx["touched"]; dirty {
			return "", errors.New("saw another call's write")
		}
		ctx["touched"] = true
		ctx["user"] = "changed"
		return "ok", nil
	}}
	slots := make([]expert.Slot, expert.PoolSize)
	for i := range slots {
		slots[i] = mutator
	}
	o := newOrch(t, OrchestratorConfig{Slots: slots})

	runCtx := map[string]any{"user": "alice"}
	res, err := o.Run(context.Background(), "a b c d", runCtx, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range res.PerExpert["mutator"] {
		if out != "ok" {
			t.Fatalf("call observed shared context: %q", out)
		}
	}
	if runCtx["user"] != "alice" || len(runCtx) != 1 {
		t.Fatalf("caller context modified: %v", runCtx)
	}
}

func TestRun_ExpertFailuresBecomeStrings(t *testing.T) {
	failing := expert.Slot{Name: "failing", Fn: func(string, map[string]any) (string, error) {
		return "", errors.New("backend down")
	}}
	panicking := expert.Slot{Name: "panicking", Fn: func(string, map[string]any) (string, error) {
		panic("boom")
	}}
	slots := make([]expert.Slot, expert.PoolSize)
	for i := range slots {
		if i%2 == 0 {
			slots[i] = failing
		} else {
			slots[i] = panicking
		}
	}
	// K=2 routes every token to one even and one odd slot.
	o := newOrch(t, OrchestratorConfig{Slots: slots})
	res, err := o.Run(context.Background(), "one two three", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range res.PerExpert["failing"] {
		if out != "Error in expert failing: backend down" {
			t.Fatalf("failing output = %q", out)
		}
	}
	for _, out := range res.PerExpert["panicking"] {
		if out != "Error in expert panicking: boom" {
			t.Fatalf("panicking output = %q", out)
		}
	}
	if len(res.PerExpert["failing"]) != 3 || len(res.PerExpert["panicking"]) != 3 {
		t.Fatalf("per_expert = %v", res.PerExpert)
	}
}

func TestRun_AggregationTopThree(t *testing.T) {
	slots := make([]expert.Slot, expert.PoolSize)
	for i := range slots {
		slots[i] = echoSlot(fmt.Sprintf("s%d", i))
	}
	// Every token reaches every slot, so all counts tie and slot order decides.
	o := newOrch(t, OrchestratorConfig{ExpertsPerToken: expert.PoolSize, Slots: slots})

	res, err := o.Run(context.Background(), "t1 t2 t3 t4 t5 t6", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"s0:t2 s0:t3 s0:t4 s0:t5 s0:t6",
		"s1:t2 s1:t3 s1:t4 s1:t5 s1:t6",
		"s2:t2 s2:t3 s2:t4 s2:t5 s2:t6",
	}, "\n---\n")
	if res.Combined != want {
		t.Fatalf("combined =\n%s\nwant\n%s", res.Combined, want)
	}
	wantDecision := "Top suggestions:\n1. From s0: s0:t6\n2. From s1: s1:t6\n3. From s2: s2:t6"
	if res.Decision != wantDecision {
		t.Fatalf("decision = %q", res.Decision)
	}
}

func TestRankExperts_CountThenSlot(t *testing.T) {
	per := map[string][]string{
		"late":  {"a", "b", "c"},
		"early": {"a"},
		"mid":   {"a", "b", "c"},
		"last":  {"a", "b"},
	}
	slotOf := map[string]int{"early": 0, "mid": 2, "late": 5, "last": 7}
	got := rankExperts(per, slotOf, 3)
	if !cmp.Equal(got, []string{"mid", "late", "last"}) {
		t.Fatalf("rank = %v", got)
	}
}

func TestDefaultDecision_SkipsEmptyOutputs(t *testing.T) {
	per := map[string][]string{"a": {"first", ""}, "b": {"", ""}}
	got := defaultDecision(per, []string{"a", "b"})
	want := "Top suggestions:\n1. From a: first\n2. From b: (no suggestion)"
	if got != want {
		t.Fatalf("decision = %q", got)
	}
}

func TestRun_Summarizer(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{Slots: []expert.Slot{echoSlot("e")}})

	var payload SummaryPayload
	res, err := o.Run(context.Background(), "contact a@b.co now", nil, func(combined string, p SummaryPayload) (string, error) {
		payload = p
		return "SUMMARY", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != "SUMMARY" {
		t.Fatalf("decision = %q", res.Decision)
	}
	if payload.Prompt != "contact a@b.co now" || payload.Scrubbed != res.Scrubbed || payload.Combined != res.Combined {
		t.Fatalf("payload = %+v", payload)
	}
	if !cmp.Equal(payload.PerExpert, res.PerExpert) {
		t.Fatal("payload per_expert differs from result")
	}
}

func TestRun_SummarizerFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		fn   Summarizer
	}{
		{"error", func(string, SummaryPayload) (string, error) { return "ignored", errors.New("llm down") }},
		{"panic", func(string, SummaryPayload) (string, error) { panic("bad summarizer") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrch(t, OrchestratorConfig{})
			res, err := o.Run(context.Background(), "alpha beta", nil, tt.fn)
			if err != nil {
				t.Fatal(err)
			}
			if res.Decision != res.Combined || res.Combined == "" {
				t.Fatalf("decision %q should equal combined %q", res.Decision, res.Combined)
			}
		})
	}
}

func TestRun_PersistsToStore(t *testing.T) {
	store := &fakeStore{}
	o := newOrch(t, OrchestratorConfig{Store: store})

	res, err := o.Run(context.Background(), "email me at x@y.org", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("store has %d examples", len(store.saved))
	}
	ex := store.saved[0]
	if ex.Prompt != "email me at x@y.org" || ex.Scrubbed != res.Scrubbed || ex.CreatedAt.IsZero() {
		t.Fatalf("stored example = %+v", ex)
	}
	if !cmp.Equal(ex.ExpertOutputs, res.PerExpert) {
		t.Fatal("stored outputs differ from result")
	}
	if res.ExampleID != 1 {
		t.Fatalf("example id = %d", res.ExampleID)
	}
}

func TestRun_StoreFailureSwallowed(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{Store: &fakeStore{err: errors.New("disk full")}})
	res, err := o.Run(context.Background(), "still works", nil, nil)
	if err != nil {
		t.Fatalf("store failure leaked: %v", err)
	}
	if res.DatasetSize != 1 {
		t.Fatalf("in-memory dataset not updated: %d", res.DatasetSize)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Run(ctx, "never dispatched", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if o.DatasetSize() != 0 {
		t.Fatal("cancelled run was recorded")
	}
}

func TestLightPull(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	var got string
	light := func(text string, ctx map[string]any) (string, error) {
		got = text
		if len(ctx) != 0 {
			t.Errorf("light context should be empty, got %v", ctx)
		}
		return "answer", nil
	}

	out, err := o.LightPull(light, "what?")
	if err != nil || out != NoDatasetMessage {
		t.Fatalf("empty dataset: %q, %v", out, err)
	}
	if got != "" {
		t.Fatal("light fn called on empty dataset")
	}

	if _, err := o.Run(context.Background(), "ping me@here.com", nil, nil); err != nil {
		t.Fatal(err)
	}
	out, err = o.LightPull(light, "what?")
	if err != nil || out != "answer" {
		t.Fatalf("LightPull = %q, %v", out, err)
	}
	if got != "what? based on: ping [REDACTED_EMAIL]" {
		t.Fatalf("light input = %q", got)
	}
}

func TestLightPull_WindowAndErrors(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	for i := 0; i < 12; i++ {
		if _, err := o.Run(context.Background(), fmt.Sprintf("p%d", i), nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	var got string
	_, _ = o.LightPull(func(text string, _ map[string]any) (string, error) {
		got = text
		return "", nil
	}, "q")
	if got != "q based on: p2 p3 p4 p5 p6 p7 p8 p9 p10 p11" {
		t.Fatalf("light input = %q", got)
	}

	boom := errors.New("light model offline")
	if _, err := o.LightPull(func(string, map[string]any) (string, error) { return "", boom }, "q"); !errors.Is(err, boom) {
		t.Fatalf("expected light error, got %v", err)
	}
}

func TestRecent(t *testing.T) {
	o := newOrch(t, OrchestratorConfig{})
	for _, p := range []string{"a", "b", "c"} {
		_, _ = o.Run(context.Background(), p, nil, nil)
	}
	got := o.Recent(2)
	if len(got) != 2 || got[0].Prompt != "b" || got[1].Prompt != "c" {
		t.Fatalf("recent = %+v", got)
	}
	if len(o.Recent(10)) != 3 {
		t.Fatal("Recent should cap at dataset size")
	}
}

func TestRun_ResultEditsDoNotReachRecordedExample(t *testing.T) {
	store := &fakeStore{}
	o := newOrch(t, OrchestratorConfig{Slots: []expert.Slot{echoSlot("echo")}, ExpertsPerToken: expert.PoolSize, Store: store})

	res, err := o.Run(context.Background(), "alpha", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res.PerExpert["echo"][0] = "changed"
	res.PerExpert["extra"] = []string{"added"}

	got := o.Recent(1)[0].ExpertOutputs
	if diff := cmp.Diff([]string{"echo:alpha"}, got["echo"]); diff != "" {
		t.Errorf("recorded outputs changed (-want +got):\n%s", diff)
	}
	if _, ok := got["extra"]; ok {
		t.Error("key added to the result appeared in the recorded example")
	}
	if got := store.saved[0].ExpertOutputs["echo"][0]; got != "echo:alpha" {
		t.Errorf("stored output = %q", got)
	}
}

func TestRun_SummarizerEditsDoNotReachRecordedExample(t *testing.T) {
	store := &fakeStore{}
	o := newOrch(t, OrchestratorConfig{Slots: []expert.Slot{echoSlot("echo")}, ExpertsPerToken: expert.PoolSize, Store: store})

	summarize := func(_ string, p SummaryPayload) (string, error) {
		p.PerExpert["injected"] = []string{"x"}
		p.PerExpert["echo"][0] = "rewritten"
		return "done", nil
	}
	res, err := o.Run(context.Background(), "alpha", nil, summarize)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != "done" {
		t.Fatalf("decision = %q", res.Decision)
	}
	for name, outs := range map[string]map[string][]string{
		"result":    res.PerExpert,
		"in-memory": o.Recent(1)[0].ExpertOutputs,
		"stored":    store.saved[0].ExpertOutputs,
	} {
		if _, ok := outs["injected"]; ok {
			t.Errorf("%s: summarizer key leaked", name)
		}
		if outs["echo"][0] != "echo:alpha" {
			t.Errorf("%s: echo output = %q", name, outs["echo"][0])
		}
	}
}
