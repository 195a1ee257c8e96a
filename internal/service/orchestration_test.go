package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	moeotel "github.com/Strob0t/moecore/internal/adapter/otel"
	"github.com/Strob0t/moecore/internal/adapter/ws"
	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/pool"
	"github.com/Strob0t/moecore/internal/port/broadcast"
	"github.com/Strob0t/moecore/internal/port/messagequeue"
)

func newEngine(t *testing.T, store *fakeStore) (*OrchestrationService, *recordingHub, *recordingQueue) {
	t.Helper()
	cfg := OrchestratorConfig{Slots: []expert.Slot{echoSlot("alpha"), echoSlot("beta")}}
	var svc *OrchestrationService
	if store != nil {
		cfg.Store = store
		svc = NewOrchestrationService(newOrch(t, cfg), store, pool.New(1))
	} else {
		svc = NewOrchestrationService(newOrch(t, cfg), nil, pool.New(1))
	}
	hub := &recordingHub{}
	q := &recordingQueue{}
	svc.SetBroadcaster(hub)
	svc.SetQueue(q)
	return svc, hub, q
}

func TestOrchestrationRun_PublishesEvents(t *testing.T) {
	store := &fakeStore{}
	svc, hub, q := newEngine(t, store)

	rep, err := svc.Run(context.Background(), "mail me at a@b.io please", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.RunID == "" || rep.ExampleID != 1 || rep.DatasetSize != 1 {
		t.Fatalf("report = %+v", rep)
	}

	events := hub.of(broadcast.EventRunCompleted)
	if len(events) != 1 {
		t.Fatalf("run events = %d", len(events))
	}
	ev := events[0].(ws.RunCompletedEvent)
	if ev.RunID != rep.RunID || ev.Decision != rep.Decision || ev.DatasetSize != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if strings.Contains(ev.Scrubbed, "a@b.io") {
		t.Fatalf("event leaks unscrubbed text: %q", ev.Scrubbed)
	}

	msgs := q.on(messagequeue.SubjectInteractionRecorded)
	if len(msgs) != 1 {
		t.Fatalf("published = %d", len(msgs))
	}
	if err := messagequeue.Validate(messagequeue.SubjectInteractionRecorded, msgs[0]); err != nil {
		t.Fatal(err)
	}
	var payload messagequeue.InteractionRecordedPayload
	if err := json.Unmarshal(msgs[0], &payload); err != nil {
		t.Fatal(err)
	}
	if payload.RunID != rep.RunID || payload.ExampleID != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	if diff := cmp.Diff(rep.PerExpert, payload.ExpertOutputs); diff != "" {
		t.Errorf("expert outputs (-report +payload):\n%s", diff)
	}
}

func TestOrchestrationRun_ReportJSONFlattensResult(t *testing.T) {
	svc, _, _ := newEngine(t, nil)
	rep, err := svc.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_id", "scrubbed", "per_expert", "combined", "decision", "dataset_size"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing %q in %s", key, data)
		}
	}
}

func TestOrchestrationRun_WithMetricsAndFailingStore(t *testing.T) {
	m, err := moeotel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeStore{err: errors.New("disk full")}
	svc, _, q := newEngine(t, store)
	svc.SetMetrics(m)
	_ = svc.orch.RegisterSlot(0, expert.Slot{Name: "broken", Fn: func(string, map[string]any) (string, error) {
		return "", errors.New("boom")
	}})

	rep, err := svc.Run(context.Background(), "one two three four", nil)
	if err != nil {
		t.Fatalf("run should survive store and expert failures: %v", err)
	}
	if rep.ExampleID != 0 {
		t.Fatalf("example id = %d", rep.ExampleID)
	}
	if len(q.on(messagequeue.SubjectInteractionRecorded)) != 1 {
		t.Fatal("interaction event not published")
	}
}

func TestOrchestrationRun_CancelledContext(t *testing.T) {
	svc, hub, q := newEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx, "hello world", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(hub.of(broadcast.EventRunCompleted)) != 0 || len(q.on(messagequeue.SubjectInteractionRecorded)) != 0 {
		t.Fatal("aborted run emitted events")
	}
}

func TestOrchestrationRun_UsesSummarizer(t *testing.T) {
	svc, _, _ := newEngine(t, nil)
	svc.SetSummarizer(func(combined string, _ SummaryPayload) (string, error) {
		return "summary of " + combined, nil
	})
	rep, err := svc.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Decision != "summary of "+rep.Combined {
		t.Fatalf("decision = %q", rep.Decision)
	}
}

func TestOrchestrationLightPull(t *testing.T) {
	svc, _, _ := newEngine(t, nil)
	ctx := context.Background()

	if _, err := svc.LightPull(ctx, "q"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	svc.SetLightPull(func(text string, _ map[string]any) (string, error) { return "light:" + text, nil })
	got, err := svc.LightPull(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}
	if got != NoDatasetMessage {
		t.Fatalf("got %q", got)
	}

	if _, err := svc.Run(ctx, "first run", nil); err != nil {
		t.Fatal(err)
	}
	got, err = svc.LightPull(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}
	if got != "light:q based on: first run" {
		t.Fatalf("got %q", got)
	}
}

func TestOrchestrationRouteTokenAndSlots(t *testing.T) {
	svc, _, _ := newEngine(t, nil)
	ctx := context.Background()

	names, err := svc.Slots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "beta", "expert_2", "expert_3", "expert_4", "expert_5", "expert_6", "expert_7"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("slots (-want +got):\n%s", diff)
	}

	routes, err := svc.RouteToken(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	idx := svc.orch.RouteToken("hello")
	if len(routes) != len(idx) {
		t.Fatalf("routes = %+v", routes)
	}
	for i, r := range routes {
		if r.Index != idx[i] || r.Name != want[idx[i]] {
			t.Errorf("route %d = %+v", i, r)
		}
	}
}

func TestOrchestrationExamples(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		svc, _, _ := newEngine(t, nil)
		for _, p := range []string{"one", "two", "three"} {
			if _, err := svc.Run(ctx, p, nil); err != nil {
				t.Fatal(err)
			}
		}
		got, err := svc.Examples(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Prompt != "three" || got[1].Prompt != "two" {
			t.Fatalf("examples = %+v", got)
		}
		all, err := svc.Examples(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Fatalf("default limit returned %d", len(all))
		}
		n, err := svc.DatasetSize(ctx)
		if err != nil || n != 3 {
			t.Fatalf("dataset size = %d, %v", n, err)
		}
	})

	t.Run("store", func(t *testing.T) {
		store := &fakeStore{}
		svc, _, _ := newEngine(t, store)
		for _, p := range []string{"one", "two"} {
			if _, err := svc.Run(ctx, p, nil); err != nil {
				t.Fatal(err)
			}
		}
		got, err := svc.Examples(ctx, MaxExampleLimit+100)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
			t.Fatalf("examples = %+v", got)
		}
	})
}
