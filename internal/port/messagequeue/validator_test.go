package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidTaskRun(t *testing.T) {
	data := []byte(`{"task_id":"t1","prompt":"optimize the mesh","context":{"user":"u1"}}`)
	if err := Validate(SubjectTaskRun, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTaskRunRequiresPrompt(t *testing.T) {
	err := Validate(SubjectTaskRun, []byte(`{"task_id":"t1"}`))
	if err == nil || !strings.Contains(err.Error(), "prompt is required") {
		t.Fatalf("expected prompt error, got %v", err)
	}
}

func TestValidateValidTaskResult(t *testing.T) {
	data := []byte(`{"task_id":"t1","worker_id":"w","scrubbed":"x","combined":"c","decision":"d","per_expert":{"expert_0":["a"]},"dataset_size":1}`)
	if err := Validate(SubjectTaskResult, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidInteractionRecorded(t *testing.T) {
	data := []byte(`{"run_id":"r1","example_id":3,"scrubbed":"s","expert_outputs":{},"decision":"d","dataset_size":3}`)
	if err := Validate(SubjectInteractionRecorded, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("unknown.subject", []byte(`{"foo":"bar"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectTaskRun, []byte(`{not valid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	err := Validate(SubjectTaskResult, []byte(`"just a string"`))
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected 'schema validation failed' in error, got: %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	err := Validate(SubjectInteractionRecorded, []byte(`{"example_id":"not-a-number"}`))
	if err == nil {
		t.Fatal("expected type mismatch to fail validation")
	}
}
