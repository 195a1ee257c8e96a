package messagequeue

import "github.com/Strob0t/moecore/internal/domain/expert"

// TaskRunPayload is the schema for moe.tasks.run messages.
type TaskRunPayload struct {
	TaskID  string         `json:"task_id"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// TaskResultPayload is the schema for moe.tasks.result messages.
type TaskResultPayload struct {
	TaskID      string              `json:"task_id"`
	WorkerID    string              `json:"worker_id"`
	Scrubbed    string              `json:"scrubbed"`
	Combined    string              `json:"combined"`
	Decision    string              `json:"decision"`
	PerExpert   map[string][]string `json:"per_expert"`
	DatasetSize int                 `json:"dataset_size"`
	Error       string              `json:"error,omitempty"`
}

// InteractionRecordedPayload is the schema for moe.interactions.recorded messages.
type InteractionRecordedPayload struct {
	RunID         string              `json:"run_id"`
	ExampleID     int64               `json:"example_id"`
	Scrubbed      string              `json:"scrubbed"`
	ExpertOutputs map[string][]string `json:"expert_outputs"`
	Decision      string              `json:"decision"`
	DatasetSize   int                 `json:"dataset_size"`
}

// RouteCompletedPayload is the schema for moe.routes.completed messages.
type RouteCompletedPayload struct {
	Query   string           `json:"query"`
	Experts []expert.Summary `json:"experts"`
}
