// Package dataset defines the interaction examples recorded after each orchestrator run.
package dataset

import (
	"strings"
	"time"
)

// Example is one recorded orchestrator interaction. It is never modified after being written.
type Example struct {
	ID            int64               `json:"id"`
	Prompt        string              `json:"prompt"`
	Scrubbed      string              `json:"scrubbed"`
	ExpertOutputs map[string][]string `json:"expert_outputs"`
	CreatedAt     time.Time           `json:"ts"`
}

// Clone returns a deep copy.
func (e *Example) Clone() *Example {
	c := *e
	c.ExpertOutputs = CloneOutputs(e.ExpertOutputs)
	return &c
}

// CloneOutputs returns a deep copy of a per-expert output map.
func CloneOutputs(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// JoinScrubbed concatenates the scrubbed prompts of examples with single spaces.
func JoinScrubbed(examples []*Example) string {
	parts := make([]string, 0, len(examples))
	for _, e := range examples {
		parts = append(parts, e.Scrubbed)
	}
	return strings.Join(parts, " ")
}
