package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch subject {
	case SubjectTaskRun:
		p := &TaskRunPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.Prompt == "" {
			return fmt.Errorf("schema validation failed for %s: prompt is required", subject)
		}
		return nil
	case SubjectTaskResult:
		target = &TaskResultPayload{}
	case SubjectInteractionRecorded:
		target = &InteractionRecordedPayload{}
	case SubjectRouteCompleted:
		target = &RouteCompletedPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
