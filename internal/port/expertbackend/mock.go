package expertbackend

import "github.com/Strob0t/moecore/internal/domain/expert"

// MockBackend is the registry name of Mock.
const MockBackend = "mock"

// Mock is a deterministic backend for local runs and tests. It answers
// "<prefix>(<token>)"; the prefix defaults to "expert".
func Mock(cfg map[string]string) (expert.Callable, error) {
	prefix := cfg["prefix"]
	if prefix == "" {
		prefix = "expert"
	}
	return expert.FromUnary(func(token string) string {
		return prefix + "(" + token + ")"
	}), nil
}
