package expert

import "context"

// Analyzer is implemented by live expert objects that can produce a task analysis.
type Analyzer interface {
	AnalyzeTask(ctx context.Context, task string, runCtx map[string]any) (map[string]any, error)
}

// Host resolves live expert objects by id. Objects may or may not implement Analyzer.
type Host interface {
	LookupExpert(id string) (any, bool)
}

// HostMap is a Host backed by a plain map.
type HostMap map[string]any

// LookupExpert implements Host.
func (m HostMap) LookupExpert(id string) (any, bool) {
	v, ok := m[id]
	return v, ok
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, task string, runCtx map[string]any) (map[string]any, error)

// AnalyzeTask implements Analyzer.
func (f AnalyzerFunc) AnalyzeTask(ctx context.Context, task string, runCtx map[string]any) (map[string]any, error) {
	return f(ctx, task, runCtx)
}
