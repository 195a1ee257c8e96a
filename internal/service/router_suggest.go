package service

import (
	"context"
	"strings"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

type hintFamily struct {
	label string
	words []string
}

// Checked in order; the first family with any hit wins.
var domainHints = []hintFamily{
	{string(expert.DomainMusicTheory), []string{"music", "audio", "sound", "melody", "harmony"}},
	{string(expert.DomainThreeDPrint), []string{"3d print", "mesh", "model", "stl", "gcode"}},
	{string(expert.DomainUIUXDesign), []string{"ui", "ux", "design", "interface", "user experience"}},
	{string(expert.DomainEngineering), []string{"engineering", "physics", "mechanical", "materials"}},
	{string(expert.DomainMathematics), []string{"math", "algorithm", "calculation", "optimization"}},
	{string(expert.DomainSecurity), []string{"security", "vulnerability", "safe", "protection"}},
	{string(expert.DomainPerformance), []string{"performance", "speed", "optimize", "efficient"}},
}

var complexityHints = []hintFamily{
	{"high", []string{"complex", "advanced", "sophisticated", "intricate"}},
	{"medium", []string{"moderate", "standard", "typical"}},
	{"low", []string{"simple", "basic", "straightforward"}},
}

// AnalyzeTask derives routing hints from a task description: a primary
// domain and a complexity level, either of which may be empty.
func AnalyzeTask(description string) *expert.RouteContext {
	lower := strings.ToLower(description)
	rc := &expert.RouteContext{}
	rc.PrimaryDomain = firstHit(lower, domainHints)
	rc.Complexity = firstHit(lower, complexityHints)
	return rc
}

func firstHit(lower string, families []hintFamily) string {
	for _, f := range families {
		for _, w := range f.words {
			if strings.Contains(lower, w) {
				return f.label
			}
		}
	}
	return ""
}

// SuggestForTask routes description using the hints AnalyzeTask extracts from it.
func (r *RouterService) SuggestForTask(ctx context.Context, description string) []expert.Selection {
	return r.Route(ctx, description, AnalyzeTask(description))
}
