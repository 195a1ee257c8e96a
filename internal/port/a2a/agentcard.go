package a2a

import (
	"fmt"
	"strings"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// Built-in skill ids. Any other skill id names an expert.
const (
	SkillQuery       = "query"
	SkillOrchestrate = "orchestrate"
)

var textModes = []string{"text"}

// BuildAgentCard returns the card for this service. Each enabled expert is
// advertised as a skill after the two built-in ones.
func BuildAgentCard(baseURL, version string, experts []*expert.Descriptor) AgentCard {
	skills := []Skill{
		{
			ID:          SkillQuery,
			Name:        "Expert Query",
			Description: "Route a query to the most relevant experts and collect their analyses",
			InputModes:  textModes,
			OutputModes: []string{"application/json"},
		},
		{
			ID:          SkillOrchestrate,
			Name:        "Orchestrated Decision",
			Description: "Dispatch a prompt token by token across the expert pool and combine the outputs",
			InputModes:  textModes,
			OutputModes: []string{"application/json"},
		},
	}
	for _, d := range experts {
		if !d.Enabled {
			continue
		}
		desc := d.Expertise
		if d.Specialization != "" {
			desc = fmt.Sprintf("%s (%s)", d.Expertise, d.Specialization)
		}
		skills = append(skills, Skill{
			ID:          d.ID,
			Name:        d.Name,
			Description: strings.TrimSpace(desc),
			Tags:        append([]string{string(d.Domain)}, d.Keywords...),
			InputModes:  textModes,
			OutputModes: []string{"application/json"},
		})
	}

	return AgentCard{
		Name:        "moecore",
		Description: "Mixture-of-experts routing and orchestration engine",
		URL:         baseURL,
		Version:     version,
		Skills:      skills,
	}
}
