package expert

import (
	"fmt"
	"strings"

	"github.com/Strob0t/moecore/internal/domain"
)

// DefaultVersion is assigned to descriptors that do not declare one.
const DefaultVersion = "1.0.0"

// Scoring weights for MatchQuery.
const (
	keywordWeight        = 0.2
	keywordCap           = 0.6
	expertiseWeight      = 0.3
	specializationWeight = 0.2
	domainWeight         = 0.1
)

// Descriptor is the routing metadata of one expert.
type Descriptor struct {
	ID             string   `json:"expert_id" yaml:"expert_id"`
	Name           string   `json:"name" yaml:"name"`
	Domain         Domain   `json:"domain" yaml:"domain"`
	Expertise      string   `json:"expertise" yaml:"expertise"`
	Specialization string   `json:"specialization" yaml:"specialization"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Version        string   `json:"version" yaml:"version"`
	Description    string   `json:"description" yaml:"description"`
	FragmentsPath  *string  `json:"fragments_path,omitempty" yaml:"fragments_path,omitempty"`
	ModelPath      *string  `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	Dependencies   []string `json:"dependencies" yaml:"dependencies"`
}

// Validate checks required fields and the domain label.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: expert_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required for %s", domain.ErrValidation, d.ID)
	}
	if !d.Domain.Valid() {
		return fmt.Errorf("%w: %w: %q", domain.ErrValidation, ErrUnknownDomain, d.Domain)
	}
	return nil
}

// Normalize fills defaults and deduplicates keywords, keeping first occurrence order.
func (d *Descriptor) Normalize() {
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	seen := make(map[string]struct{}, len(d.Keywords))
	kept := make([]string, 0, len(d.Keywords))
	for _, kw := range d.Keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, kw)
	}
	d.Keywords = kept
	if d.Dependencies == nil {
		d.Dependencies = []string{}
	}
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Keywords = append([]string(nil), d.Keywords...)
	c.Dependencies = append([]string(nil), d.Dependencies...)
	if d.FragmentsPath != nil {
		p := *d.FragmentsPath
		c.FragmentsPath = &p
	}
	if d.ModelPath != nil {
		p := *d.ModelPath
		c.ModelPath = &p
	}
	return &c
}

// MatchedKeywords returns the keywords found in query, case-insensitively, in declaration order.
func (d *Descriptor) MatchedKeywords(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, kw := range d.Keywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			out = append(out, kw)
		}
	}
	return out
}

// ExpertiseMatches reports whether the expertise phrase occurs in query.
func (d *Descriptor) ExpertiseMatches(query string) bool {
	return containsFold(query, d.Expertise)
}

// MatchQuery scores query relevance in [0,1]:
// 0.2 per matching keyword (max 0.6), 0.3 for expertise, 0.2 for
// specialization and 0.1 for the domain phrase.
func (d *Descriptor) MatchQuery(query string) float64 {
	var score float64
	if n := len(d.MatchedKeywords(query)); n > 0 {
		score += min(float64(n)*keywordWeight, keywordCap)
	}
	if d.ExpertiseMatches(query) {
		score += expertiseWeight
	}
	if containsFold(query, d.Specialization) {
		score += specializationWeight
	}
	if containsFold(query, d.Domain.Phrase()) {
		score += domainWeight
	}
	return min(score, 1.0)
}

// containsFold treats an empty needle as never matching.
func containsFold(haystack, needle string) bool {
	if strings.TrimSpace(needle) == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
