package expert

// Selection is one routed expert together with its final relevance score.
type Selection struct {
	ExpertID   string      `json:"expert_id"`
	Descriptor *Descriptor `json:"descriptor"`
	Score      float64     `json:"relevance_score"`
	Reasoning  string      `json:"reasoning"`
}

// RouteContext carries optional hints that bias routing.
type RouteContext struct {
	// Domain restricts candidates to one domain when it names a known label.
	Domain           string           `json:"domain,omitempty" yaml:"domain,omitempty"`
	PreferredExperts []string         `json:"preferred_experts,omitempty" yaml:"preferred_experts,omitempty"`
	PrimaryDomain    string           `json:"primary_domain,omitempty" yaml:"primary_domain,omitempty"`
	Complexity       string           `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	UserPreferences  *UserPreferences `json:"user_preferences,omitempty" yaml:"user_preferences,omitempty"`
}

// UserPreferences are per-user routing adjustments.
type UserPreferences struct {
	FavoriteExperts []string `json:"favorite_experts,omitempty" yaml:"favorite_experts,omitempty"`
	DisabledDomains []string `json:"disabled_domains,omitempty" yaml:"disabled_domains,omitempty"`
}

// Clone returns a deep copy; nil stays nil.
func (c *RouteContext) Clone() *RouteContext {
	if c == nil {
		return nil
	}
	out := *c
	out.PreferredExperts = append([]string(nil), c.PreferredExperts...)
	if c.UserPreferences != nil {
		p := UserPreferences{
			FavoriteExperts: append([]string(nil), c.UserPreferences.FavoriteExperts...),
			DisabledDomains: append([]string(nil), c.UserPreferences.DisabledDomains...),
		}
		out.UserPreferences = &p
	}
	return &out
}

// Summary is the compact view of a selection exposed to callers.
type Summary struct {
	ExpertID  string  `json:"expert_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"relevance_score"`
	Reasoning string  `json:"reasoning"`
}

// Summarize converts selections into summaries.
func Summarize(sels []Selection) []Summary {
	out := make([]Summary, 0, len(sels))
	for _, s := range sels {
		name := s.ExpertID
		if s.Descriptor != nil {
			name = s.Descriptor.Name
		}
		out = append(out, Summary{ExpertID: s.ExpertID, Name: name, Score: s.Score, Reasoning: s.Reasoning})
	}
	return out
}
