package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// DefaultMaxExperts is the number of selections Route returns when unconfigured.
const DefaultMaxExperts = 3

// History bounds: once the log exceeds historyCap entries it is cut back to
// the most recent historyKeep.
const (
	historyCap  = 100
	historyKeep = 50
)

// Context modifier weights.
const (
	preferredBoost = 0.2
	primaryBoost   = 0.15
	favoriteBoost  = 0.1
)

// QueryRecord captures one Route call.
type QueryRecord struct {
	Query    string               `json:"query"`
	Selected []string             `json:"selected_experts"`
	Scores   map[string]float64   `json:"scores"`
	Context  *expert.RouteContext `json:"context,omitempty"`
	At       time.Time            `json:"at"`
}

// RouterService ranks registry descriptors against free-text queries.
// A RouterService is not safe for concurrent use; callers that share one
// serialize access (see pool.Pool).
type RouterService struct {
	registry   *ExpertRegistry
	maxExperts int
	history    []QueryRecord
	now        func() time.Time
}

// NewRouterService creates a router over reg. maxExperts < 1 selects DefaultMaxExperts.
func NewRouterService(reg *ExpertRegistry, maxExperts int) *RouterService {
	if maxExperts < 1 {
		maxExperts = DefaultMaxExperts
	}
	return &RouterService{registry: reg, maxExperts: maxExperts, now: time.Now}
}

// Registry returns the registry the router reads from.
func (r *RouterService) Registry() *ExpertRegistry { return r.registry }

// MaxExperts returns the selection limit.
func (r *RouterService) MaxExperts() int { return r.maxExperts }

// Route scores candidates for query, applies context modifiers, drops
// non-positive scores and returns at most MaxExperts selections, best first.
func (r *RouterService) Route(ctx context.Context, query string, rc *expert.RouteContext) []expert.Selection {
	slog.InfoContext(ctx, "routing query", "query", truncate(query, 50))

	var selections []expert.Selection
	for _, d := range r.candidates(ctx, rc) {
		score := applyModifiers(d.MatchQuery(query), d, rc)
		if score <= 0 {
			continue
		}
		selections = append(selections, expert.Selection{
			ExpertID:   d.ID,
			Descriptor: d,
			Score:      score,
			Reasoning:  reasoning(d, score, query),
		})
	}

	sort.SliceStable(selections, func(i, j int) bool { return selections[i].Score > selections[j].Score })
	if len(selections) > r.maxExperts {
		selections = selections[:r.maxExperts]
	}

	for _, s := range selections {
		slog.DebugContext(ctx, "expert selected", "expert_id", s.ExpertID, "score", fmt.Sprintf("%.2f", s.Score))
	}
	r.record(query, selections, rc)
	return selections
}

// candidates returns the enabled descriptors of the hinted domain, or every
// enabled descriptor when no valid hint is given.
func (r *RouterService) candidates(ctx context.Context, rc *expert.RouteContext) []*expert.Descriptor {
	if rc == nil || rc.Domain == "" {
		return r.registry.Enabled()
	}
	dom, err := expert.ParseDomain(rc.Domain)
	if err != nil {
		slog.WarnContext(ctx, "ignoring domain hint", "domain", rc.Domain, "error", err)
		return r.registry.Enabled()
	}
	all := r.registry.ByDomain(dom)
	out := all[:0]
	for _, d := range all {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

func applyModifiers(score float64, d *expert.Descriptor, rc *expert.RouteContext) float64 {
	if rc == nil {
		return score
	}
	if contains(rc.PreferredExperts, d.ID) {
		score = min(score+preferredBoost, 1.0)
	}
	if rc.PrimaryDomain != "" && rc.PrimaryDomain == string(d.Domain) {
		score = min(score+primaryBoost, 1.0)
	}
	if p := rc.UserPreferences; p != nil {
		if contains(p.FavoriteExperts, d.ID) {
			score = min(score+favoriteBoost, 1.0)
		}
		if contains(p.DisabledDomains, string(d.Domain)) {
			score = 0
		}
	}
	return score
}

// reasoning explains a score. It is advisory text for humans.
func reasoning(d *expert.Descriptor, score float64, query string) string {
	var reasons []string
	switch {
	case score >= 0.7:
		reasons = append(reasons, "High relevance match")
	case score >= 0.4:
		reasons = append(reasons, "Moderate relevance match")
	case score > 0:
		reasons = append(reasons, "Low relevance match")
	}
	if kws := d.MatchedKeywords(query); len(kws) > 0 {
		if len(kws) > 3 {
			kws = kws[:3]
		}
		reasons = append(reasons, "Matches keywords: "+strings.Join(kws, ", "))
	}
	if d.ExpertiseMatches(query) {
		reasons = append(reasons, "Expertise in "+d.Expertise)
	}
	if len(reasons) == 0 {
		return "Generic match"
	}
	return strings.Join(reasons, "; ")
}

func (r *RouterService) record(query string, sels []expert.Selection, rc *expert.RouteContext) {
	rec := QueryRecord{
		Query:    query,
		Selected: make([]string, 0, len(sels)),
		Scores:   make(map[string]float64, len(sels)),
		Context:  rc.Clone(),
		At:       r.now(),
	}
	for _, s := range sels {
		rec.Selected = append(rec.Selected, s.ExpertID)
		rec.Scores[s.ExpertID] = s.Score
	}
	r.history = append(r.history, rec)
	if len(r.history) > historyCap {
		kept := make([]QueryRecord, historyKeep)
		copy(kept, r.history[len(r.history)-historyKeep:])
		r.history = kept
	}
}

// History returns a copy of the bounded query log, oldest first.
func (r *RouterService) History() []QueryRecord {
	out := make([]QueryRecord, len(r.history))
	copy(out, r.history)
	return out
}

// ByDomain returns the enabled experts of dom with a fixed score of 1.0, unranked.
func (r *RouterService) ByDomain(dom expert.Domain) []expert.Selection {
	var out []expert.Selection
	for _, d := range r.registry.ByDomain(dom) {
		if !d.Enabled {
			continue
		}
		out = append(out, expert.Selection{
			ExpertID:   d.ID,
			Descriptor: d,
			Score:      1.0,
			Reasoning:  "Domain expert: " + string(dom),
		})
	}
	return out
}

// ByID selects one expert directly. It returns false when id is unknown or disabled.
func (r *RouterService) ByID(id string) (expert.Selection, bool) {
	d := r.registry.Get(id)
	if d == nil || !d.Enabled {
		return expert.Selection{}, false
	}
	return expert.Selection{ExpertID: id, Descriptor: d, Score: 1.0, Reasoning: "Direct selection"}, true
}

// ExpertUsage counts how often an expert was selected.
type ExpertUsage struct {
	ExpertID string `json:"expert_id"`
	Count    int    `json:"count"`
}

// RouterStats summarizes the query history.
type RouterStats struct {
	TotalQueries       int           `json:"total_queries"`
	MostUsedExperts    []ExpertUsage `json:"most_used_experts"`
	AvgExpertsPerQuery float64       `json:"average_experts_per_query"`
	RegisteredExperts  int           `json:"total_registered_experts"`
	EnabledExperts     int           `json:"enabled_experts"`
}

// Statistics reports usage over the retained history. The top list holds
// at most five experts ordered by count, ties broken by id.
func (r *RouterService) Statistics() RouterStats {
	stats := RouterStats{
		TotalQueries:      len(r.history),
		MostUsedExperts:   []ExpertUsage{},
		RegisteredExperts: r.registry.Len(),
		EnabledExperts:    r.registry.EnabledCount(),
	}
	if stats.TotalQueries == 0 {
		return stats
	}

	counts := make(map[string]int)
	total := 0
	for _, rec := range r.history {
		for _, id := range rec.Selected {
			counts[id]++
			total++
		}
	}
	for id, n := range counts {
		stats.MostUsedExperts = append(stats.MostUsedExperts, ExpertUsage{ExpertID: id, Count: n})
	}
	sort.Slice(stats.MostUsedExperts, func(i, j int) bool {
		a, b := stats.MostUsedExperts[i], stats.MostUsedExperts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.ExpertID < b.ExpertID
	})
	if len(stats.MostUsedExperts) > 5 {
		stats.MostUsedExperts = stats.MostUsedExperts[:5]
	}
	stats.AvgExpertsPerQuery = math.Round(float64(total)/float64(stats.TotalQueries)*100) / 100
	return stats
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
