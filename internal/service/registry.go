package service

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// ExpertRegistry holds expert descriptors keyed by id together with a
// per-domain index. Iteration follows registration order.
type ExpertRegistry struct {
	mu      sync.RWMutex
	experts map[string]*expert.Descriptor
	order   []string
	domains map[expert.Domain][]string
}

// DefaultSearchThreshold is the minimum score Search callers use when they have no preference.
const DefaultSearchThreshold = 0.1

// SearchResult is one descriptor scored against a query.
type SearchResult struct {
	Descriptor *expert.Descriptor `json:"descriptor"`
	Score      float64            `json:"score"`
}

// NewExpertRegistry returns an empty registry.
func NewExpertRegistry() *ExpertRegistry {
	return &ExpertRegistry{
		experts: make(map[string]*expert.Descriptor),
		domains: make(map[expert.Domain][]string),
	}
}

// NewDefaultRegistry returns a registry populated with expert.DefaultCatalog.
func NewDefaultRegistry() *ExpertRegistry {
	r := NewExpertRegistry()
	for _, d := range expert.DefaultCatalog() {
		if err := r.Register(d); err != nil {
			// The built-in catalogue is static; failing here is a programming error.
			panic(err)
		}
	}
	return r
}

// Register inserts d, replacing any descriptor with the same id. A changed
// domain moves the id between index buckets.
func (r *ExpertRegistry) Register(d expert.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c := d.Clone()
	c.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(c)
	return nil
}

// RegisterAll validates every descriptor before registering any of them.
func (r *ExpertRegistry) RegisterAll(ds []expert.Descriptor) error {
	_, err := r.Replace(nil, ds)
	return err
}

// Replace registers ds and removes every id in stale that ds does not
// contain, in one step. Nothing changes when any descriptor is invalid.
// It returns the ids that were removed.
func (r *ExpertRegistry) Replace(stale []string, ds []expert.Descriptor) ([]string, error) {
	prepared := make([]*expert.Descriptor, 0, len(ds))
	keep := make(map[string]bool, len(ds))
	for i := range ds {
		if err := ds[i].Validate(); err != nil {
			return nil, err
		}
		c := ds[i].Clone()
		c.Normalize()
		prepared = append(prepared, c)
		keep[c.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for _, id := range stale {
		if !keep[id] && r.drop(id) {
			removed = append(removed, id)
		}
	}
	for _, c := range prepared {
		r.put(c)
	}
	return removed, nil
}

// put must be called with r.mu held.
func (r *ExpertRegistry) put(d *expert.Descriptor) {
	if old, ok := r.experts[d.ID]; ok {
		if old.Domain != d.Domain {
			r.removeFromDomain(old.Domain, d.ID)
			r.domains[d.Domain] = append(r.domains[d.Domain], d.ID)
		}
	} else {
		r.order = append(r.order, d.ID)
		r.domains[d.Domain] = append(r.domains[d.Domain], d.ID)
	}
	r.experts[d.ID] = d
	slog.Debug("expert registered", "expert_id", d.ID, "domain", d.Domain)
}

// Unregister removes id from the registry and the domain index.
// It reports whether the id was present.
func (r *ExpertRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drop(id)
}

// drop must be called with r.mu held.
func (r *ExpertRegistry) drop(id string) bool {
	d, ok := r.experts[id]
	if !ok {
		return false
	}
	delete(r.experts, id)
	r.removeFromDomain(d.Domain, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// removeFromDomain must be called with r.mu held.
func (r *ExpertRegistry) removeFromDomain(dom expert.Domain, id string) {
	ids := r.domains[dom]
	for i, eid := range ids {
		if eid == id {
			r.domains[dom] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(r.domains[dom]) == 0 {
		delete(r.domains, dom)
	}
}

// Get returns a copy of the descriptor, or nil when id is unknown.
func (r *ExpertRegistry) Get(id string) *expert.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.experts[id].Clone()
}

// SetEnabled toggles an expert. It reports false for an unknown id.
func (r *ExpertRegistry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.experts[id]
	if !ok {
		return false
	}
	d.Enabled = enabled
	return true
}

// ByDomain returns every descriptor of dom, enabled or not, in index order.
func (r *ExpertRegistry) ByDomain(dom expert.Domain) []*expert.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.domains[dom]
	out := make([]*expert.Descriptor, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.experts[id]; ok {
			out = append(out, d.Clone())
		}
	}
	return out
}

// DomainIDs returns the ids indexed under dom.
func (r *ExpertRegistry) DomainIDs(dom expert.Domain) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.domains[dom]...)
}

// Enabled returns the enabled descriptors in registration order.
func (r *ExpertRegistry) Enabled() []*expert.Descriptor {
	return r.filter(func(d *expert.Descriptor) bool { return d.Enabled })
}

// All returns every descriptor in registration order.
func (r *ExpertRegistry) All() []*expert.Descriptor {
	return r.filter(func(*expert.Descriptor) bool { return true })
}

func (r *ExpertRegistry) filter(keep func(*expert.Descriptor) bool) []*expert.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*expert.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		if d := r.experts[id]; keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Len returns the number of registered descriptors.
func (r *ExpertRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.experts)
}

// EnabledCount returns the number of enabled descriptors.
func (r *ExpertRegistry) EnabledCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.experts {
		if d.Enabled {
			n++
		}
	}
	return n
}

// Search scores enabled descriptors against query and returns those at or
// above threshold, highest first. Equal scores keep registration order.
func (r *ExpertRegistry) Search(query string, threshold float64) []SearchResult {
	var out []SearchResult
	for _, d := range r.Enabled() {
		if score := d.MatchQuery(query); score >= threshold {
			out = append(out, SearchResult{Descriptor: d, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
