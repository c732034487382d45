package scraper

import (
	"github.com/rotisserie/eris"

	"github.com/ummahlocal/scout-cli/internal/browser"
	"github.com/ummahlocal/scout-cli/internal/model"
)

// Registry maps source names to their adapters.
type Registry struct {
	adapters map[model.Source]Adapter
	order    []model.Source // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[model.Source]Adapter),
	}
}

// DefaultRegistry registers every built-in adapter. The browser pool may
// be nil when only static sources will run.
func DefaultRegistry(pool *browser.Pool) *Registry {
	r := NewRegistry()
	r.Register(NewZabihahScraper())
	r.Register(NewHalalJointsScraper())
	r.Register(NewYelpScraper(pool))
	r.Register(NewGmapsScraper(pool))
	return r
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	r.adapters[name] = a
	r.order = append(r.order, name)
}

// Get returns an adapter by source name.
func (r *Registry) Get(name model.Source) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("scraper: unknown source %q", name)
	}
	return a, nil
}

// Select resolves the adapters for a run. An empty names list means every
// registered adapter. An unknown name is a configuration error. Adapters
// that cannot honor the state filter come back in dropped, so the run can
// report them instead of losing them silently.
func (r *Registry) Select(names []string, state string) (selected []Adapter, dropped []model.Source, err error) {
	var picked []Adapter
	if len(names) == 0 {
		picked = r.All()
	} else {
		for _, n := range names {
			src, err := model.ParseSource(n)
			if err != nil {
				return nil, nil, err
			}
			a, err := r.Get(src)
			if err != nil {
				return nil, nil, err
			}
			picked = append(picked, a)
		}
	}

	if state == "" {
		return picked, nil, nil
	}

	for _, a := range picked {
		if a.SupportsState(state) {
			selected = append(selected, a)
		} else {
			dropped = append(dropped, a.Name())
		}
	}
	return selected, dropped, nil
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	result := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.adapters[name])
	}
	return result
}

// AllNames returns all registered source names in registration order.
func (r *Registry) AllNames() []model.Source {
	out := make([]model.Source, len(r.order))
	copy(out, r.order)
	return out
}
