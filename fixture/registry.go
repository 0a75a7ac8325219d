package fixture

import "golang.org/x/exp/maps"

// Registry is the patched-fixture and named-group lookup table the engine
// resolves FxTargetRefs against.
type Registry struct {
	fixtures map[string]*Fixture
	groups   map[string]*Group[*Fixture]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		fixtures: make(map[string]*Fixture),
		groups:   make(map[string]*Group[*Fixture]),
	}
}

// AddFixture patches a fixture under its key.
func (r *Registry) AddFixture(f *Fixture) {
	r.fixtures[f.Key] = f
}

// AddGroup registers a named group.
func (r *Registry) AddGroup(g *Group[*Fixture]) {
	r.groups[g.Name] = g
}

// Fixture looks up a patched fixture by key.
func (r *Registry) Fixture(key string) (*Fixture, bool) {
	f, ok := r.fixtures[key]
	return f, ok
}

// Group looks up a named group.
func (r *Registry) Group(name string) (*Group[*Fixture], bool) {
	g, ok := r.groups[name]
	return g, ok
}

// FixtureKeys returns every patched fixture key.
func (r *Registry) FixtureKeys() []string {
	return maps.Keys(r.fixtures)
}

// GroupNames returns every registered group name.
func (r *Registry) GroupNames() []string {
	return maps.Keys(r.groups)
}

// Merge copies another registry's fixtures and groups into this one,
// overwriting on key collision, and returns the receiver.
func (r *Registry) Merge(others ...*Registry) *Registry {
	for _, other := range others {
		maps.Copy(r.fixtures, other.fixtures)
		maps.Copy(r.groups, other.groups)
	}
	return r
}

// WithTransaction returns a new Registry whose fixtures and groups all
// point to tx.
func (r *Registry) WithTransaction(tx Transaction) *Registry {
	out := NewRegistry()
	for key, f := range r.fixtures {
		out.fixtures[key] = f.WithTransaction(tx)
	}
	for name, g := range r.groups {
		out.groups[name] = g.WithTransaction(tx)
	}
	return out
}
