package schema

import "fmt"

// RegistryConsistencyError reports a second registration of a name with a
// different body, such as a declared type named like another method's
// synthetic argument or return schema.
type RegistryConsistencyError struct {
	Name     string
	Existing *Node
	Conflict *Node
}

func (e *RegistryConsistencyError) Error() string {
	return fmt.Sprintf("schema %q registered twice with different bodies", e.Name)
}

// Registry maps names to schemas for one generation run. Names iterate in
// the order they first began resolution. A Registry is not safe for
// concurrent use.
type Registry struct {
	order    []string
	pending  map[string]bool
	nodes    map[string]*Node
	visiting map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending:  map[string]bool{},
		nodes:    map[string]*Node{},
		visiting: map[string]bool{},
	}
}

func (r *Registry) reserve(name string) {
	if !r.pending[name] {
		r.pending[name] = true
		r.order = append(r.order, name)
	}
}

// Resolve returns the schema registered under name.
func (r *Registry) Resolve(name string) (*Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

// BeginVisit marks name as being resolved.
func (r *Registry) BeginVisit(name string) {
	r.reserve(name)
	r.visiting[name] = true
}

// EndVisit clears the mark set by BeginVisit.
func (r *Registry) EndVisit(name string) {
	delete(r.visiting, name)
}

// Visiting reports whether name is being resolved.
func (r *Registry) Visiting(name string) bool {
	return r.visiting[name]
}

// Register stores node under name. Registering a structurally identical
// body again is a no-op.
func (r *Registry) Register(name string, node *Node) error {
	if existing, ok := r.nodes[name]; ok {
		if Equal(existing, node) {
			return nil
		}
		return &RegistryConsistencyError{Name: name, Existing: existing, Conflict: node}
	}
	r.reserve(name)
	r.nodes[name] = node
	return nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.nodes))
	for _, name := range r.order {
		if _, ok := r.nodes[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Schemas returns the registered schemas in order.
func (r *Registry) Schemas() *OrderedMap[*Node] {
	out := NewOrderedMap[*Node]()
	for _, name := range r.Names() {
		out.Set(name, r.nodes[name])
	}
	return out
}
