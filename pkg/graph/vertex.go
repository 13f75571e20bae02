package graph

import (
	"sort"
	"strings"
)

// Vertex is a vertex record as seen by one session. Engines hand out fresh
// instances from Load and Query; mutations stay local until Save.
type Vertex struct {
	rid     RID
	class   string
	version int64
	props   map[string]any
	dirty   map[string]struct{}
	pending []*Edge
}

// NewVertex returns a transient vertex of class. Engines call this from
// Session.NewVertex.
func NewVertex(class string) *Vertex {
	return &Vertex{
		class: class,
		props: make(map[string]any),
		dirty: make(map[string]struct{}),
	}
}

// RestoreVertex rebuilds a persisted vertex. props may include adjacency
// bags; none of the properties are dirty.
func RestoreVertex(rid RID, class string, version int64, props map[string]any) *Vertex {
	v := NewVertex(class)
	v.rid = rid
	v.version = version
	for k, val := range props {
		v.props[k] = val
	}
	return v
}

func (v *Vertex) Identity() RID     { return v.rid }
func (v *Vertex) ClassName() string { return v.class }
func (v *Vertex) Version() int64    { return v.version }

// IsNew reports whether the vertex has never been saved.
func (v *Vertex) IsNew() bool { return v.rid.IsZero() }

// Property returns a property or adjacency bag.
func (v *Vertex) Property(name string) any {
	return v.props[name]
}

// HasProperty reports whether the property is set, even to nil.
func (v *Vertex) HasProperty(name string) bool {
	_, ok := v.props[name]
	return ok
}

// PropertyNames lists property names in sorted order, adjacency bags
// included.
func (v *Vertex) PropertyNames() []string {
	names := make([]string, 0, len(v.props))
	for k := range v.props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetProperty sets a property and marks it dirty.
func (v *Vertex) SetProperty(name string, value any) {
	v.props[name] = value
	v.dirty[name] = struct{}{}
}

// Dirty lists properties changed since the vertex was loaded or saved.
func (v *Vertex) Dirty() []string {
	names := make([]string, 0, len(v.dirty))
	for k := range v.dirty {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns the storable properties: every property except adjacency
// bags. With dirtyOnly only changed properties are returned.
func (v *Vertex) Values(dirtyOnly bool) map[string]any {
	out := make(map[string]any, len(v.props))
	for k, val := range v.props {
		if IsAdjacency(k) {
			continue
		}
		if dirtyOnly {
			if _, ok := v.dirty[k]; !ok {
				continue
			}
		}
		out[k] = val
	}
	return out
}

// Pending returns the edges created from this vertex and not yet saved.
func (v *Vertex) Pending() []*Edge {
	return append([]*Edge(nil), v.pending...)
}

// MarkSaved records a successful save: assigns identity and version and
// clears the dirty set.
func (v *Vertex) MarkSaved(rid RID, version int64) {
	v.rid = rid
	v.version = version
	v.dirty = make(map[string]struct{})
}

// TakePending returns and clears the pending edges.
func (v *Vertex) TakePending() []*Edge {
	p := v.pending
	v.pending = nil
	return p
}

// IsAdjacency reports whether a property name is an adjacency bag name.
func IsAdjacency(name string) bool {
	return strings.HasPrefix(name, "out_") || strings.HasPrefix(name, "in_")
}

// SaveOrder returns v followed by every transient vertex reachable from it
// through pending edges, each exactly once. Persisted vertices reached this
// way are references only and are not included.
func SaveOrder(v *Vertex) []*Vertex {
	order := []*Vertex{v}
	seen := map[*Vertex]bool{v: true}
	for i := 0; i < len(order); i++ {
		for _, e := range order[i].pending {
			for _, w := range []*Vertex{e.from, e.to} {
				if w == nil || seen[w] || !w.IsNew() {
					continue
				}
				seen[w] = true
				order = append(order, w)
			}
		}
	}
	return order
}
