package graph

// Edge is a directed edge record. A pending edge holds its endpoint
// vertices until they are saved; a persisted edge holds their identities.
type Edge struct {
	rid      RID
	label    string
	version  int64
	out, in  RID
	from, to *Vertex
	props    map[string]any
}

// NewPendingEdge creates an unsaved edge and attaches it to from. Engines
// call this from Session.NewEdge.
func NewPendingEdge(from, to *Vertex, label string) *Edge {
	e := &Edge{label: label, from: from, to: to, props: make(map[string]any)}
	from.pending = append(from.pending, e)
	return e
}

// RestoreEdge rebuilds a persisted edge.
func RestoreEdge(rid RID, label string, out, in RID, props map[string]any) *Edge {
	e := &Edge{rid: rid, label: label, version: 1, out: out, in: in, props: make(map[string]any)}
	for k, v := range props {
		e.props[k] = v
	}
	return e
}

func (e *Edge) Identity() RID  { return e.rid }
func (e *Edge) Label() string  { return e.label }
func (e *Edge) Version() int64 { return e.version }

// ClassName is the edge label; edge classes are named after their label.
func (e *Edge) ClassName() string { return e.label }

// IsNew reports whether the edge has never been saved.
func (e *Edge) IsNew() bool { return e.rid.IsZero() }

// Out returns the identity of the source vertex. Zero while the source of a
// pending edge is itself unsaved.
func (e *Edge) Out() RID {
	if e.from != nil {
		return e.from.Identity()
	}
	return e.out
}

// In returns the identity of the target vertex.
func (e *Edge) In() RID {
	if e.to != nil {
		return e.to.Identity()
	}
	return e.in
}

// OutVertex returns the source vertex of a pending edge, nil otherwise.
func (e *Edge) OutVertex() *Vertex { return e.from }

// InVertex returns the target vertex of a pending edge, nil otherwise.
func (e *Edge) InVertex() *Vertex { return e.to }

// Far returns the endpoint on the other side of direction d: the target
// for Out (and Both), the source for In.
func (e *Edge) Far(d Direction) RID {
	if d == In {
		return e.Out()
	}
	return e.In()
}

// Property returns an edge property. "out" and "in" resolve to the
// endpoint identities.
func (e *Edge) Property(name string) any {
	switch name {
	case "out":
		return e.Out()
	case "in":
		return e.In()
	}
	return e.props[name]
}

// SetProperty sets an edge property.
func (e *Edge) SetProperty(name string, value any) {
	e.props[name] = value
}

// Properties returns a copy of the edge properties.
func (e *Edge) Properties() map[string]any {
	out := make(map[string]any, len(e.props))
	for k, v := range e.props {
		out[k] = v
	}
	return out
}

// PointsTo reports whether the edge targets v: by pointer while pending,
// by identity once v is persisted.
func (e *Edge) PointsTo(v *Vertex) bool {
	if e.to != nil && e.to == v {
		return true
	}
	return !v.IsNew() && e.In() == v.Identity()
}

// MarkSaved records a successful save. Endpoints collapse to identities.
func (e *Edge) MarkSaved(rid RID) {
	e.out = e.Out()
	e.in = e.In()
	e.from, e.to = nil, nil
	e.rid = rid
	e.version = 1
}
