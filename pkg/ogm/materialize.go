package ogm

import (
	"context"
	"reflect"

	"github.com/joss/ogm/pkg/graph"
)

// materializer converts objects into vertices for one Save call. Objects
// reached twice through pointers map to the same vertex, which breaks
// reference cycles.
type materializer struct {
	api   *ObjectAPI
	ctx   context.Context
	seen  map[seenKey]*graph.Vertex
	bound []binding
}

// seenKey identifies an object by type and address. A struct shares its
// address with its first field.
type seenKey struct {
	t reflect.Type
	p uintptr
}

func keyOf(sv reflect.Value) (seenKey, bool) {
	if !sv.CanAddr() {
		return seenKey{}, false
	}
	return seenKey{t: sv.Type(), p: sv.Addr().Pointer()}, true
}

// binding remembers where to write back identity and version after save.
type binding struct {
	desc   *EntityDescriptor
	obj    reflect.Value
	vertex *graph.Vertex
}

func newMaterializer(ctx context.Context, api *ObjectAPI) *materializer {
	return &materializer{api: api, ctx: ctx, seen: make(map[seenKey]*graph.Vertex)}
}

// toDocument returns the vertex for obj with its plain fields written and
// its outgoing relations reconciled. Nothing is saved except cascade
// targets.
func (m *materializer) toDocument(obj any) (*graph.Vertex, error) {
	sv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	d, err := m.api.ensureRegistered(m.ctx, sv.Type())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &UnsupportedError{What: "anonymous type", Subject: sv.Type().String()}
	}
	if d.IsEdge() {
		return nil, &UnsupportedError{What: "EdgeClass", Subject: d.Name() + " cannot be saved as a vertex yet"}
	}

	key, addressable := keyOf(sv)
	if addressable {
		if v, ok := m.seen[key]; ok {
			return v, nil
		}
	}

	v, err := m.vertexFor(d, sv)
	if err != nil {
		return nil, err
	}
	if addressable {
		m.seen[key] = v
		m.bound = append(m.bound, binding{desc: d, obj: sv, vertex: v})
	}

	for _, f := range d.fields {
		if f.Role != RolePlain {
			continue
		}
		stored := ToStorageValue(f.Type, f.Elem, f.value(sv).Interface())
		if graph.Equal(v.Property(f.Property), stored) {
			continue
		}
		v.SetProperty(f.Property, stored)
	}

	for _, f := range d.fields {
		if f.Role != RoleOut {
			continue
		}
		if err := m.reconcile(d, v, f, f.value(sv)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (m *materializer) vertexFor(d *EntityDescriptor, sv reflect.Value) (*graph.Vertex, error) {
	session := m.api.session
	rid := identityOf(d, sv)
	if rid.IsZero() {
		if err := session.Activate(); err != nil {
			return nil, err
		}
		return session.NewVertex(d.Name()), nil
	}
	return m.load(rid)
}

func (m *materializer) load(rid graph.RID) (*graph.Vertex, error) {
	if err := m.api.session.Activate(); err != nil {
		return nil, err
	}
	rec, err := m.api.session.Load(m.ctx, rid)
	if err != nil {
		return nil, err
	}
	v, ok := rec.(*graph.Vertex)
	if !ok {
		return nil, &UnsupportedError{What: "non-vertex identity", Subject: string(rid)}
	}
	return v, nil
}

// reconcile brings the edges of one relation in line with the field value.
// Collections only add edges; scalars also drop edges to any other target.
func (m *materializer) reconcile(d *EntityDescriptor, v *graph.Vertex, f FieldDescriptor, fv reflect.Value) error {
	rel := f.Relation
	if rel.Many {
		for i := 0; i < fv.Len(); i++ {
			target, err := m.resolve(rel, fv.Index(i))
			if err != nil {
				return err
			}
			if target == nil {
				continue
			}
			if err := m.link(v, target, rel.Label); err != nil {
				return err
			}
		}
		return nil
	}

	target, err := m.resolve(rel, fv)
	if err != nil {
		return err
	}
	if err := m.unlinkOthers(v, target, rel.Label); err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return m.link(v, target, rel.Label)
}

// resolve turns a relation target into a vertex following the cascade
// policy. Returns nil for nil targets and for zero struct values.
func (m *materializer) resolve(rel *Relation, tv reflect.Value) (*graph.Vertex, error) {
	if tv.Kind() == reflect.Pointer {
		if tv.IsNil() {
			return nil, nil
		}
	} else {
		if tv.IsZero() {
			return nil, nil
		}
		if tv.CanAddr() {
			tv = tv.Addr()
		}
	}
	target := tv.Interface()
	sv, err := structValue(target)
	if err != nil {
		return nil, err
	}
	d, err := m.api.ensureRegistered(m.ctx, sv.Type())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &UnsupportedError{What: "anonymous relation target", Subject: sv.Type().String()}
	}

	if rid := identityOf(d, sv); !rid.IsZero() {
		if rel.Cascade&CascadeUpdate == 0 {
			if key, ok := keyOf(sv); ok {
				if v, ok := m.seen[key]; ok {
					return v, nil
				}
			}
			return m.load(rid)
		}
		return m.cascade(target)
	}
	if rel.Cascade&CascadeInsert == 0 {
		return m.toDocument(target)
	}
	return m.cascade(target)
}

// cascade materializes and saves a target now.
func (m *materializer) cascade(target any) (*graph.Vertex, error) {
	v, err := m.toDocument(target)
	if err != nil {
		return nil, err
	}
	if err := m.api.session.Activate(); err != nil {
		return nil, err
	}
	if err := m.api.session.Save(m.ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *materializer) edges(v *graph.Vertex, label string) ([]*graph.Edge, error) {
	if err := m.api.session.Activate(); err != nil {
		return nil, err
	}
	return m.api.session.Edges(m.ctx, v, graph.Out, label)
}

// link creates an edge v -> target unless one already exists.
func (m *materializer) link(v, target *graph.Vertex, label string) error {
	edges, err := m.edges(v, label)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.PointsTo(target) {
			return nil
		}
	}
	if err := m.api.session.Activate(); err != nil {
		return err
	}
	_, err = m.api.session.NewEdge(m.ctx, v, target, label)
	return err
}

// unlinkOthers deletes persisted edges of label that do not point to target.
func (m *materializer) unlinkOthers(v, target *graph.Vertex, label string) error {
	if v.IsNew() {
		return nil
	}
	edges, err := m.edges(v, label)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.IsNew() || (target != nil && e.PointsTo(target)) {
			continue
		}
		if err := m.api.session.Activate(); err != nil {
			return err
		}
		if err := m.api.session.Delete(m.ctx, e.Identity()); err != nil && !graph.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// writeBack copies assigned identities and versions into every object
// materialized in this call.
func (m *materializer) writeBack() error {
	for _, b := range m.bound {
		if b.vertex.IsNew() {
			continue
		}
		if err := setIdentity(b.desc, b.obj, b.vertex.Identity()); err != nil {
			return err
		}
		if err := setVersion(b.desc, b.obj, b.vertex.Version()); err != nil {
			return err
		}
	}
	return nil
}
