package ogm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/joss/ogm/pkg/graph"
)

// reconstructor turns engine results into objects for one call. Vertices
// reached twice resolve to the same instance.
type reconstructor struct {
	api  *ObjectAPI
	ctx  context.Context
	seen map[graph.RID]reflect.Value
}

func newReconstructor(ctx context.Context, api *ObjectAPI) *reconstructor {
	return &reconstructor{api: api, ctx: ctx, seen: make(map[graph.RID]reflect.Value)}
}

// toObject dispatches over the result variants. A vertex yields a pointer
// to a new instance, an edge yields its target vertex's instance, a
// projection yields its first column and a bag yields []any.
func (r *reconstructor) toObject(res graph.Result) (any, error) {
	switch x := res.(type) {
	case nil:
		return nil, nil
	case graph.RID:
		if x.IsZero() {
			return nil, nil
		}
		rec, err := r.load(x)
		if err != nil {
			return nil, err
		}
		return r.toObject(rec)
	case *graph.Vertex:
		return r.vertex(x)
	case *graph.Edge:
		return r.follow(x.In())
	case graph.Projection:
		v, ok := x.First()
		if !ok {
			return nil, nil
		}
		if nested, ok := v.(graph.Result); ok {
			return r.toObject(nested)
		}
		return v, nil
	case *graph.Bag:
		return r.bag(x)
	}
	return nil, &UnsupportedError{What: fmt.Sprintf("type %T", res)}
}

func (r *reconstructor) load(rid graph.RID) (graph.Result, error) {
	if err := r.api.session.Activate(); err != nil {
		return nil, err
	}
	return r.api.session.Load(r.ctx, rid)
}

func (r *reconstructor) follow(rid graph.RID) (any, error) {
	if inst, ok := r.seen[rid]; ok {
		return inst.Interface(), nil
	}
	rec, err := r.load(rid)
	if err != nil {
		return nil, err
	}
	v, ok := rec.(*graph.Vertex)
	if !ok {
		return nil, &UnsupportedError{What: "edge endpoint", Subject: string(rid)}
	}
	return r.vertex(v)
}

// bag resolves every element of an adjacency bag. Edges are followed to
// the vertex on the far side; missing records and other kinds are logged
// and skipped.
func (r *reconstructor) bag(b *graph.Bag) ([]any, error) {
	out := make([]any, 0, b.Len())
	for _, rid := range b.RIDs() {
		rec, err := r.load(rid)
		if graph.IsNotFound(err) {
			r.api.log.Warn("bag_element_missing", map[string]any{"rid": string(rid), "label": b.Label()}, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		var obj any
		switch x := rec.(type) {
		case *graph.Edge:
			obj, err = r.follow(x.Far(b.Direction()))
		case *graph.Vertex:
			obj, err = r.vertex(x)
		default:
			r.api.log.Warn("bag_element_unsupported", map[string]any{"rid": string(rid), "kind": fmt.Sprintf("%T", rec)}, nil)
			continue
		}
		if err != nil {
			return nil, err
		}
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

// vertex builds the instance of a vertex's registered type.
func (r *reconstructor) vertex(v *graph.Vertex) (any, error) {
	if !v.IsNew() {
		if inst, ok := r.seen[v.Identity()]; ok {
			return inst.Interface(), nil
		}
	}
	d, err := r.api.registry.Descriptor(v.ClassName())
	if err != nil {
		return nil, err
	}
	if d.IsEdge() {
		return nil, &UnsupportedError{What: "EdgeClass", Subject: d.Name() + " cannot be loaded from a vertex"}
	}

	ptr := reflect.New(d.Type())
	if !v.IsNew() {
		r.seen[v.Identity()] = ptr
	}
	sv := ptr.Elem()

	for _, f := range d.fields {
		switch f.Role {
		case RoleIdentity:
			if !v.IsNew() {
				if err := setIdentity(d, sv, v.Identity()); err != nil {
					return nil, err
				}
			}
		case RoleVersion:
			if err := setVersion(d, sv, v.Version()); err != nil {
				return nil, err
			}
		case RoleOut, RoleIn:
			dir := graph.Out
			if f.Role == RoleIn {
				dir = graph.In
			}
			handle, ok := v.Property(graph.AdjacencyName(dir, f.Relation.labelIn(r.api.registry))).(graph.Result)
			if !ok || handle == nil {
				continue
			}
			related, err := r.toObject(handle)
			if err != nil {
				return nil, err
			}
			if err := r.assignRelation(d, sv, f, related); err != nil {
				return nil, err
			}
		case RolePlain:
			if f.ReadOnly {
				continue
			}
			val, ok := toObject(f.Type, f.Elem, v.Property(f.Property))
			if !ok {
				if f.Nullable() {
					if err := f.set(d.Name(), sv, reflect.Value{}); err != nil {
						return nil, err
					}
				}
				continue
			}
			if err := f.set(d.Name(), sv, val); err != nil {
				return nil, err
			}
		}
	}
	return ptr.Interface(), nil
}

// assignRelation stores reconstructed neighbours into a relation field.
// A collection result meeting a scalar field contributes its first
// element.
func (r *reconstructor) assignRelation(d *EntityDescriptor, sv reflect.Value, f FieldDescriptor, related any) error {
	var items []any
	switch x := related.(type) {
	case nil:
		return nil
	case []any:
		items = x
	default:
		items = []any{x}
	}

	ft := f.Type
	if f.Relation.Many {
		out := reflect.MakeSlice(ft, 0, len(items))
		for _, it := range items {
			if ev, ok := relationValue(ft.Elem(), it); ok {
				out = reflect.Append(out, ev)
			} else {
				r.api.log.Warn("relation_element_skipped", map[string]any{"entity": d.Name(), "field": f.Name, "type": fmt.Sprintf("%T", it)}, nil)
			}
		}
		return f.set(d.Name(), sv, out)
	}
	for _, it := range items {
		if ev, ok := relationValue(ft, it); ok {
			return f.set(d.Name(), sv, ev)
		}
	}
	return nil
}

// relationValue adapts a reconstructed *T to a field of type *T or T.
func relationValue(t reflect.Type, obj any) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Type().AssignableTo(t) {
		return v, true
	}
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(t) {
		return v.Elem(), true
	}
	return reflect.Value{}, false
}
