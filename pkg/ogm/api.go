// Package ogm maps Go structs to graph vertices and edges.
package ogm

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// ObjectAPI is the entry point for saving, loading and querying mapped
// objects over one engine session. Like the session it wraps, it must be
// confined to one goroutine at a time.
type ObjectAPI struct {
	session  graph.Session
	registry *Registry
	log      *logging.Logger
}

// Option configures an ObjectAPI.
type Option func(*ObjectAPI)

// WithRegistry uses r instead of the process-wide Default registry.
func WithRegistry(r *Registry) Option {
	return func(a *ObjectAPI) { a.registry = r }
}

// WithLogger replaces the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *ObjectAPI) { a.log = l }
}

// New wraps an engine session.
func New(session graph.Session, opts ...Option) *ObjectAPI {
	a := &ObjectAPI{
		session:  session,
		registry: Default,
		log:      logging.New("ogm"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithSession(session.ID())
	return a
}

// Session returns the wrapped engine session.
func (a *ObjectAPI) Session() graph.Session { return a.session }

// Registry returns the registry used for type resolution.
func (a *ObjectAPI) Registry() *Registry { return a.registry }

// ensureRegistered registers t under its derived name, creating its
// schema class on first sight.
func (a *ObjectAPI) ensureRegistered(ctx context.Context, t reflect.Type) (*EntityDescriptor, error) {
	if d, ok := a.registry.DescriptorOf(t); ok {
		return d, nil
	}
	return a.register(ctx, "", t)
}

func (a *ObjectAPI) register(ctx context.Context, name string, t reflect.Type) (*EntityDescriptor, error) {
	return a.registry.Register(name, t, func(d *EntityDescriptor) error {
		return SyncSchema(ctx, activeSchema{session: a.session}, d, a.log)
	})
}

// RegisterEntityClass registers the type of sample, optionally under an
// explicit entity name, and creates its schema class if missing.
func (a *ObjectAPI) RegisterEntityClass(ctx context.Context, sample any, name ...string) error {
	t := structType(reflect.TypeOf(sample))
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("register %T: %w", sample, ErrInvalidObject)
	}
	var explicit string
	if len(name) > 0 {
		explicit = name[0]
	}
	_, err := a.register(ctx, explicit, t)
	return err
}

// RegisterEntityPackage registers every type declared with Declare whose
// package path matches pattern. It returns the number of types matched.
func (a *ObjectAPI) RegisterEntityPackage(ctx context.Context, pattern string) (int, error) {
	types := declaredIn(pattern)
	for _, t := range types {
		if _, err := a.register(ctx, "", t); err != nil {
			return 0, fmt.Errorf("register package %s: %w", pattern, err)
		}
	}
	a.log.Debug("package_registered", map[string]any{"pattern": pattern, "types": len(types)})
	return len(types), nil
}

// Query runs a read-only engine query and reconstructs every row.
// Positional arguments bind in order; a single graph.Params binds by name.
func (a *ObjectAPI) Query(ctx context.Context, text string, args ...any) ([]any, error) {
	if err := a.session.Activate(); err != nil {
		return nil, err
	}
	rows, err := a.session.Query(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return a.objects(ctx, rows)
}

// QueryNamed is Query with named parameters.
func (a *ObjectAPI) QueryNamed(ctx context.Context, text string, params graph.Params) ([]any, error) {
	return a.Query(ctx, text, params)
}

// Command runs an engine command that may write and reconstructs the rows
// it returns.
func (a *ObjectAPI) Command(ctx context.Context, text string, args ...any) ([]any, error) {
	if err := a.session.Activate(); err != nil {
		return nil, err
	}
	rows, err := a.session.Command(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	return a.objects(ctx, rows)
}

// CommandNamed is Command with named parameters.
func (a *ObjectAPI) CommandNamed(ctx context.Context, text string, params graph.Params) ([]any, error) {
	return a.Command(ctx, text, params)
}

func (a *ObjectAPI) objects(ctx context.Context, rows []graph.Result) ([]any, error) {
	r := newReconstructor(ctx, a)
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		obj, err := r.toObject(row)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Load reconstructs the record at rid. Passing a sample registers its type
// first. A zero rid yields nil.
func (a *ObjectAPI) Load(ctx context.Context, rid graph.RID, sample ...any) (any, error) {
	if rid.IsZero() {
		return nil, nil
	}
	for _, s := range sample {
		if _, err := a.ensureRegistered(ctx, reflect.TypeOf(s)); err != nil {
			return nil, err
		}
	}
	return newReconstructor(ctx, a).toObject(rid)
}

// LoadMany reconstructs the records at rids, skipping zero and missing
// identities.
func (a *ObjectAPI) LoadMany(ctx context.Context, rids []graph.RID, sample ...any) ([]any, error) {
	for _, s := range sample {
		if _, err := a.ensureRegistered(ctx, reflect.TypeOf(s)); err != nil {
			return nil, err
		}
	}
	r := newReconstructor(ctx, a)
	out := make([]any, 0, len(rids))
	for _, rid := range rids {
		if rid.IsZero() {
			continue
		}
		obj, err := r.toObject(rid)
		if graph.IsNotFound(err) {
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

// FindAll reconstructs every vertex of the class of sample.
func (a *ObjectAPI) FindAll(ctx context.Context, sample any) ([]any, error) {
	d, err := a.descriptorFor(ctx, sample)
	if err != nil {
		return nil, err
	}
	return a.Query(ctx, a.session.Dialect().SelectAll(d.Name()))
}

// Count returns the number of vertices of the class of sample.
func (a *ObjectAPI) Count(ctx context.Context, sample any) (int64, error) {
	d, err := a.descriptorFor(ctx, sample)
	if err != nil {
		return 0, err
	}
	if err := a.session.Activate(); err != nil {
		return 0, err
	}
	rows, err := a.session.Query(ctx, a.session.Dialect().CountAll(d.Name()))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d.Name(), err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	p, ok := rows[0].(graph.Projection)
	if !ok {
		return 0, &UnsupportedError{What: fmt.Sprintf("count row %T", rows[0])}
	}
	return p.GetInt64(graph.CountColumn), nil
}

func (a *ObjectAPI) descriptorFor(ctx context.Context, sample any) (*EntityDescriptor, error) {
	t := structType(reflect.TypeOf(sample))
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%T: %w", sample, ErrInvalidObject)
	}
	d, err := a.ensureRegistered(ctx, t)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &UnsupportedError{What: "anonymous type", Subject: t.String()}
	}
	return d, nil
}

// Save writes obj and everything reachable through its outgoing relations
// according to their cascade flags, and returns the identity of obj. When
// obj is a pointer its identity and version fields are updated, as are
// those of every other object written by the call.
func (a *ObjectAPI) Save(ctx context.Context, obj any) (graph.RID, error) {
	start := time.Now()
	m := newMaterializer(ctx, a)
	v, err := m.toDocument(obj)
	if err != nil {
		return "", err
	}
	if err := a.session.Activate(); err != nil {
		return "", err
	}
	if err := a.session.Save(ctx, v); err != nil {
		return "", fmt.Errorf("save %s: %w", v.ClassName(), err)
	}
	if err := m.writeBack(); err != nil {
		return "", err
	}
	a.log.TimedEvent("object_saved", start, map[string]any{"class": v.ClassName(), "rid": string(v.Identity()), "objects": len(m.seen)})
	return v.Identity(), nil
}

// SaveAndReturn saves obj and returns a fresh reconstruction of it.
func (a *ObjectAPI) SaveAndReturn(ctx context.Context, obj any) (any, error) {
	rid, err := a.Save(ctx, obj)
	if err != nil {
		return nil, err
	}
	return a.Load(ctx, rid)
}

// Delete removes the vertex of obj and its edges. Objects without an
// identity are ignored.
func (a *ObjectAPI) Delete(ctx context.Context, obj any) error {
	rid, ok := a.GetIdentity(obj)
	if !ok {
		return nil
	}
	if err := a.session.Activate(); err != nil {
		return err
	}
	if err := a.session.Delete(ctx, rid); err != nil {
		return fmt.Errorf("delete %s: %w", rid, err)
	}
	return nil
}

// GetIdentity returns the identity carried by obj. obj may be a mapped
// struct (or pointer to one) or a graph.RID.
func (a *ObjectAPI) GetIdentity(obj any) (graph.RID, bool) {
	switch x := obj.(type) {
	case nil:
		return "", false
	case graph.RID:
		return x, !x.IsZero()
	case *graph.RID:
		if x == nil {
			return "", false
		}
		return *x, !x.IsZero()
	}
	sv, err := structValue(obj)
	if err != nil {
		return "", false
	}
	d, ok := a.registry.DescriptorOf(sv.Type())
	if !ok {
		built, err := buildDescriptor(a.registry.NameOf(sv.Type()), sv.Type(), a.registry.mapping.Load())
		if err != nil {
			return "", false
		}
		d = built
	}
	rid := identityOf(d, sv)
	return rid, !rid.IsZero()
}

// ToDocument materializes obj without saving it. Cascade targets are
// still saved.
func (a *ObjectAPI) ToDocument(ctx context.Context, obj any) (*graph.Vertex, error) {
	return newMaterializer(ctx, a).toDocument(obj)
}

// ToObject reconstructs a single engine result.
func (a *ObjectAPI) ToObject(ctx context.Context, res graph.Result) (any, error) {
	return newReconstructor(ctx, a).toObject(res)
}

// Begin starts a transaction on the session.
func (a *ObjectAPI) Begin(ctx context.Context) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Begin(ctx)
}

// Commit commits the open transaction.
func (a *ObjectAPI) Commit(ctx context.Context) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Commit(ctx)
}

// Rollback discards the open transaction.
func (a *ObjectAPI) Rollback(ctx context.Context) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Rollback(ctx)
}

// Close closes the session. Closing an already closed session is logged
// and otherwise ignored.
func (a *ObjectAPI) Close(ctx context.Context) error {
	if a.session.Closed() {
		a.log.Error("session_closed_prematurely", nil, graph.ErrSessionClosed)
		return nil
	}
	return a.session.Close(ctx)
}
