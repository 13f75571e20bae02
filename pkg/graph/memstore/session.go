package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// Session implements graph.Session over a Store.
type Session struct {
	id    string
	store *Store
	log   *logging.Logger

	mu     sync.Mutex
	closed bool
	snap   *state
}

// Verify Session implements graph.Session
var _ graph.Session = (*Session)(nil)

func newSession(s *Store) *Session {
	id := uuid.NewString()
	return &Session{id: id, store: s, log: s.log.WithSession(id)}
}

func (s *Session) ID() string { return s.id }

// Activate fails once the session is closed.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.ErrSessionClosed
	}
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close rolls back an open transaction and closes the session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return graph.ErrSessionClosed
	}
	open := s.snap != nil
	s.mu.Unlock()

	if open {
		if err := s.Rollback(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.log.Debug("session_closed", nil)
	return nil
}

func (s *Session) Schema() graph.Schema   { return schema{s} }
func (s *Session) Dialect() graph.Dialect { return dialect{} }

func (s *Session) NewVertex(class string) *graph.Vertex {
	return graph.NewVertex(class)
}

// Load returns the vertex or edge stored under rid.
func (s *Session) Load(ctx context.Context, rid graph.RID) (graph.Result, error) {
	if err := s.Activate(); err != nil {
		return nil, err
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	st := s.store.st
	if rec, ok := st.vertices[rid]; ok {
		return st.vertex(rid, rec), nil
	}
	if rec, ok := st.edges[rid]; ok {
		return st.edge(rid, rec), nil
	}
	return nil, graph.NewNotFoundError(rid)
}

// Save persists v, the transient vertices its pending edges reach and the
// pending edges themselves.
func (s *Session) Save(ctx context.Context, v *graph.Vertex) error {
	if err := s.Activate(); err != nil {
		return err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	st := s.store.st

	order := graph.SaveOrder(v)
	for _, w := range order {
		if err := s.saveVertex(st, w); err != nil {
			return err
		}
	}
	for _, w := range order {
		for _, e := range w.TakePending() {
			if err := s.saveEdge(st, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) saveVertex(st *state, w *graph.Vertex) error {
	if w.IsNew() {
		c, ok := st.classes[w.ClassName()]
		if !ok {
			return fmt.Errorf("vertex class %q: %w", w.ClassName(), graph.ErrClassNotFound)
		}
		if c.info.Base != graph.BaseVertex {
			return fmt.Errorf("class %q is not a vertex class", w.ClassName())
		}
		props := dropNil(w.Values(false))
		if err := st.checkUnique(w.ClassName(), "", props); err != nil {
			return err
		}
		rid := st.nextRID(c)
		st.seq++
		st.vertices[rid] = &vertexRec{
			seq:     st.seq,
			class:   w.ClassName(),
			version: 1,
			props:   copyProps(props),
			out:     make(map[string][]graph.RID),
			in:      make(map[string][]graph.RID),
		}
		w.MarkSaved(rid, 1)
		return nil
	}

	rec, ok := st.vertices[w.Identity()]
	if !ok {
		return graph.NewNotFoundError(w.Identity())
	}
	changes := w.Values(true)
	if len(changes) == 0 {
		w.MarkSaved(w.Identity(), rec.version)
		return nil
	}
	merged := copyProps(rec.props)
	for k, val := range changes {
		merged[k] = val
	}
	merged = dropNil(merged)
	if err := st.checkUnique(rec.class, w.Identity(), merged); err != nil {
		return err
	}
	rec.props = merged
	rec.version++
	w.MarkSaved(w.Identity(), rec.version)
	return nil
}

func (s *Session) saveEdge(st *state, e *graph.Edge) error {
	out, in := e.Out(), e.In()
	from, ok := st.vertices[out]
	if out.IsZero() || !ok {
		return fmt.Errorf("edge %s source: %w", e.Label(), graph.NewNotFoundError(out))
	}
	to, ok := st.vertices[in]
	if in.IsZero() || !ok {
		return fmt.Errorf("edge %s target: %w", e.Label(), graph.NewNotFoundError(in))
	}
	c, ok := st.classes[e.Label()]
	if !ok {
		c = st.defineClass(e.Label(), graph.BaseEdge)
		s.log.Debug("edge_class_created", map[string]any{"class": e.Label()})
	} else if c.info.Base != graph.BaseEdge {
		return fmt.Errorf("class %q is not an edge class", e.Label())
	}
	rid := st.nextRID(c)
	st.seq++
	st.edges[rid] = &edgeRec{seq: st.seq, label: e.Label(), out: out, in: in, props: e.Properties()}
	from.out[e.Label()] = append(from.out[e.Label()], rid)
	to.in[e.Label()] = append(to.in[e.Label()], rid)
	e.MarkSaved(rid)
	return nil
}

// NewEdge creates a pending edge from -> to.
func (s *Session) NewEdge(ctx context.Context, from, to *graph.Vertex, label string) (*graph.Edge, error) {
	if err := s.Activate(); err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("edge %s: missing endpoint", label)
	}
	return graph.NewPendingEdge(from, to, label), nil
}

// Edges lists the persisted edges of v followed by its pending ones.
func (s *Session) Edges(ctx context.Context, v *graph.Vertex, d graph.Direction, label string) ([]*graph.Edge, error) {
	if err := s.Activate(); err != nil {
		return nil, err
	}
	var edges []*graph.Edge
	if !v.IsNew() {
		s.store.mu.RLock()
		st := s.store.st
		rec, ok := st.vertices[v.Identity()]
		if !ok {
			s.store.mu.RUnlock()
			return nil, graph.NewNotFoundError(v.Identity())
		}
		if d == graph.Out || d == graph.Both {
			edges = append(edges, st.adjacent(rec.out, label)...)
		}
		if d == graph.In || d == graph.Both {
			edges = append(edges, st.adjacent(rec.in, label)...)
		}
		s.store.mu.RUnlock()
	}
	if d == graph.Out || d == graph.Both {
		for _, e := range v.Pending() {
			if label == "" || e.Label() == label {
				edges = append(edges, e)
			}
		}
	}
	return edges, nil
}

func (st *state) adjacent(adj map[string][]graph.RID, label string) []*graph.Edge {
	labels := make([]string, 0, len(adj))
	for l := range adj {
		if label == "" || l == label {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	var edges []*graph.Edge
	for _, l := range labels {
		for _, rid := range adj[l] {
			if rec, ok := st.edges[rid]; ok {
				edges = append(edges, st.edge(rid, rec))
			}
		}
	}
	return edges
}

// Delete removes a vertex with its edges, or a single edge.
func (s *Session) Delete(ctx context.Context, rid graph.RID) error {
	if err := s.Activate(); err != nil {
		return err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	st := s.store.st
	if _, ok := st.vertices[rid]; ok {
		st.removeVertex(rid)
		return nil
	}
	if _, ok := st.edges[rid]; ok {
		st.removeEdge(rid)
		return nil
	}
	return graph.NewNotFoundError(rid)
}

// Query runs a read-only statement.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]graph.Result, error) {
	return s.run(query, args, false)
}

// Command runs any supported statement.
func (s *Session) Command(ctx context.Context, command string, args ...any) ([]graph.Result, error) {
	return s.run(command, args, true)
}

func (s *Session) run(text string, args []any, write bool) ([]graph.Result, error) {
	if err := s.Activate(); err != nil {
		return nil, err
	}
	stmt, err := parse(text)
	if err != nil {
		return nil, err
	}
	if stmt.writes() && !write {
		return nil, fmt.Errorf("%q is not idempotent, use Command: %w", text, graph.ErrUnsupportedQuery)
	}
	b, err := newBinder(args)
	if err != nil {
		return nil, err
	}
	if stmt.writes() {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
	} else {
		s.store.mu.RLock()
		defer s.store.mu.RUnlock()
	}
	return stmt.exec(s.store.st, b)
}

// Begin snapshots the store; Rollback restores the snapshot.
func (s *Session) Begin(ctx context.Context) error {
	if err := s.Activate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil {
		return graph.ErrTxActive
	}
	s.store.mu.RLock()
	s.snap = s.store.st.clone()
	s.store.mu.RUnlock()
	return nil
}

func (s *Session) Commit(ctx context.Context) error {
	if err := s.Activate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return graph.ErrNoTransaction
	}
	s.snap = nil
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	if err := s.Activate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return graph.ErrNoTransaction
	}
	s.store.mu.Lock()
	s.store.st = s.snap
	s.store.mu.Unlock()
	s.snap = nil
	return nil
}

func dropNil(props map[string]any) map[string]any {
	for k, v := range props {
		if v == nil {
			delete(props, k)
		}
	}
	return props
}

type dialect struct{}

func (dialect) SelectAll(class string) string { return "SELECT FROM " + class }
func (dialect) CountAll(class string) string {
	return "SELECT COUNT(*) AS " + graph.CountColumn + " FROM " + class
}
