package bolt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// Session implements graph.Session over one driver session. Node labels
// carry the class, relationship types the edge label.
type Session struct {
	id     string
	flavor Flavor
	log    *logging.Logger

	mu     sync.Mutex
	closed bool
	conn   conn
	tx     txConn
}

// Verify Session implements graph.Session
var _ graph.Session = (*Session)(nil)

func newSession(c conn, flavor Flavor, log *logging.Logger) *Session {
	id := uuid.NewString()
	return &Session{id: id, flavor: flavor, conn: c, log: log.WithSession(id)}
}

func (s *Session) ID() string { return s.id }

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

// Close rolls back an open transaction and releases the driver session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.ErrSessionClosed
	}
	s.closed = true
	var errs []error
	if s.tx != nil {
		errs = append(errs, s.tx.rollback(ctx))
		s.tx = nil
	}
	errs = append(errs, s.conn.close(ctx))
	s.log.Debug("session_closed", nil)
	return errors.Join(errs...)
}

func (s *Session) Schema() graph.Schema   { return schema{s} }
func (s *Session) Dialect() graph.Dialect { return dialect{} }

func (s *Session) runner() (runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graph.ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.conn, nil
}

// atomic runs fn in the open transaction, or in one of its own.
func (s *Session) atomic(ctx context.Context, fn func(r runner) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return graph.ErrSessionClosed
	}
	tx := s.tx
	s.mu.Unlock()
	if tx != nil {
		return fn(tx)
	}

	own, err := s.conn.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(own); err != nil {
		_ = own.rollback(ctx)
		return err
	}
	if err := own.commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) NewVertex(class string) *graph.Vertex {
	return graph.NewVertex(class)
}

// Load returns the node or relationship with the given identity.
func (s *Session) Load(ctx context.Context, rid graph.RID) (graph.Result, error) {
	r, err := s.runner()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, r, rid)
}

func (s *Session) load(ctx context.Context, r runner, rid graph.RID) (graph.Result, error) {
	recs, err := r.run(ctx, "MATCH (n) WHERE "+s.flavor.matchID("n", nodeEntity, "rid")+" RETURN n",
		map[string]any{"rid": string(rid)})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}
	if len(recs) > 0 {
		node, ok := recs[0].Values[0].(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("load %s: unexpected %T", rid, recs[0].Values[0])
		}
		return s.vertex(ctx, r, node)
	}

	recs, err = r.run(ctx, "MATCH (a)-[r]->(b) WHERE "+s.flavor.matchID("r", relEntity, "rid")+
		" RETURN r, "+s.flavor.idOf("a", nodeEntity)+" AS out, "+s.flavor.idOf("b", nodeEntity)+" AS in",
		map[string]any{"rid": string(rid)})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}
	if len(recs) == 0 {
		return nil, graph.NewNotFoundError(rid)
	}
	rel, ok := recs[0].Values[0].(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("load %s: unexpected %T", rid, recs[0].Values[0])
	}
	first := rows(recs)[0]
	return s.edge(rel, first.getString("out"), first.getString("in")), nil
}

func (s *Session) vertex(ctx context.Context, r runner, node dbtype.Node) (*graph.Vertex, error) {
	rid := s.flavor.rid(nodeEntity, node.Id, node.ElementId)
	version := row(node.Props).getInt64(versionKey)
	props := decodeProps(node.Props)
	bags, err := s.adjacency(ctx, r, rid)
	if err != nil {
		return nil, err
	}
	for k, b := range bags {
		props[k] = b
	}
	return graph.RestoreVertex(rid, classOf(node.Labels), version, props), nil
}

func (s *Session) edge(rel dbtype.Relationship, out, in string) *graph.Edge {
	return graph.RestoreEdge(s.flavor.rid(relEntity, rel.Id, rel.ElementId), rel.Type, graph.RID(out), graph.RID(in), decodeProps(rel.Props))
}

// classOf picks the class label of a node. Nodes created outside the
// mapper may carry none.
func classOf(labels []string) string {
	for _, l := range labels {
		if !strings.HasPrefix(l, "_") {
			return l
		}
	}
	return string(graph.BaseVertex)
}

// adjacency builds the out_ and in_ bags of a node.
func (s *Session) adjacency(ctx context.Context, r runner, rid graph.RID) (map[string]any, error) {
	bags := make(map[string]any)
	for _, d := range []graph.Direction{graph.Out, graph.In} {
		pattern := "(n)-[r]->()"
		if d == graph.In {
			pattern = "(n)<-[r]-()"
		}
		recs, err := r.run(ctx, "MATCH "+pattern+" WHERE "+s.flavor.matchID("n", nodeEntity, "rid")+
			" RETURN "+s.flavor.idOf("r", relEntity)+" AS rid, type(r) AS label ORDER BY id(r)",
			map[string]any{"rid": string(rid)})
		if err != nil {
			return nil, fmt.Errorf("adjacency %s: %w", rid, err)
		}
		byLabel := make(map[string][]graph.RID)
		for _, rr := range rows(recs) {
			label := rr.getString("label")
			byLabel[label] = append(byLabel[label], graph.RID(rr.getString("rid")))
		}
		for k, b := range graph.BuildBags(d, byLabel) {
			bags[k] = b
		}
	}
	return bags, nil
}

type saved struct {
	rid     graph.RID
	version int64
}

// batch collects the identities assigned by one Save. They are applied to
// the in-memory records only once every statement has succeeded.
type batch struct {
	vertices map[*graph.Vertex]saved
	edges    map[*graph.Edge]graph.RID
}

func (b *batch) rid(v *graph.Vertex, fallback graph.RID) graph.RID {
	if v != nil {
		if sv, ok := b.vertices[v]; ok {
			return sv.rid
		}
		if !v.IsNew() {
			return v.Identity()
		}
	}
	return fallback
}

// Save persists v, the transient vertices its pending edges reach and the
// pending edges themselves.
func (s *Session) Save(ctx context.Context, v *graph.Vertex) error {
	order := graph.SaveOrder(v)
	b := &batch{vertices: make(map[*graph.Vertex]saved), edges: make(map[*graph.Edge]graph.RID)}

	err := s.atomic(ctx, func(r runner) error {
		for _, w := range order {
			if err := s.saveVertex(ctx, r, w, b); err != nil {
				return err
			}
		}
		for _, w := range order {
			for _, e := range w.Pending() {
				if err := s.saveEdge(ctx, r, e, b); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for w, sv := range b.vertices {
		w.MarkSaved(sv.rid, sv.version)
	}
	for _, w := range order {
		w.TakePending()
	}
	for e, rid := range b.edges {
		e.MarkSaved(rid)
	}
	return nil
}

func (s *Session) saveVertex(ctx context.Context, r runner, w *graph.Vertex, b *batch) error {
	if w.IsNew() {
		base, ok, err := classBase(ctx, r, w.ClassName())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("vertex class %q: %w", w.ClassName(), graph.ErrClassNotFound)
		}
		if base != graph.BaseVertex {
			return fmt.Errorf("class %q is not a vertex class", w.ClassName())
		}
		props := encodeProps(w.Values(false))
		props[versionKey] = int64(1)
		recs, err := r.run(ctx, "CREATE (n:"+quoteName(w.ClassName())+") SET n = $props RETURN "+s.flavor.idOf("n", nodeEntity)+" AS rid",
			map[string]any{"props": props})
		if err != nil {
			return writeError(w.ClassName(), err)
		}
		if len(recs) == 0 {
			return fmt.Errorf("create %s: no identity returned", w.ClassName())
		}
		b.vertices[w] = saved{rid: graph.RID(rows(recs)[0].getString("rid")), version: 1}
		return nil
	}

	rid := w.Identity()
	recs, err := r.run(ctx, "MATCH (n) WHERE "+s.flavor.matchID("n", nodeEntity, "rid")+" RETURN n."+versionKey+" AS version",
		map[string]any{"rid": string(rid)})
	if err != nil {
		return fmt.Errorf("save %s: %w", rid, err)
	}
	if len(recs) == 0 {
		return graph.NewNotFoundError(rid)
	}
	changes := w.Values(true)
	if len(changes) == 0 {
		b.vertices[w] = saved{rid: rid, version: rows(recs)[0].getInt64("version")}
		return nil
	}

	set := make(map[string]any, len(changes))
	var remove []string
	for k, v := range changes {
		if c := toCypher(v); c != nil {
			set[k] = c
		} else {
			remove = append(remove, "n."+quoteName(k))
		}
	}
	sort.Strings(remove)
	cypher := "MATCH (n) WHERE " + s.flavor.matchID("n", nodeEntity, "rid") +
		" SET n += $set, n." + versionKey + " = coalesce(n." + versionKey + ", 0) + 1"
	if len(remove) > 0 {
		cypher += " REMOVE " + strings.Join(remove, ", ")
	}
	cypher += " RETURN n." + versionKey + " AS version"

	recs, err = r.run(ctx, cypher, map[string]any{"rid": string(rid), "set": set})
	if err != nil {
		return writeError(w.ClassName(), err)
	}
	if len(recs) == 0 {
		return graph.NewNotFoundError(rid)
	}
	b.vertices[w] = saved{rid: rid, version: rows(recs)[0].getInt64("version")}
	return nil
}

func (s *Session) saveEdge(ctx context.Context, r runner, e *graph.Edge, b *batch) error {
	out := b.rid(e.OutVertex(), e.Out())
	in := b.rid(e.InVertex(), e.In())
	if out.IsZero() || in.IsZero() {
		return fmt.Errorf("edge %s: endpoint has no identity", e.Label())
	}

	base, ok, err := classBase(ctx, r, e.Label())
	if err != nil {
		return err
	}
	if !ok {
		if err := createClass(ctx, r, e.Label(), graph.BaseEdge); err != nil {
			return err
		}
		s.log.Debug("edge_class_created", map[string]any{"class": e.Label()})
	} else if base != graph.BaseEdge {
		return fmt.Errorf("class %q is not an edge class", e.Label())
	}

	recs, err := r.run(ctx, "MATCH (a), (b) WHERE "+s.flavor.matchID("a", nodeEntity, "out")+" AND "+s.flavor.matchID("b", nodeEntity, "in")+
		" CREATE (a)-[r:"+quoteName(e.Label())+"]->(b) SET r = $props RETURN "+s.flavor.idOf("r", relEntity)+" AS rid",
		map[string]any{"out": string(out), "in": string(in), "props": encodeProps(e.Properties())})
	if err != nil {
		return fmt.Errorf("save edge %s: %w", e.Label(), err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("edge %s %s->%s: %w", e.Label(), out, in, graph.ErrNotFound)
	}
	b.edges[e] = graph.RID(rows(recs)[0].getString("rid"))
	return nil
}

// writeError maps constraint violations to graph.ErrDuplicateKey.
func writeError(class string, err error) error {
	if isConstraint(err) {
		return fmt.Errorf("write %s: %w: %v", class, graph.ErrDuplicateKey, err)
	}
	return fmt.Errorf("write %s: %w", class, err)
}

func isConstraint(err error) bool {
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		return strings.Contains(ne.Code, "ConstraintValidationFailed")
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
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
	r, err := s.runner()
	if err != nil {
		return nil, err
	}
	var edges []*graph.Edge
	if !v.IsNew() {
		edges, err = s.persistedEdges(ctx, r, v.Identity(), d, label)
		if err != nil {
			return nil, err
		}
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

func (s *Session) persistedEdges(ctx context.Context, r runner, rid graph.RID, d graph.Direction, label string) ([]*graph.Edge, error) {
	p := map[string]any{"rid": string(rid)}
	recs, err := r.run(ctx, "MATCH (n) WHERE "+s.flavor.matchID("n", nodeEntity, "rid")+" RETURN count(n) AS n", p)
	if err != nil {
		return nil, fmt.Errorf("edges of %s: %w", rid, err)
	}
	if len(recs) == 0 || rows(recs)[0].getInt64("n") == 0 {
		return nil, graph.NewNotFoundError(rid)
	}

	filter := ""
	if label != "" {
		filter = " AND type(r) = $label"
		p["label"] = label
	}
	var edges []*graph.Edge
	seen := make(map[graph.RID]bool)
	for _, dir := range []graph.Direction{graph.Out, graph.In} {
		if d != graph.Both && d != dir {
			continue
		}
		cypher := "MATCH (n)-[r]->(m) WHERE " + s.flavor.matchID("n", nodeEntity, "rid") + filter +
			" RETURN r, " + s.flavor.idOf("n", nodeEntity) + " AS out, " + s.flavor.idOf("m", nodeEntity) + " AS in ORDER BY type(r), id(r)"
		if dir == graph.In {
			cypher = "MATCH (n)<-[r]-(m) WHERE " + s.flavor.matchID("n", nodeEntity, "rid") + filter +
				" RETURN r, " + s.flavor.idOf("m", nodeEntity) + " AS out, " + s.flavor.idOf("n", nodeEntity) + " AS in ORDER BY type(r), id(r)"
		}
		recs, err := r.run(ctx, cypher, p)
		if err != nil {
			return nil, fmt.Errorf("edges of %s: %w", rid, err)
		}
		for i, rr := range rows(recs) {
			rel, ok := recs[i].Values[0].(dbtype.Relationship)
			if !ok {
				return nil, fmt.Errorf("edges of %s: unexpected %T", rid, recs[i].Values[0])
			}
			e := s.edge(rel, rr.getString("out"), rr.getString("in"))
			if seen[e.Identity()] {
				continue
			}
			seen[e.Identity()] = true
			edges = append(edges, e)
		}
	}
	return edges, nil
}

// Delete removes a node with its relationships, or a single relationship.
func (s *Session) Delete(ctx context.Context, rid graph.RID) error {
	return s.atomic(ctx, func(r runner) error {
		p := map[string]any{"rid": string(rid)}
		for _, cypher := range []string{
			"MATCH (n) WHERE " + s.flavor.matchID("n", nodeEntity, "rid") + " DETACH DELETE n RETURN count(*) AS deleted",
			"MATCH ()-[r]->() WHERE " + s.flavor.matchID("r", relEntity, "rid") + " DELETE r RETURN count(*) AS deleted",
		} {
			recs, err := r.run(ctx, cypher, p)
			if err != nil {
				return fmt.Errorf("delete %s: %w", rid, err)
			}
			if len(recs) > 0 && rows(recs)[0].getInt64("deleted") > 0 {
				return nil
			}
		}
		return graph.NewNotFoundError(rid)
	})
}

// Query runs a Cypher statement without writing clauses. Positional
// arguments bind to $p1, $p2...
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]graph.Result, error) {
	if !readOnly(query) {
		return nil, fmt.Errorf("%q is not idempotent, use Command: %w", query, graph.ErrUnsupportedQuery)
	}
	return s.Command(ctx, query, args...)
}

// Command runs any Cypher statement. Rows holding a single node or
// relationship, or a rid column, resolve to records; other rows become
// projections.
func (s *Session) Command(ctx context.Context, command string, args ...any) ([]graph.Result, error) {
	r, err := s.runner()
	if err != nil {
		return nil, err
	}
	recs, err := r.run(ctx, command, params(args))
	if err != nil {
		return nil, fmt.Errorf("cypher: %w", err)
	}

	out := make([]graph.Result, 0, len(recs))
	for _, rec := range recs {
		res, err := s.result(ctx, r, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Session) result(ctx context.Context, r runner, rec *neo4j.Record) (graph.Result, error) {
	if len(rec.Values) == 1 {
		switch x := rec.Values[0].(type) {
		case dbtype.Node:
			return s.vertex(ctx, r, x)
		case dbtype.Relationship:
			return s.load(ctx, r, s.flavor.rid(relEntity, x.Id, x.ElementId))
		}
	}
	values := make([]any, len(rec.Values))
	for i, v := range rec.Values {
		key := rec.Keys[i]
		if rid, ok := v.(string); ok && (key == "rid" || key == "@rid") && rid != "" {
			return s.load(ctx, r, graph.RID(rid))
		}
		values[i] = fromCypher(v)
	}
	return graph.NewProjection(rec.Keys, values), nil
}

// Begin opens an explicit transaction that every later statement of the
// session joins until Commit or Rollback.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.ErrSessionClosed
	}
	if s.tx != nil {
		return graph.ErrTxActive
	}
	tx, err := s.conn.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *Session) Commit(ctx context.Context) error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	if err := tx.rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *Session) takeTx() (txConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graph.ErrSessionClosed
	}
	if s.tx == nil {
		return nil, graph.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return tx, nil
}
