package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// Session implements graph.Session over a Store. Statements run in the
// session's open transaction if there is one; writes outside a
// transaction run in a transaction of their own.
type Session struct {
	id    string
	store *Store
	log   *logging.Logger

	mu     sync.Mutex
	closed bool
	tx     *sql.Tx
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

// Close rolls back an open transaction and closes the session. The store
// stays open.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.ErrSessionClosed
	}
	s.closed = true
	if s.tx != nil {
		err := s.tx.Rollback()
		s.tx = nil
		if err != nil {
			return fmt.Errorf("rollback on close: %w", err)
		}
	}
	s.log.Debug("session_closed", nil)
	return nil
}

func (s *Session) Schema() graph.Schema   { return schema{s} }
func (s *Session) Dialect() graph.Dialect { return dialect{} }

func (s *Session) conn() (querier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, graph.ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.store.db, nil
}

// atomic runs fn in the open transaction, or in one of its own.
func (s *Session) atomic(ctx context.Context, fn func(q querier) error) error {
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

	own, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(own); err != nil {
		_ = own.Rollback()
		return err
	}
	if err := own.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) NewVertex(class string) *graph.Vertex {
	return graph.NewVertex(class)
}

// Load returns the vertex or edge stored under rid.
func (s *Session) Load(ctx context.Context, rid graph.RID) (graph.Result, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, q, rid)
}

func (s *Session) load(ctx context.Context, q querier, rid graph.RID) (graph.Result, error) {
	var (
		class   string
		version int64
		blob    []byte
	)
	err := q.QueryRowContext(ctx, `SELECT class, version, props FROM vertices WHERE rid = ?`, string(rid)).
		Scan(&class, &version, &blob)
	switch {
	case err == nil:
		props, err := decodeProps(blob)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", rid, err)
		}
		bags, err := s.adjacency(ctx, q, rid)
		if err != nil {
			return nil, err
		}
		for k, b := range bags {
			props[k] = b
		}
		return graph.RestoreVertex(rid, class, version, props), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}

	var label, out, in string
	err = q.QueryRowContext(ctx, `SELECT label, out_rid, in_rid, props FROM edges WHERE rid = ?`, string(rid)).
		Scan(&label, &out, &in, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, graph.NewNotFoundError(rid)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}
	props, err := decodeProps(blob)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}
	return graph.RestoreEdge(rid, label, graph.RID(out), graph.RID(in), props), nil
}

// adjacency builds the out_ and in_ bags of a vertex.
func (s *Session) adjacency(ctx context.Context, q querier, rid graph.RID) (map[string]any, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT rid, label, out_rid, in_rid FROM edges WHERE out_rid = ? OR in_rid = ? ORDER BY rid`,
		string(rid), string(rid))
	if err != nil {
		return nil, fmt.Errorf("adjacency %s: %w", rid, err)
	}
	defer rows.Close()

	out := make(map[string][]graph.RID)
	in := make(map[string][]graph.RID)
	for rows.Next() {
		var erid, label, from, to string
		if err := rows.Scan(&erid, &label, &from, &to); err != nil {
			return nil, err
		}
		if graph.RID(from) == rid {
			out[label] = append(out[label], graph.RID(erid))
		}
		if graph.RID(to) == rid {
			in[label] = append(in[label], graph.RID(erid))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bags := graph.BuildBags(graph.Out, out)
	for k, b := range graph.BuildBags(graph.In, in) {
		bags[k] = b
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

	err := s.atomic(ctx, func(q querier) error {
		for _, w := range order {
			if err := s.saveVertex(ctx, q, w, b); err != nil {
				return err
			}
		}
		for _, w := range order {
			for _, e := range w.Pending() {
				if err := s.saveEdge(ctx, q, e, b); err != nil {
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

func (s *Session) classBase(ctx context.Context, q querier, class string) (graph.BaseClass, bool, error) {
	var base string
	err := q.QueryRowContext(ctx, `SELECT base FROM classes WHERE name = ?`, class).Scan(&base)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("class %s: %w", class, err)
	}
	return graph.BaseClass(base), true, nil
}

func (s *Session) saveVertex(ctx context.Context, q querier, w *graph.Vertex, b *batch) error {
	if w.IsNew() {
		base, ok, err := s.classBase(ctx, q, w.ClassName())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("vertex class %q: %w", w.ClassName(), graph.ErrClassNotFound)
		}
		if base != graph.BaseVertex {
			return fmt.Errorf("class %q is not a vertex class", w.ClassName())
		}
		props := dropNil(w.Values(false))
		rid := s.store.nextRID()
		if err := s.writeVertex(ctx, q, `INSERT INTO vertices (props, doc, version, rid, class) VALUES (?, ?, ?, ?, ?)`,
			props, 1, rid, w.ClassName()); err != nil {
			return err
		}
		b.vertices[w] = saved{rid: rid, version: 1}
		return nil
	}

	var (
		class   string
		version int64
		blob    []byte
	)
	err := q.QueryRowContext(ctx, `SELECT class, version, props FROM vertices WHERE rid = ?`, string(w.Identity())).
		Scan(&class, &version, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.NewNotFoundError(w.Identity())
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", w.Identity(), err)
	}
	changes := w.Values(true)
	if len(changes) == 0 {
		b.vertices[w] = saved{rid: w.Identity(), version: version}
		return nil
	}

	props, err := decodeProps(blob)
	if err != nil {
		return err
	}
	for k, val := range changes {
		props[k] = val
	}
	props = dropNil(props)
	version++
	if err := s.writeVertex(ctx, q, `UPDATE vertices SET props = ?, doc = ?, version = ? WHERE rid = ? AND class = ?`,
		props, version, w.Identity(), class); err != nil {
		return err
	}
	b.vertices[w] = saved{rid: w.Identity(), version: version}
	return nil
}

// writeVertex runs an INSERT or UPDATE taking (props, doc, version, rid,
// class) and refreshes the unique index entries of the vertex.
func (s *Session) writeVertex(ctx context.Context, q querier, stmt string, props map[string]any, version int64, rid graph.RID, class string) error {
	blob, err := encodeProps(props)
	if err != nil {
		return err
	}
	doc, err := encodeDoc(props)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, stmt, blob, doc, version, string(rid), class); err != nil {
		return fmt.Errorf("write %s: %w", rid, err)
	}
	return s.indexKeys(ctx, q, class, rid, props)
}

// indexKeys replaces the unique index entries of a vertex. A collision
// with another vertex fails with graph.ErrDuplicateKey.
func (s *Session) indexKeys(ctx context.Context, q querier, class string, rid graph.RID, props map[string]any) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM index_keys WHERE rid = ?`, string(rid)); err != nil {
		return fmt.Errorf("index keys %s: %w", rid, err)
	}
	indexes, err := schema{s}.indexes(ctx, q, class)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if !idx.Kind.Unique() {
			continue
		}
		values := make([]any, 0, len(idx.Properties))
		for _, p := range idx.Properties {
			if v, ok := props[p]; ok {
				values = append(values, v)
			}
		}
		if len(values) < len(idx.Properties) {
			continue
		}
		key, err := encodeKey(values)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `INSERT INTO index_keys (name, value_key, rid) VALUES (?, ?, ?)`, idx.Name, key, string(rid))
		if isConstraint(err) {
			return fmt.Errorf("index %s on %s: %w", idx.Name, class, graph.ErrDuplicateKey)
		}
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}
	return nil
}

func (s *Session) saveEdge(ctx context.Context, q querier, e *graph.Edge, b *batch) error {
	out := b.rid(e.OutVertex(), e.Out())
	in := b.rid(e.InVertex(), e.In())
	if out.IsZero() || in.IsZero() {
		return fmt.Errorf("edge %s: endpoint has no identity", e.Label())
	}

	base, ok, err := s.classBase(ctx, q, e.Label())
	if err != nil {
		return err
	}
	if !ok {
		if _, err := q.ExecContext(ctx, `INSERT INTO classes (name, base) VALUES (?, ?)`, e.Label(), string(graph.BaseEdge)); err != nil {
			return fmt.Errorf("create edge class %s: %w", e.Label(), err)
		}
		s.log.Debug("edge_class_created", map[string]any{"class": e.Label()})
	} else if base != graph.BaseEdge {
		return fmt.Errorf("class %q is not an edge class", e.Label())
	}

	blob, err := encodeProps(dropNil(e.Properties()))
	if err != nil {
		return err
	}
	rid := s.store.nextRID()
	_, err = q.ExecContext(ctx, `INSERT INTO edges (rid, label, out_rid, in_rid, props) VALUES (?, ?, ?, ?, ?)`,
		string(rid), e.Label(), string(out), string(in), blob)
	if isConstraint(err) {
		return fmt.Errorf("edge %s %s->%s: %w", e.Label(), out, in, graph.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save edge %s: %w", e.Label(), err)
	}
	b.edges[e] = rid
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
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	var edges []*graph.Edge
	if !v.IsNew() {
		edges, err = s.persistedEdges(ctx, q, v.Identity(), d, label)
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

func (s *Session) persistedEdges(ctx context.Context, q querier, rid graph.RID, d graph.Direction, label string) ([]*graph.Edge, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vertices WHERE rid = ?`, string(rid)).Scan(&n); err != nil {
		return nil, fmt.Errorf("edges of %s: %w", rid, err)
	}
	if n == 0 {
		return nil, graph.NewNotFoundError(rid)
	}

	var where string
	args := []any{string(rid)}
	switch d {
	case graph.Out:
		where = "out_rid = ?"
	case graph.In:
		where = "in_rid = ?"
	default:
		where = "(out_rid = ? OR in_rid = ?)"
		args = append(args, string(rid))
	}
	if label != "" {
		where += " AND label = ?"
		args = append(args, label)
	}
	rows, err := q.QueryContext(ctx, `SELECT rid, label, out_rid, in_rid, props FROM edges WHERE `+where+` ORDER BY label, rid`, args...)
	if err != nil {
		return nil, fmt.Errorf("edges of %s: %w", rid, err)
	}
	defer rows.Close()

	var edges []*graph.Edge
	for rows.Next() {
		var erid, l, out, in string
		var blob []byte
		if err := rows.Scan(&erid, &l, &out, &in, &blob); err != nil {
			return nil, err
		}
		props, err := decodeProps(blob)
		if err != nil {
			return nil, err
		}
		edges = append(edges, graph.RestoreEdge(graph.RID(erid), l, graph.RID(out), graph.RID(in), props))
	}
	return edges, rows.Err()
}

// Delete removes a vertex with its edges, or a single edge.
func (s *Session) Delete(ctx context.Context, rid graph.RID) error {
	return s.atomic(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM edges WHERE out_rid = ? OR in_rid = ?`, string(rid), string(rid)); err != nil {
			return fmt.Errorf("delete %s: %w", rid, err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM index_keys WHERE rid = ?`, string(rid)); err != nil {
			return fmt.Errorf("delete %s: %w", rid, err)
		}
		for _, stmt := range []string{
			`DELETE FROM vertices WHERE rid = ?`,
			`DELETE FROM edges WHERE rid = ?`,
		} {
			res, err := q.ExecContext(ctx, stmt, string(rid))
			if err != nil {
				return fmt.Errorf("delete %s: %w", rid, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				return nil
			}
		}
		return graph.NewNotFoundError(rid)
	})
}

// Query runs a read-only SQL statement. Rows with a rid column resolve to
// the record they name; other rows become projections.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]graph.Result, error) {
	if !readOnly(query) {
		return nil, fmt.Errorf("%q is not idempotent, use Command: %w", query, graph.ErrUnsupportedQuery)
	}
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, q, query, args)
}

// Command runs any SQL statement. Statements without rows return a
// single projection holding the affected row count.
func (s *Session) Command(ctx context.Context, command string, args ...any) ([]graph.Result, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	if readOnly(command) {
		return s.query(ctx, q, command, args)
	}
	res, err := q.ExecContext(ctx, command, bind(args)...)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	n, _ := res.RowsAffected()
	return []graph.Result{graph.NewProjection([]string{graph.CountColumn}, []any{n})}, nil
}

func (s *Session) query(ctx context.Context, q querier, text string, args []any) ([]graph.Result, error) {
	rows, err := q.QueryContext(ctx, text, bind(args)...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	var table [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			rows.Close()
			return nil, err
		}
		table = append(table, vals)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	ridCol := -1
	for i, c := range cols {
		if c == "rid" || c == "@rid" {
			ridCol = i
			break
		}
	}
	out := make([]graph.Result, 0, len(table))
	for _, vals := range table {
		if ridCol >= 0 {
			if rid := asRID(vals[ridCol]); !rid.IsZero() {
				rec, err := s.load(ctx, q, rid)
				if err != nil {
					return nil, err
				}
				out = append(out, rec)
				continue
			}
		}
		out = append(out, graph.NewProjection(cols, vals))
	}
	return out, nil
}

func asRID(v any) graph.RID {
	switch x := v.(type) {
	case string:
		return graph.RID(x)
	case []byte:
		return graph.RID(x)
	}
	return ""
}

// bind turns a single graph.Params argument into sql.Named arguments.
func bind(args []any) []any {
	params, ok := graph.NamedParams(args)
	if !ok {
		return args
	}
	out := make([]any, 0, len(params))
	for k, v := range params {
		out = append(out, sql.Named(k, v))
	}
	return out
}

func readOnly(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

// Begin opens a database transaction that every later statement of the
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
	tx, err := s.store.db.BeginTx(ctx, nil)
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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *Session) takeTx() (*sql.Tx, error) {
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

func dropNil(props map[string]any) map[string]any {
	for k, v := range props {
		if v == nil {
			delete(props, k)
		}
	}
	return props
}

type dialect struct{}

func (dialect) SelectAll(class string) string {
	return "SELECT rid FROM vertices WHERE class = " + quote(class) + " ORDER BY rid"
}

func (dialect) CountAll(class string) string {
	return "SELECT COUNT(*) AS " + graph.CountColumn + " FROM vertices WHERE class = " + quote(class)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
