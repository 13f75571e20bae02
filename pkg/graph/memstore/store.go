// Package memstore provides an in-process graph engine. Records, schema and
// adjacency live in memory; transactions are snapshot/restore.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// Store is one in-memory database. Sessions opened on the same store see
// each other's committed writes.
type Store struct {
	mu  sync.RWMutex
	st  *state
	log *logging.Logger
}

type state struct {
	classes     map[string]*classDef
	vertices    map[graph.RID]*vertexRec
	edges       map[graph.RID]*edgeRec
	nextCluster int
	seq         int64
}

type classDef struct {
	info    graph.ClassInfo
	cluster int
	next    int64
}

type vertexRec struct {
	seq     int64
	class   string
	version int64
	props   map[string]any
	out, in map[string][]graph.RID
}

type edgeRec struct {
	seq     int64
	label   string
	out, in graph.RID
	props   map[string]any
}

// New creates an empty store with the V and E base classes defined.
func New() *Store {
	st := &state{
		classes:     make(map[string]*classDef),
		vertices:    make(map[graph.RID]*vertexRec),
		edges:       make(map[graph.RID]*edgeRec),
		nextCluster: 9,
	}
	st.defineClass(string(graph.BaseVertex), graph.BaseVertex)
	st.defineClass(string(graph.BaseEdge), graph.BaseEdge)
	return &Store{st: st, log: logging.New("memstore")}
}

// Open starts a new session on the store.
func (s *Store) Open() *Session {
	return newSession(s)
}

func (st *state) defineClass(name string, base graph.BaseClass) *classDef {
	c := &classDef{
		info: graph.ClassInfo{
			Name:       name,
			Base:       base,
			Properties: make(map[string]graph.PropertyType),
		},
		cluster: st.nextCluster,
	}
	st.nextCluster++
	st.classes[name] = c
	return c
}

func (st *state) nextRID(c *classDef) graph.RID {
	rid := graph.RID(fmt.Sprintf("#%d:%d", c.cluster, c.next))
	c.next++
	return rid
}

// clone deep-copies the state for transaction snapshots.
func (st *state) clone() *state {
	cp := &state{
		classes:     make(map[string]*classDef, len(st.classes)),
		vertices:    make(map[graph.RID]*vertexRec, len(st.vertices)),
		edges:       make(map[graph.RID]*edgeRec, len(st.edges)),
		nextCluster: st.nextCluster,
		seq:         st.seq,
	}
	for name, c := range st.classes {
		info := c.info
		info.Properties = make(map[string]graph.PropertyType, len(c.info.Properties))
		for k, v := range c.info.Properties {
			info.Properties[k] = v
		}
		info.Indexes = append([]graph.IndexInfo(nil), c.info.Indexes...)
		cp.classes[name] = &classDef{info: info, cluster: c.cluster, next: c.next}
	}
	for rid, v := range st.vertices {
		cp.vertices[rid] = &vertexRec{
			seq:     v.seq,
			class:   v.class,
			version: v.version,
			props:   copyProps(v.props),
			out:     copyAdjacency(v.out),
			in:      copyAdjacency(v.in),
		}
	}
	for rid, e := range st.edges {
		cp.edges[rid] = &edgeRec{seq: e.seq, label: e.label, out: e.out, in: e.in, props: copyProps(e.props)}
	}
	return cp
}

// vertex renders a stored vertex with its adjacency bags.
func (st *state) vertex(rid graph.RID, rec *vertexRec) *graph.Vertex {
	props := copyProps(rec.props)
	for k, b := range graph.BuildBags(graph.Out, rec.out) {
		props[k] = b
	}
	for k, b := range graph.BuildBags(graph.In, rec.in) {
		props[k] = b
	}
	return graph.RestoreVertex(rid, rec.class, rec.version, props)
}

func (st *state) edge(rid graph.RID, rec *edgeRec) *graph.Edge {
	return graph.RestoreEdge(rid, rec.label, rec.out, rec.in, rec.props)
}

// records returns the identities of class in insertion order. V and E
// select every vertex or edge.
func (st *state) records(class string) []graph.RID {
	c, ok := st.classes[class]
	if !ok {
		return nil
	}
	type entry struct {
		rid graph.RID
		seq int64
	}
	var found []entry
	if c.info.Base == graph.BaseEdge {
		for rid, e := range st.edges {
			if class == string(graph.BaseEdge) || e.label == class {
				found = append(found, entry{rid, e.seq})
			}
		}
	} else {
		for rid, v := range st.vertices {
			if class == string(graph.BaseVertex) || v.class == class {
				found = append(found, entry{rid, v.seq})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	rids := make([]graph.RID, len(found))
	for i, e := range found {
		rids[i] = e.rid
	}
	return rids
}

func (st *state) removeEdge(rid graph.RID) {
	e, ok := st.edges[rid]
	if !ok {
		return
	}
	if v, ok := st.vertices[e.out]; ok {
		v.out[e.label] = without(v.out[e.label], rid)
	}
	if v, ok := st.vertices[e.in]; ok {
		v.in[e.label] = without(v.in[e.label], rid)
	}
	delete(st.edges, rid)
}

func (st *state) removeVertex(rid graph.RID) {
	v, ok := st.vertices[rid]
	if !ok {
		return
	}
	for _, adj := range []map[string][]graph.RID{v.out, v.in} {
		for _, rids := range adj {
			for _, e := range append([]graph.RID(nil), rids...) {
				st.removeEdge(e)
			}
		}
	}
	delete(st.vertices, rid)
}

// checkUnique rejects values that collide with another vertex of the same
// class on a unique index.
func (st *state) checkUnique(class string, rid graph.RID, props map[string]any) error {
	c, ok := st.classes[class]
	if !ok {
		return nil
	}
	for _, idx := range c.info.Indexes {
		if !idx.Kind.Unique() || len(idx.Properties) == 0 {
			continue
		}
		for other, rec := range st.vertices {
			if other == rid || rec.class != class {
				continue
			}
			if collides(idx.Properties, props, rec.props) {
				return fmt.Errorf("index %s on %s: %w", idx.Name, class, graph.ErrDuplicateKey)
			}
		}
	}
	return nil
}

func collides(keys []string, a, b map[string]any) bool {
	for _, k := range keys {
		av, bv := a[k], b[k]
		if av == nil || !graph.Equal(av, bv) {
			return false
		}
	}
	return true
}

func without(rids []graph.RID, rid graph.RID) []graph.RID {
	out := rids[:0:0]
	for _, r := range rids {
		if r != rid {
			out = append(out, r)
		}
	}
	return out
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}

func copyAdjacency(in map[string][]graph.RID) map[string][]graph.RID {
	out := make(map[string][]graph.RID, len(in))
	for k, v := range in {
		out[k] = append([]graph.RID(nil), v...)
	}
	return out
}
