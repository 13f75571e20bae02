// Package graph defines the boundary between the object mapper and a
// property-graph engine. High-level code depends on these abstractions,
// concrete engines (memstore, sqlgraph, bolt) implement them.
package graph

import (
	"context"
)

// Params carries named query parameters. Passed as the only argument to
// Session.Query or Session.Command it binds by name instead of position.
type Params map[string]any

// Direction selects which side of a vertex edges are enumerated from.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return "both"
	}
}

// AdjacencyName returns the vertex property under which an engine exposes
// the edges of label in direction d, e.g. "out_Knows".
func AdjacencyName(d Direction, label string) string {
	return d.String() + "_" + label
}

// Schema provides class, property and index management.
type Schema interface {
	// ExistsClass reports whether a class with the given name is defined.
	ExistsClass(ctx context.Context, name string) (bool, error)

	// Class returns the definition of a class.
	Class(ctx context.Context, name string) (ClassInfo, bool, error)

	// CreateClass defines a class extending the vertex or edge base class.
	// Returns ErrClassExists if the class is already defined.
	CreateClass(ctx context.Context, name string, base BaseClass) error

	// CreateProperty declares a typed property on an existing class.
	CreateProperty(ctx context.Context, class, name string, t PropertyType) error

	// CreateIndex declares a named index over properties of an existing class.
	CreateIndex(ctx context.Context, class, name string, kind IndexKind, props ...string) error
}

// Dialect renders the few statements the mapper needs in the engine's own
// query language.
type Dialect interface {
	// SelectAll returns a query yielding every record of class.
	SelectAll(class string) string

	// CountAll returns a query yielding one row with a "count" column.
	CountAll(class string) string
}

// CountColumn is the column name produced by Dialect.CountAll.
const CountColumn = "count"

// Session is a unit of work against one database. Sessions are not safe
// for concurrent use; callers re-affirm ownership with Activate before
// every engine call.
type Session interface {
	// ID identifies the session in logs.
	ID() string

	// Activate binds the session to the caller. Returns ErrSessionClosed
	// once the session has been closed.
	Activate() error

	// Closed reports whether Close has been called.
	Closed() bool

	// Close releases the session.
	Close(ctx context.Context) error

	Schema() Schema
	Dialect() Dialect

	// NewVertex creates a transient vertex of class. It has no identity
	// until saved.
	NewVertex(class string) *Vertex

	// Load returns the record with the given identity: a *Vertex carrying
	// its adjacency bags, or an *Edge. Returns ErrNotFound if absent.
	Load(ctx context.Context, rid RID) (Result, error)

	// Save persists the dirty properties of v, its pending edges and every
	// transient vertex those edges reach. Identities and versions are
	// assigned in place.
	Save(ctx context.Context, v *Vertex) error

	// NewEdge creates an edge from -> to. The edge is pending until from
	// is saved.
	NewEdge(ctx context.Context, from, to *Vertex, label string) (*Edge, error)

	// Edges lists persisted and pending edges of v. An empty label
	// matches every label.
	Edges(ctx context.Context, v *Vertex, d Direction, label string) ([]*Edge, error)

	// Delete removes a vertex (with its edges) or an edge.
	Delete(ctx context.Context, rid RID) error

	// Query runs a read statement in the engine's query language.
	Query(ctx context.Context, query string, args ...any) ([]Result, error)

	// Command runs a statement that may write.
	Command(ctx context.Context, command string, args ...any) ([]Result, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// NamedParams returns the named parameters when args is a single Params
// value.
func NamedParams(args []any) (Params, bool) {
	if len(args) != 1 {
		return nil, false
	}
	switch p := args[0].(type) {
	case Params:
		return p, true
	case map[string]any:
		return Params(p), true
	}
	return nil, false
}
