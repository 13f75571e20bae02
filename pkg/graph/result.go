package graph

import (
	"sort"
)

// RID is an engine-assigned record identity. The zero value means the
// record has not been persisted.
type RID string

// IsZero reports whether r is unassigned.
func (r RID) IsZero() bool { return r == "" }

func (r RID) String() string { return string(r) }

// Result is one row returned by an engine: *Vertex, *Edge, Projection,
// *Bag or RID. The set is closed.
type Result interface {
	result()
}

func (RID) result()        {}
func (*Vertex) result()    {}
func (*Edge) result()      {}
func (Projection) result() {}
func (*Bag) result()       {}

// Projection is a result row that is not a whole record.
type Projection struct {
	columns []string
	values  map[string]any
}

// NewProjection builds a projection from parallel column/value slices.
func NewProjection(columns []string, values []any) Projection {
	p := Projection{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}
	for i, c := range columns {
		if _, dup := p.values[c]; dup {
			continue
		}
		p.columns = append(p.columns, c)
		if i < len(values) {
			p.values[c] = values[i]
		} else {
			p.values[c] = nil
		}
	}
	return p
}

// Columns returns the column names in query order.
func (p Projection) Columns() []string {
	return append([]string(nil), p.columns...)
}

// Get returns the value of a column.
func (p Projection) Get(column string) (any, bool) {
	v, ok := p.values[column]
	return v, ok
}

// First returns the value of the first column.
func (p Projection) First() (any, bool) {
	if len(p.columns) == 0 {
		return nil, false
	}
	return p.values[p.columns[0]], true
}

// GetString extracts a string column.
func (p Projection) GetString(column string) string {
	if s, ok := p.values[column].(string); ok {
		return s
	}
	return ""
}

// GetInt64 extracts an integer column.
// Handles every integer width and float64 (truncated).
func (p Projection) GetInt64(column string) int64 {
	n, _ := toInt64(p.values[column])
	return n
}

// GetFloat extracts a float64 column.
func (p Projection) GetFloat(column string) float64 {
	switch n := p.values[column].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	if n, ok := toInt64(p.values[column]); ok {
		return float64(n)
	}
	return 0
}

// GetBool extracts a bool column.
func (p Projection) GetBool(column string) bool {
	b, _ := p.values[column].(bool)
	return b
}

// GetStringSlice extracts a []string column.
// Handles both []string and []any containing strings.
func (p Projection) GetStringSlice(column string) []string {
	switch s := p.values[column].(type) {
	case []string:
		return s
	case []any:
		result := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	}
	return 0, false
}

// Bag is an adjacency collection: the identities of the edges of one
// label on one side of a vertex.
type Bag struct {
	dir   Direction
	label string
	rids  []RID
}

// NewBag creates a bag of edge identities seen from direction d.
func NewBag(d Direction, label string, rids ...RID) *Bag {
	return &Bag{dir: d, label: label, rids: append([]RID(nil), rids...)}
}

// Direction is the side of the owning vertex the edges leave from.
func (b *Bag) Direction() Direction { return b.dir }

// Label is the edge label of the bag.
func (b *Bag) Label() string { return b.label }

// Len returns the number of elements.
func (b *Bag) Len() int { return len(b.rids) }

// RIDs returns the elements in engine order.
func (b *Bag) RIDs() []RID { return append([]RID(nil), b.rids...) }

// Contains reports whether rid is an element.
func (b *Bag) Contains(rid RID) bool {
	for _, r := range b.rids {
		if r == rid {
			return true
		}
	}
	return false
}

// BuildBags groups edge identities by label into adjacency properties.
func BuildBags(d Direction, byLabel map[string][]RID) map[string]any {
	out := make(map[string]any, len(byLabel))
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		if len(byLabel[l]) == 0 {
			continue
		}
		out[AdjacencyName(d, l)] = NewBag(d, l, byLabel[l]...)
	}
	return out
}
