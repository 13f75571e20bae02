package memstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joss/ogm/pkg/graph"
)

// The store understands a small SQL subset:
//
//	SELECT [* | COUNT(*) [AS a] | col [AS a], ...] FROM <class|rid>
//	       [WHERE cond [AND cond]...] [ORDER BY col [ASC|DESC]] [LIMIT n]
//	DELETE VERTEX|EDGE <class|rid> [WHERE ...]
//	UPDATE <class|rid> SET col = value [, ...] [WHERE ...]
//
// cond is "col op value" (op one of = != <> < <= > >=) or "col IS [NOT] NULL".
// value is ?, :name, a quoted string, a number, true, false or null.

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tRID
	tString
	tNumber
	tSym
	tParam
	tNamed
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'' || r == '"':
			j := i + 1
			var sb strings.Builder
			for ; j < len(rs) && rs[j] != r; j++ {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				sb.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("unterminated string at %d: %w", i, graph.ErrUnsupportedQuery)
			}
			toks = append(toks, token{tString, sb.String()})
			i = j + 1
		case r == '#':
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == ':' || rs[j] == '-') {
				j++
			}
			toks = append(toks, token{tRID, string(rs[i:j])})
			i = j
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tNumber, string(rs[i:j])})
			i = j
		case isIdentStart(r):
			j := i + 1
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			toks = append(toks, token{tIdent, string(rs[i:j])})
			i = j
		case r == '?':
			toks = append(toks, token{tParam, "?"})
			i++
		case r == ':':
			j := i + 1
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty parameter name at %d: %w", i, graph.ErrUnsupportedQuery)
			}
			toks = append(toks, token{tNamed, string(rs[i+1 : j])})
			i = j
		case strings.ContainsRune("<>!", r) && i+1 < len(rs) && (rs[i+1] == '=' || (r == '<' && rs[i+1] == '>')):
			toks = append(toks, token{tSym, string(rs[i : i+2])})
			i += 2
		case strings.ContainsRune("*(),=<>", r):
			toks = append(toks, token{tSym, string(r)})
			i++
		default:
			return nil, fmt.Errorf("unexpected %q at %d: %w", r, i, graph.ErrUnsupportedQuery)
		}
	}
	return append(toks, token{kind: tEOF}), nil
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' || r == '@' }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) || r == '.' }

type valueExpr struct {
	kind tokenKind
	lit  any
	name string
	pos  int
}

type condition struct {
	field  string
	op     string
	value  valueExpr
	isNull bool
}

var comparators = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

type column struct {
	field, alias string
}

type assignment struct {
	field string
	value valueExpr
}

type statement struct {
	verb    string // SELECT, DELETE, UPDATE
	kind    string // VERTEX or EDGE for DELETE
	count   string // alias when SELECT COUNT(*)
	columns []column
	target  string
	where   []condition
	set     []assignment
	orderBy string
	desc    bool
	limit   int
}

func (s *statement) writes() bool { return s.verb != "SELECT" }

type parser struct {
	toks  []token
	i     int
	param int
}

func parse(src string) (*statement, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.statement()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return stmt, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tIdent && strings.EqualFold(t.text, kw) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(kw string) error {
	if !p.keyword(kw) {
		return fmt.Errorf("expected %s near %q: %w", kw, p.peek().text, graph.ErrUnsupportedQuery)
	}
	return nil
}

func (p *parser) symbol(sym string) bool {
	t := p.peek()
	if t.kind == tSym && t.text == sym {
		p.i++
		return true
	}
	return false
}

func (p *parser) ident() (string, error) {
	t := p.next()
	if t.kind != tIdent {
		return "", fmt.Errorf("expected identifier near %q: %w", t.text, graph.ErrUnsupportedQuery)
	}
	return t.text, nil
}

func (p *parser) statement() (*statement, error) {
	var (
		stmt = &statement{limit: -1}
		err  error
	)
	switch {
	case p.keyword("SELECT"):
		stmt.verb = "SELECT"
		if err = p.projection(stmt); err != nil {
			return nil, err
		}
		if err = p.expect("FROM"); err != nil {
			return nil, err
		}
	case p.keyword("DELETE"):
		stmt.verb = "DELETE"
		switch {
		case p.keyword("VERTEX"):
			stmt.kind = "VERTEX"
		case p.keyword("EDGE"):
			stmt.kind = "EDGE"
		default:
			return nil, fmt.Errorf("DELETE needs VERTEX or EDGE: %w", graph.ErrUnsupportedQuery)
		}
	case p.keyword("UPDATE"):
		stmt.verb = "UPDATE"
	default:
		return nil, fmt.Errorf("unknown statement %q: %w", p.peek().text, graph.ErrUnsupportedQuery)
	}

	t := p.next()
	if t.kind != tIdent && t.kind != tRID {
		return nil, fmt.Errorf("expected class or record near %q: %w", t.text, graph.ErrUnsupportedQuery)
	}
	stmt.target = t.text

	if stmt.verb == "UPDATE" {
		if err = p.expect("SET"); err != nil {
			return nil, err
		}
		for {
			field, err := p.ident()
			if err != nil {
				return nil, err
			}
			if !p.symbol("=") {
				return nil, fmt.Errorf("expected = after %s: %w", field, graph.ErrUnsupportedQuery)
			}
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			stmt.set = append(stmt.set, assignment{field, v})
			if !p.symbol(",") {
				break
			}
		}
	}

	if p.keyword("WHERE") {
		for {
			c, err := p.condition()
			if err != nil {
				return nil, err
			}
			stmt.where = append(stmt.where, c)
			if !p.keyword("AND") {
				break
			}
		}
	}
	if stmt.verb == "SELECT" && p.keyword("ORDER") {
		if err = p.expect("BY"); err != nil {
			return nil, err
		}
		if stmt.orderBy, err = p.ident(); err != nil {
			return nil, err
		}
		if p.keyword("DESC") {
			stmt.desc = true
		} else {
			p.keyword("ASC")
		}
	}
	if stmt.verb == "SELECT" && p.keyword("LIMIT") {
		t := p.next()
		n, err := strconv.Atoi(t.text)
		if t.kind != tNumber || err != nil || n < 0 {
			return nil, fmt.Errorf("bad LIMIT %q: %w", t.text, graph.ErrUnsupportedQuery)
		}
		stmt.limit = n
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, fmt.Errorf("unexpected %q: %w", t.text, graph.ErrUnsupportedQuery)
	}
	return stmt, nil
}

func (p *parser) projection(stmt *statement) error {
	if p.symbol("*") {
		return nil
	}
	if t := p.peek(); t.kind == tIdent && strings.EqualFold(t.text, "COUNT") && p.toks[p.i+1].text == "(" {
		p.i += 2
		if !p.symbol("*") || !p.symbol(")") {
			return fmt.Errorf("only COUNT(*) is supported: %w", graph.ErrUnsupportedQuery)
		}
		stmt.count = "COUNT(*)"
		if p.keyword("AS") {
			alias, err := p.ident()
			if err != nil {
				return err
			}
			stmt.count = alias
		}
		return nil
	}
	for {
		t := p.peek()
		if t.kind != tIdent || strings.EqualFold(t.text, "FROM") {
			return nil
		}
		p.i++
		col := column{field: t.text, alias: t.text}
		if p.keyword("AS") {
			alias, err := p.ident()
			if err != nil {
				return err
			}
			col.alias = alias
		}
		stmt.columns = append(stmt.columns, col)
		if !p.symbol(",") {
			return nil
		}
	}
}

func (p *parser) condition() (condition, error) {
	field, err := p.ident()
	if err != nil {
		return condition{}, err
	}
	if p.keyword("IS") {
		c := condition{field: field, op: "=", isNull: true}
		if p.keyword("NOT") {
			c.op = "!="
		}
		if err := p.expect("NULL"); err != nil {
			return condition{}, err
		}
		return c, nil
	}
	t := p.next()
	if t.kind != tSym || !comparators[t.text] {
		return condition{}, fmt.Errorf("bad operator %q: %w", t.text, graph.ErrUnsupportedQuery)
	}
	op := t.text
	if op == "<>" {
		op = "!="
	}
	v, err := p.value()
	if err != nil {
		return condition{}, err
	}
	return condition{field: field, op: op, value: v}, nil
}

func (p *parser) value() (valueExpr, error) {
	t := p.next()
	switch t.kind {
	case tParam:
		v := valueExpr{kind: tParam, pos: p.param}
		p.param++
		return v, nil
	case tNamed:
		return valueExpr{kind: tNamed, name: t.text}, nil
	case tString:
		return valueExpr{kind: tString, lit: t.text}, nil
	case tRID:
		return valueExpr{kind: tRID, lit: graph.RID(t.text)}, nil
	case tNumber:
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return valueExpr{}, fmt.Errorf("bad number %q: %w", t.text, graph.ErrUnsupportedQuery)
			}
			return valueExpr{kind: tNumber, lit: f}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return valueExpr{}, fmt.Errorf("bad number %q: %w", t.text, graph.ErrUnsupportedQuery)
		}
		return valueExpr{kind: tNumber, lit: n}, nil
	case tIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return valueExpr{kind: tIdent, lit: true}, nil
		case "false":
			return valueExpr{kind: tIdent, lit: false}, nil
		case "null":
			return valueExpr{kind: tIdent, lit: nil}, nil
		}
	}
	return valueExpr{}, fmt.Errorf("expected value near %q: %w", t.text, graph.ErrUnsupportedQuery)
}

// binder resolves ? and :name placeholders.
type binder struct {
	positional []any
	named      graph.Params
}

func newBinder(args []any) (*binder, error) {
	if named, ok := graph.NamedParams(args); ok {
		return &binder{named: named}, nil
	}
	return &binder{positional: args}, nil
}

func (b *binder) resolve(v valueExpr) (any, error) {
	switch v.kind {
	case tParam:
		if v.pos >= len(b.positional) {
			return nil, fmt.Errorf("missing positional parameter %d: %w", v.pos+1, graph.ErrUnsupportedQuery)
		}
		return b.positional[v.pos], nil
	case tNamed:
		val, ok := b.named[v.name]
		if !ok {
			return nil, fmt.Errorf("missing parameter :%s: %w", v.name, graph.ErrUnsupportedQuery)
		}
		return val, nil
	}
	return v.lit, nil
}

// record is a vertex or edge row during evaluation.
type record struct {
	rid    graph.RID
	vertex *vertexRec
	edge   *edgeRec
}

func (r record) field(st *state, name string) any {
	switch name {
	case "@rid":
		return r.rid
	case "@version":
		if r.vertex != nil {
			return r.vertex.version
		}
		return int64(1)
	case "@class":
		if r.vertex != nil {
			return r.vertex.class
		}
		return r.edge.label
	}
	if r.edge != nil {
		switch name {
		case "out":
			return r.edge.out
		case "in":
			return r.edge.in
		}
		return r.edge.props[name]
	}
	if graph.IsAdjacency(name) {
		dir, label := graph.Out, strings.TrimPrefix(name, "out_")
		adj := r.vertex.out
		if strings.HasPrefix(name, "in_") {
			dir, label, adj = graph.In, strings.TrimPrefix(name, "in_"), r.vertex.in
		}
		if len(adj[label]) == 0 {
			return nil
		}
		return graph.NewBag(dir, label, adj[label]...)
	}
	return r.vertex.props[name]
}

func (r record) result(st *state) graph.Result {
	if r.vertex != nil {
		return st.vertex(r.rid, r.vertex)
	}
	return st.edge(r.rid, r.edge)
}

func (s *statement) exec(st *state, b *binder) ([]graph.Result, error) {
	rows, err := s.scan(st, b)
	if err != nil {
		return nil, err
	}
	switch s.verb {
	case "DELETE":
		for _, r := range rows {
			if s.kind == "VERTEX" {
				if r.vertex == nil {
					return nil, fmt.Errorf("%s is not a vertex: %w", r.rid, graph.ErrUnsupportedQuery)
				}
				st.removeVertex(r.rid)
			} else {
				if r.edge == nil {
					return nil, fmt.Errorf("%s is not an edge: %w", r.rid, graph.ErrUnsupportedQuery)
				}
				st.removeEdge(r.rid)
			}
		}
		return []graph.Result{countRow(graph.CountColumn, len(rows))}, nil
	case "UPDATE":
		for _, r := range rows {
			if r.vertex == nil {
				return nil, fmt.Errorf("%s is not a vertex: %w", r.rid, graph.ErrUnsupportedQuery)
			}
			for _, a := range s.set {
				val, err := b.resolve(a.value)
				if err != nil {
					return nil, err
				}
				if val == nil {
					delete(r.vertex.props, a.field)
				} else {
					r.vertex.props[a.field] = val
				}
			}
			r.vertex.version++
		}
		return []graph.Result{countRow(graph.CountColumn, len(rows))}, nil
	}

	if s.count != "" {
		return []graph.Result{countRow(s.count, len(rows))}, nil
	}
	if s.orderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			c := compare(rows[i].field(st, s.orderBy), rows[j].field(st, s.orderBy))
			if s.desc {
				return c > 0
			}
			return c < 0
		})
	}
	if s.limit >= 0 && len(rows) > s.limit {
		rows = rows[:s.limit]
	}
	out := make([]graph.Result, 0, len(rows))
	for _, r := range rows {
		if len(s.columns) == 0 {
			out = append(out, r.result(st))
			continue
		}
		cols := make([]string, len(s.columns))
		vals := make([]any, len(s.columns))
		for i, c := range s.columns {
			cols[i] = c.alias
			vals[i] = r.field(st, c.field)
		}
		out = append(out, graph.NewProjection(cols, vals))
	}
	return out, nil
}

func countRow(alias string, n int) graph.Projection {
	return graph.NewProjection([]string{alias}, []any{int64(n)})
}

func (s *statement) scan(st *state, b *binder) ([]record, error) {
	var candidates []record
	if strings.HasPrefix(s.target, "#") {
		rid := graph.RID(s.target)
		if v, ok := st.vertices[rid]; ok {
			candidates = append(candidates, record{rid: rid, vertex: v})
		} else if e, ok := st.edges[rid]; ok {
			candidates = append(candidates, record{rid: rid, edge: e})
		}
	} else {
		if _, ok := st.classes[s.target]; !ok {
			return nil, fmt.Errorf("class %q: %w", s.target, graph.ErrClassNotFound)
		}
		for _, rid := range st.records(s.target) {
			if v, ok := st.vertices[rid]; ok {
				candidates = append(candidates, record{rid: rid, vertex: v})
			} else {
				candidates = append(candidates, record{rid: rid, edge: st.edges[rid]})
			}
		}
	}

	rows := candidates[:0]
	for _, r := range candidates {
		ok, err := s.matches(st, b, r)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s *statement) matches(st *state, b *binder, r record) (bool, error) {
	for _, c := range s.where {
		got := r.field(st, c.field)
		var want any
		if !c.isNull {
			v, err := b.resolve(c.value)
			if err != nil {
				return false, err
			}
			want = v
		}
		if rid, ok := got.(graph.RID); ok {
			got = string(rid)
		}
		if rid, ok := want.(graph.RID); ok {
			want = string(rid)
		}
		var ok bool
		switch c.op {
		case "=":
			ok = graph.Equal(got, want)
		case "!=":
			ok = !graph.Equal(got, want)
		default:
			if got == nil || want == nil {
				return false, nil
			}
			cmp := compare(got, want)
			switch c.op {
			case "<":
				ok = cmp < 0
			case "<=":
				ok = cmp <= 0
			case ">":
				ok = cmp > 0
			case ">=":
				ok = cmp >= 0
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compare orders nil first, then numbers, strings, times and bools.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok && x != y {
			if !x {
				return -1
			}
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
