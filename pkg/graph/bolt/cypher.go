package bolt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"

	"github.com/joss/ogm/pkg/graph"
)

// Catalog labels. The server has no class hierarchy, so declared classes,
// properties and indexes are recorded as nodes next to the data.
const (
	labelClass    = "_OgmClass"
	labelProperty = "_OgmProperty"
	labelIndex    = "_OgmIndex"

	versionKey = "_version"
)

// entity distinguishes node and relationship identities. Memgraph numbers
// both from zero, so its identities carry the kind as a prefix.
type entity byte

const (
	nodeEntity entity = 'v'
	relEntity  entity = 'e'
)

func (k entity) prefix() string { return "#" + string(k) + ":" }

// idOf renders the expression yielding the identity of alias.
func (f Flavor) idOf(alias string, k entity) string {
	if f == FlavorMemgraph {
		return "'" + k.prefix() + "' + toString(id(" + alias + "))"
	}
	return "elementId(" + alias + ")"
}

// matchID renders a predicate selecting alias by the identity in $param.
func (f Flavor) matchID(alias string, k entity, param string) string {
	if f == FlavorMemgraph {
		return "($" + param + " STARTS WITH '" + k.prefix() + "' AND id(" + alias + ") = toInteger(substring($" + param + ", " +
			strconv.Itoa(len(k.prefix())) + ")))"
	}
	return "elementId(" + alias + ") = $" + param
}

// rid returns the identity the server assigned to a node or relationship.
func (f Flavor) rid(k entity, id int64, elementID string) graph.RID {
	if f == FlavorMemgraph {
		return graph.RID(k.prefix() + strconv.FormatInt(id, 10))
	}
	return graph.RID(elementID)
}

// quoteName renders a label, type or property name as a Cypher identifier.
func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// indexIdent derives a server-side index name: "Person.name" becomes
// "person_name".
func indexIdent(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	return inflect.Underscore(cleaned)
}

// indexStatements renders the DDL enforcing an index. Kinds the server
// cannot express are kept in the catalog only.
func (f Flavor) indexStatements(class, name string, kind graph.IndexKind, props []string) []string {
	label := quoteName(class)
	ident := indexIdent(name)
	fields := make([]string, len(props))
	for i, p := range props {
		fields[i] = "n." + quoteName(p)
	}

	if f == FlavorMemgraph {
		if kind.Unique() {
			return []string{fmt.Sprintf("CREATE CONSTRAINT ON (n:%s) ASSERT %s IS UNIQUE", label, strings.Join(fields, ", "))}
		}
		if kind == graph.IndexFullText {
			return nil
		}
		out := make([]string, len(props))
		for i, p := range props {
			out[i] = fmt.Sprintf("CREATE INDEX ON :%s(%s)", label, quoteName(p))
		}
		return out
	}

	switch {
	case kind.Unique() && len(fields) == 1:
		return []string{fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE %s IS UNIQUE", ident, label, fields[0])}
	case kind.Unique():
		return []string{fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE (%s) IS UNIQUE", ident, label, strings.Join(fields, ", "))}
	case kind == graph.IndexFullText:
		return []string{fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [%s]", ident, label, strings.Join(fields, ", "))}
	default:
		return []string{fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (%s)", ident, label, strings.Join(fields, ", "))}
	}
}

var writeClauses = map[string]bool{
	"CREATE": true,
	"MERGE":  true,
	"SET":    true,
	"DELETE": true,
	"DETACH": true,
	"REMOVE": true,
	"DROP":   true,
	"LOAD":   true,
}

// readOnly reports whether a Cypher statement has no writing clause.
func readOnly(cypher string) bool {
	words := strings.FieldsFunc(strings.ToUpper(cypher), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if writeClauses[w] {
			return false
		}
	}
	return true
}

// params turns call arguments into Cypher parameters: a single
// graph.Params is used as is, positional arguments become $p1, $p2...
func params(args []any) map[string]any {
	if named, ok := graph.NamedParams(args); ok {
		out := make(map[string]any, len(named))
		for k, v := range named {
			out[k] = toCypher(v)
		}
		return out
	}
	out := make(map[string]any, len(args))
	for i, v := range args {
		out["p"+strconv.Itoa(i+1)] = toCypher(v)
	}
	return out
}

type dialect struct{}

func (d dialect) SelectAll(class string) string {
	return "MATCH (n:" + quoteName(class) + ") RETURN n ORDER BY id(n)"
}

func (d dialect) CountAll(class string) string {
	return "MATCH (n:" + quoteName(class) + ") RETURN count(n) AS " + graph.CountColumn
}
