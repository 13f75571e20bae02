package bolt

import (
	"math/big"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/joss/ogm/pkg/graph"
)

// Bolt properties hold primitives, temporals and homogeneous lists only.
// Other values are stored as strings behind a marker byte.
const (
	markJSON    = "\x01"
	markDecimal = "\x02"
)

var propJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// toCypher converts a stored property value to a Bolt value.
func toCypher(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, []byte, time.Time:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case *big.Rat:
		if x == nil {
			return nil
		}
		return markDecimal + x.RatString()
	case graph.Date:
		return neo4j.DateOf(x.Time())
	case []any:
		if list, ok := primitiveList(x); ok {
			return list
		}
	}
	s, err := propJSON.MarshalToString(v)
	if err != nil {
		return nil
	}
	return markJSON + s
}

// primitiveList converts a list whose elements share one primitive kind.
func primitiveList(in []any) ([]any, bool) {
	out := make([]any, len(in))
	kind := ""
	for i, e := range in {
		c := toCypher(e)
		var k string
		switch c.(type) {
		case string:
			k = "string"
		case int64:
			k = "int"
		case float64:
			k = "float"
		case bool:
			k = "bool"
		case dbtype.Date:
			k = "date"
		default:
			return nil, false
		}
		if s, ok := c.(string); ok && (strings.HasPrefix(s, markJSON) || strings.HasPrefix(s, markDecimal)) {
			return nil, false
		}
		if kind != "" && kind != k {
			return nil, false
		}
		kind = k
		out[i] = c
	}
	return out, true
}

// fromCypher reverses toCypher.
func fromCypher(v any) any {
	switch x := v.(type) {
	case string:
		switch {
		case strings.HasPrefix(x, markDecimal):
			if r, ok := new(big.Rat).SetString(x[len(markDecimal):]); ok {
				return r
			}
		case strings.HasPrefix(x, markJSON):
			var out any
			if err := propJSON.UnmarshalFromString(x[len(markJSON):], &out); err == nil {
				return out
			}
		}
		return x
	case dbtype.Date:
		return graph.DateOf(x.Time())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromCypher(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromCypher(e)
		}
		return out
	}
	return v
}

// encodeProps converts a property map for SET, dropping nil values.
func encodeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if c := toCypher(v); c != nil {
			out[k] = c
		}
	}
	return out
}

// decodeProps converts server properties, dropping engine keys.
func decodeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == versionKey {
			continue
		}
		out[k] = fromCypher(v)
	}
	return out
}
