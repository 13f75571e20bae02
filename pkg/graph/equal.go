package graph

import (
	"math/big"
	"reflect"
	"time"
)

// Equal compares two property values the way an engine would store them.
// Numbers compare by value across widths, times by instant, decimals by
// value and lists element-wise.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			return x.Cmp(y) == 0
		}
		return false
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case Date:
		y, ok := b.(Date)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// numeric widens every integer, float and decimal kind to a big.Rat.
func numeric(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case *big.Rat:
		if n == nil {
			return nil, false
		}
		return n, true
	case big.Rat:
		return &n, true
	case *big.Float:
		if n == nil {
			return nil, false
		}
		r, _ := n.Rat(nil)
		return r, r != nil
	case float64:
		r := new(big.Rat)
		if r.SetFloat64(n) == nil {
			return nil, false
		}
		return r, true
	case float32:
		r := new(big.Rat)
		if r.SetFloat64(float64(n)) == nil {
			return nil, false
		}
		return r, true
	case uint64:
		return new(big.Rat).SetUint64(n), true
	case uint:
		return new(big.Rat).SetUint64(uint64(n)), true
	}
	if i, ok := toInt64(v); ok {
		return new(big.Rat).SetInt64(i), true
	}
	return nil, false
}
