package ogm

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/joss/ogm/pkg/graph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToStorageValue converts a field value into the value written to the
// engine. Enums become their names (nil when outside the registered set),
// lists become []any in order, sets become a deduplicated []any in a stable
// order, decimals become *big.Rat. Elements that convert to nil are
// dropped. Everything else passes through.
func ToStorageValue(declared, elem reflect.Type, value any) any {
	if value == nil {
		return nil
	}
	return toStorage(reflect.ValueOf(value))
}

func toStorage(v reflect.Value) any {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		if v.Type() == reflect.PointerTo(ratType) {
			return new(big.Rat).Set(v.Interface().(*big.Rat))
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if set, ok := lookupEnum(t); ok {
		if name, ok := set.name(v.Interface()); ok {
			return name
		}
		return nil
	}
	switch t {
	case ratType:
		r := v.Interface().(big.Rat)
		return new(big.Rat).Set(&r)
	case floatType:
		f := v.Interface().(big.Float)
		r, _ := f.Rat(nil)
		return r
	case timeType, dateType:
		return v.Interface()
	}

	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Map) && v.IsNil() {
		return nil
	}
	switch {
	case isList(t):
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if x := toStorage(v.Index(i)); x != nil {
				out = append(out, x)
			}
		}
		return out
	case isSet(t):
		out := make([]any, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if t.Elem().Kind() == reflect.Bool && !iter.Value().Bool() {
				continue
			}
			x := toStorage(iter.Key())
			if x == nil || containsValue(out, x) {
				continue
			}
			out = append(out, x)
		}
		sortValues(out)
		return out
	}
	return v.Interface()
}

func containsValue(list []any, x any) bool {
	for _, y := range list {
		if graph.Equal(x, y) {
			return true
		}
	}
	return false
}

// sortValues gives set elements a stable order: numbers by value, then
// everything else by type and text.
func sortValues(vals []any) {
	sort.SliceStable(vals, func(i, j int) bool {
		a, aNum := asFloat(vals[i])
		b, bNum := asFloat(vals[j])
		switch {
		case aNum && bNum:
			return a < b
		case aNum != bNum:
			return aNum
		}
		return fmt.Sprintf("%T\x00%v", vals[i], vals[i]) < fmt.Sprintf("%T\x00%v", vals[j], vals[j])
	})
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

// ToObjectValue converts a stored value into a value of the declared field
// type. Enum names that match no constant, and nil, yield nil. Lists and
// sets convert element-wise, dropping elements that yield nil.
func ToObjectValue(declared, elem reflect.Type, value any) any {
	v, ok := toObject(declared, elem, value)
	if !ok {
		return nil
	}
	return v.Interface()
}

func toObject(declared, elem reflect.Type, value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	if declared.Kind() == reflect.Pointer {
		inner, ok := toObject(declared.Elem(), elem, value)
		if !ok {
			return reflect.Value{}, false
		}
		if inner.Type() == declared {
			return inner, true
		}
		if !inner.Type().AssignableTo(declared.Elem()) {
			return inner, true
		}
		p := reflect.New(declared.Elem())
		p.Elem().Set(inner)
		return p, true
	}
	if set, ok := lookupEnum(declared); ok {
		if reflect.TypeOf(value) == declared {
			return reflect.ValueOf(value), true
		}
		name, isName := value.(string)
		if !isName {
			return reflect.Value{}, false
		}
		return set.value(name)
	}

	switch declared {
	case ratType, floatType:
		r := toRat(value)
		if r == nil {
			return reflect.Value{}, false
		}
		if declared == floatType {
			return reflect.ValueOf(new(big.Float).SetRat(r)).Elem(), true
		}
		return reflect.ValueOf(r).Elem(), true
	case timeType:
		switch t := value.(type) {
		case time.Time:
			return reflect.ValueOf(t), true
		case graph.Date:
			return reflect.ValueOf(t.Time()), true
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return reflect.ValueOf(parsed), true
			}
		}
	case dateType:
		switch t := value.(type) {
		case graph.Date:
			return reflect.ValueOf(t), true
		case time.Time:
			return reflect.ValueOf(graph.DateOf(t)), true
		case string:
			if parsed, err := graph.ParseDate(t); err == nil {
				return reflect.ValueOf(parsed), true
			}
		}
	}

	switch {
	case isList(declared) && declared.Kind() == reflect.Slice:
		items, ok := asItems(value)
		if !ok {
			break
		}
		et := declared.Elem()
		out := reflect.MakeSlice(declared, 0, len(items))
		for _, it := range items {
			ev, ok := toObject(et, nil, it)
			if !ok || !ev.Type().AssignableTo(et) {
				continue
			}
			out = reflect.Append(out, ev)
		}
		return out, true
	case isSet(declared):
		items, ok := asItems(value)
		if !ok {
			break
		}
		present := reflect.ValueOf(true)
		if declared.Elem().Kind() != reflect.Bool {
			present = reflect.New(declared.Elem()).Elem()
		}
		out := reflect.MakeMapWithSize(declared, len(items))
		for _, it := range items {
			kv, ok := toObject(declared.Key(), nil, it)
			if !ok || !kv.Type().AssignableTo(declared.Key()) {
				continue
			}
			out.SetMapIndex(kv, present)
		}
		return out, true
	}
	return convert(reflect.ValueOf(value), declared), true
}

// convert narrows or widens scalars of the same family and decodes
// generic maps into structs. Values it cannot convert are returned as is.
func convert(v reflect.Value, t reflect.Type) reflect.Value {
	vt := v.Type()
	if vt.AssignableTo(t) {
		return v
	}
	switch {
	case isNumber(vt.Kind()) && isNumber(t.Kind()),
		vt.Kind() == reflect.String && t.Kind() == reflect.String,
		vt.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return v.Convert(t)
	case vt.Kind() == reflect.String && t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return v.Convert(t)
	}
	if k := t.Kind(); k == reflect.Struct || k == reflect.Map || k == reflect.Slice {
		data, err := json.Marshal(v.Interface())
		if err == nil {
			out := reflect.New(t)
			if json.Unmarshal(data, out.Interface()) == nil {
				return out.Elem()
			}
		}
	}
	return v
}

func isNumber(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func asItems(value any) ([]any, bool) {
	if list, ok := value.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func toRat(value any) *big.Rat {
	switch n := value.(type) {
	case *big.Rat:
		return new(big.Rat).Set(n)
	case big.Rat:
		return new(big.Rat).Set(&n)
	case *big.Float:
		r, _ := n.Rat(nil)
		return r
	case string:
		r, ok := new(big.Rat).SetString(n)
		if ok {
			return r
		}
		return nil
	}
	if f, ok := asFloat(value); ok {
		if i, isInt := value.(int64); isInt {
			return new(big.Rat).SetInt64(i)
		}
		return new(big.Rat).SetFloat64(f)
	}
	return nil
}
