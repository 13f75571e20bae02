package ogm

import (
	"fmt"
	"reflect"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
)

// enumSet is the closed constant set of one enum type.
type enumSet struct {
	names   []string
	byName  map[string]reflect.Value
	byValue map[any]string
}

var enums gsync.MapOf[reflect.Type, *enumSet]

// RegisterEnum declares the constants of an enum type. Fields of that type
// are stored by name and read back by exact name match; unknown names read
// back as the zero value. Works with enumer's XxxValues():
//
//	ogm.RegisterEnum(ColorValues()...)
func RegisterEnum[T interface {
	comparable
	fmt.Stringer
}](values ...T) {
	set := &enumSet{
		byName:  make(map[string]reflect.Value, len(values)),
		byValue: make(map[any]string, len(values)),
	}
	for _, v := range values {
		name := v.String()
		if _, dup := set.byName[name]; dup {
			continue
		}
		set.names = append(set.names, name)
		set.byName[name] = reflect.ValueOf(v)
		set.byValue[v] = name
	}
	enums.Store(reflect.TypeOf((*T)(nil)).Elem(), set)
}

func lookupEnum(t reflect.Type) (*enumSet, bool) {
	if t == nil {
		return nil, false
	}
	return enums.Load(t)
}

// name returns the symbolic name of v, or false for values outside the set.
func (s *enumSet) name(v any) (string, bool) {
	n, ok := s.byValue[v]
	return n, ok
}

// value returns the constant named name.
func (s *enumSet) value(name string) (reflect.Value, bool) {
	v, ok := s.byName[name]
	return v, ok
}
