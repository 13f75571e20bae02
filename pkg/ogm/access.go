package ogm

import (
	"fmt"
	"reflect"

	"github.com/joss/ogm/pkg/graph"
)

// structValue unwraps obj to its struct value. The result is addressable
// when obj is a pointer.
func structValue(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %T: %w", obj, ErrInvalidObject)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%T is not a struct: %w", obj, ErrInvalidObject)
	}
	return v, nil
}

func (f FieldDescriptor) value(sv reflect.Value) reflect.Value {
	return sv.FieldByIndex(f.path)
}

// set assigns v to the field, converting between scalar widths.
func (f FieldDescriptor) set(entity string, sv reflect.Value, v reflect.Value) error {
	fv := f.value(sv)
	if !fv.CanSet() {
		return &AccessError{Entity: entity, Field: f.Name, Err: fmt.Errorf("field is not settable")}
	}
	if !v.IsValid() {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if !v.Type().AssignableTo(fv.Type()) {
		v = convert(v, fv.Type())
	}
	if !v.Type().AssignableTo(fv.Type()) {
		return &AccessError{Entity: entity, Field: f.Name, Err: fmt.Errorf("cannot assign %s to %s", v.Type(), fv.Type())}
	}
	fv.Set(v)
	return nil
}

// identityOf reads the identity field of sv.
func identityOf(d *EntityDescriptor, sv reflect.Value) graph.RID {
	f, ok := d.Identity()
	if !ok {
		return ""
	}
	fv := f.value(sv)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return ""
		}
		fv = fv.Elem()
	}
	return graph.RID(fv.String())
}

// setIdentity writes rid into the identity field, allocating pointer fields.
func setIdentity(d *EntityDescriptor, sv reflect.Value, rid graph.RID) error {
	f, ok := d.Identity()
	if !ok {
		return nil
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		p.Elem().SetString(string(rid))
		return f.set(d.Name(), sv, p)
	}
	return f.set(d.Name(), sv, reflect.ValueOf(rid).Convert(t))
}

// setVersion writes the engine version into the version field.
func setVersion(d *EntityDescriptor, sv reflect.Value, version int64) error {
	f, ok := d.Version()
	if !ok {
		return nil
	}
	t := f.Type
	v := reflect.ValueOf(version)
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		p.Elem().Set(v.Convert(t.Elem()))
		return f.set(d.Name(), sv, p)
	}
	return f.set(d.Name(), sv, v.Convert(t))
}
