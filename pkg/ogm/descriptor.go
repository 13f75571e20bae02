package ogm

import (
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/joss/ogm/pkg/graph"
)

// Role is the part a field plays in the mapping. Every field has exactly one.
type Role int

const (
	RolePlain Role = iota
	RoleIdentity
	RoleVersion
	RoleOut
	RoleIn
	RoleIgnored
)

func (r Role) String() string {
	switch r {
	case RoleIdentity:
		return "identity"
	case RoleVersion:
		return "version"
	case RoleOut:
		return "out"
	case RoleIn:
		return "in"
	case RoleIgnored:
		return "ignored"
	default:
		return "plain"
	}
}

// EdgeClass marks an entity as an edge class when embedded:
//
//	type Knows struct {
//		ogm.EdgeClass
//		Since time.Time
//	}
type EdgeClass struct{}

var edgeClassType = reflect.TypeOf(EdgeClass{})

// Namer overrides the entity name derived from the type name.
type Namer interface {
	EntityName() string
}

// Relation binds a field to edges of one label.
type Relation struct {
	Label   string
	Cascade Cascade

	// Target is the struct type on the far side.
	Target reflect.Type

	// Many is set for slice fields.
	Many bool

	// source is the owner type name of a default in-label, which depends
	// on the name the target ends up registered under.
	source string
}

// labelIn returns the edge label as seen through reg. A default in-label
// follows the name reg holds for the target, so it agrees with the label
// the target's out field writes.
func (rel *Relation) labelIn(reg *Registry) string {
	if rel.source == "" || reg == nil {
		return rel.Label
	}
	return reg.NameOf(rel.Target) + "To" + rel.source
}

// FieldDescriptor describes one mapped field.
type FieldDescriptor struct {
	Name     string
	Property string
	Type     reflect.Type

	// Elem is the element type of slices and the key type of sets.
	Elem reflect.Type

	Role         Role
	Relation     *Relation
	Index        *IndexSpec
	ReadOnly     bool
	PropertyType graph.PropertyType

	path []int
}

// Nullable reports whether the field can hold nil.
func (f FieldDescriptor) Nullable() bool {
	switch f.Type.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

// EntityDescriptor is the compiled mapping of one type. Immutable.
type EntityDescriptor struct {
	name   string
	typ    reflect.Type
	edge   bool
	fields []FieldDescriptor
}

func (d *EntityDescriptor) Name() string       { return d.name }
func (d *EntityDescriptor) Type() reflect.Type { return d.typ }
func (d *EntityDescriptor) IsEdge() bool       { return d.edge }

// Fields returns the field descriptors in declaration order.
func (d *EntityDescriptor) Fields() []FieldDescriptor {
	return append([]FieldDescriptor(nil), d.fields...)
}

// Field returns the descriptor of a Go field.
func (d *EntityDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Identity returns the identity field.
func (d *EntityDescriptor) Identity() (FieldDescriptor, bool) {
	return d.byRole(RoleIdentity)
}

// Version returns the version field.
func (d *EntityDescriptor) Version() (FieldDescriptor, bool) {
	return d.byRole(RoleVersion)
}

func (d *EntityDescriptor) byRole(r Role) (FieldDescriptor, bool) {
	for _, f := range d.fields {
		if f.Role == r {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Dump renders the descriptor for debugging.
func (d *EntityDescriptor) Dump() string {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableMethods: true, SortKeys: true}
	type field struct {
		Name, Property, Role, Type string
		Label, Cascade             string
		Index                      *IndexSpec
		ReadOnly                   bool
	}
	view := struct {
		Entity string
		Type   string
		Edge   bool
		Fields []field
	}{Entity: d.name, Type: d.typ.String(), Edge: d.edge}
	for _, f := range d.fields {
		fv := field{Name: f.Name, Property: f.Property, Role: f.Role.String(), Type: f.PropertyType.String(), Index: f.Index, ReadOnly: f.ReadOnly}
		if f.Relation != nil {
			fv.Label = f.Relation.Label
			fv.Cascade = f.Relation.Cascade.String()
		}
		view.Fields = append(view.Fields, fv)
	}
	return cfg.Sdump(view)
}

var (
	ridType   = reflect.TypeOf(graph.RID(""))
	timeType  = reflect.TypeOf(time.Time{})
	dateType  = reflect.TypeOf(graph.Date{})
	ratType   = reflect.TypeOf(big.Rat{})
	floatType = reflect.TypeOf(big.Float{})
)

// entityNameOf derives the entity name of t: mapping override, then the
// EntityName method, then the type name.
func entityNameOf(t reflect.Type, m *Mapping) string {
	if em, ok := m.lookup(t); ok && em.Name != "" {
		return em.Name
	}
	if n, ok := reflect.New(t).Interface().(Namer); ok {
		if name := n.EntityName(); name != "" {
			return name
		}
	}
	return t.Name()
}

// buildDescriptor compiles the mapping of struct type t.
func buildDescriptor(name string, t reflect.Type, m *Mapping) (*EntityDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedError{What: "entity kind " + t.Kind().String(), Subject: t.String()}
	}
	em, _ := m.lookup(t)
	d := &EntityDescriptor{name: name, typ: t, edge: em.Edge}

	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous {
			if sf.Type == edgeClassType {
				d.edge = true
			}
			if sf.Type.Kind() == reflect.Struct || (sf.Type.Kind() == reflect.Pointer && sf.Type.Elem().Kind() == reflect.Struct) {
				continue
			}
		}
		if !sf.IsExported() || viaPointer(t, sf.Index) {
			continue
		}
		raw, ok := em.Fields[sf.Name]
		if !ok {
			raw = sf.Tag.Get(tagName)
		}
		spec, err := parseTag(raw)
		if err != nil {
			return nil, &MappingError{Entity: name, Field: sf.Name, Reason: err.Error()}
		}
		f, err := describeField(name, t, sf, spec, m)
		if err != nil {
			return nil, err
		}
		d.fields = append(d.fields, f)
	}

	var ids, versions int
	for _, f := range d.fields {
		switch f.Role {
		case RoleIdentity:
			ids++
		case RoleVersion:
			versions++
		}
	}
	if ids > 1 || versions > 1 {
		return nil, &MappingError{Entity: name, Field: "*", Reason: "more than one identity or version field", Err: ErrConflictingRoles}
	}
	return d, nil
}

// viaPointer reports whether a promoted field is reached through an
// embedded pointer, which reconstruction would have to allocate.
func viaPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}

func describeField(entity string, owner reflect.Type, sf reflect.StructField, spec tagSpec, m *Mapping) (FieldDescriptor, error) {
	f := FieldDescriptor{
		Name:     sf.Name,
		Property: sf.Name,
		Type:     sf.Type,
		ReadOnly: spec.readonly,
		Index:    spec.index,
		path:     sf.Index,
	}
	if spec.property != "" {
		f.Property = spec.property
	}
	fail := func(reason string, err error) (FieldDescriptor, error) {
		return FieldDescriptor{}, &MappingError{Entity: entity, Field: sf.Name, Reason: reason, Err: err}
	}

	if roles := spec.roles(); len(roles) > 1 {
		return fail("conflicting markers "+strings.Join(roles, " and "), ErrConflictingRoles)
	}
	if spec.cascadeSet && !spec.out {
		return fail("cascade is only valid on out relations", ErrConflictingRoles)
	}
	if spec.index != nil && (spec.skip || spec.id || spec.version || spec.out || spec.in) {
		return fail("index is only valid on plain fields", ErrConflictingRoles)
	}

	base := sf.Type
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch {
	case spec.skip:
		f.Role = RoleIgnored
	case spec.id:
		if base != ridType && base.Kind() != reflect.String {
			return fail("identity field must be graph.RID or string", nil)
		}
		f.Role = RoleIdentity
	case spec.version:
		if !isInteger(base.Kind()) {
			return fail("version field must be an integer", nil)
		}
		f.Role = RoleVersion
	case spec.out, spec.in:
		rel, err := describeRelation(entity, owner, sf, spec, m)
		if err != nil {
			return fail(err.Error(), nil)
		}
		f.Relation = rel
		f.Role = RoleOut
		if spec.in {
			f.Role = RoleIn
		}
	default:
		f.Role = RolePlain
		f.Elem = elemType(sf.Type)
		f.PropertyType = propertyTypeOf(sf.Type)
		if f.Index != nil && f.Index.Name == "" {
			f.Index = &IndexSpec{Name: entity + "." + f.Property, Kind: f.Index.Kind}
		}
	}
	return f, nil
}

func describeRelation(entity string, owner reflect.Type, sf reflect.StructField, spec tagSpec, m *Mapping) (*Relation, error) {
	rel := &Relation{Label: spec.label}
	t := sf.Type
	if t.Kind() == reflect.Slice {
		rel.Many = true
		t = t.Elem()
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedError{What: "relation target " + sf.Type.String()}
	}
	rel.Target = t
	if spec.out {
		rel.Cascade = CascadeInsert
		if spec.cascadeSet {
			rel.Cascade = spec.cascade
		}
		if rel.Label == "" {
			rel.Label = entity + "To" + t.Name()
		}
	} else if rel.Label == "" {
		rel.Label = entityNameOf(t, m) + "To" + owner.Name()
		rel.source = owner.Name()
	}
	return rel, nil
}

// elemType returns the element type of lists and sets.
func elemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case isList(t):
		return t.Elem()
	case isSet(t):
		return t.Key()
	}
	return nil
}

func isList(t reflect.Type) bool {
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8
}

func isSet(t reflect.Type) bool {
	if t.Kind() != reflect.Map {
		return false
	}
	v := t.Elem()
	return v.Kind() == reflect.Bool || (v.Kind() == reflect.Struct && v.NumField() == 0)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// propertyTypeOf maps a Go field type to its schema property type.
func propertyTypeOf(t reflect.Type) graph.PropertyType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if _, ok := lookupEnum(t); ok {
		return graph.TypeString
	}
	switch t {
	case timeType:
		return graph.TypeDateTime
	case dateType:
		return graph.TypeDate
	case ratType, floatType:
		return graph.TypeDecimal
	}
	switch t.Kind() {
	case reflect.String:
		return graph.TypeString
	case reflect.Bool:
		return graph.TypeBoolean
	case reflect.Int8, reflect.Uint8:
		return graph.TypeByte
	case reflect.Int16:
		return graph.TypeShort
	case reflect.Int32, reflect.Uint16:
		return graph.TypeInteger
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return graph.TypeLong
	case reflect.Float32:
		return graph.TypeFloat
	case reflect.Float64:
		return graph.TypeDouble
	}
	switch {
	case isList(t):
		return graph.TypeEmbeddedList
	case isSet(t):
		return graph.TypeEmbeddedSet
	}
	return graph.TypeAny
}
