package ogm

import (
	"fmt"
	"reflect"
	"sync/atomic"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
	"golang.org/x/sync/singleflight"

	"github.com/joss/ogm/internal/logging"
)

// Registry maps entity names to compiled descriptors. The first
// registration of a name wins; later registrations of the same name are
// ignored, even for a different type.
type Registry struct {
	byName  gsync.MapOf[string, *EntityDescriptor]
	byType  gsync.MapOf[reflect.Type, string]
	gate    singleflight.Group
	mapping atomic.Pointer[Mapping]
	log     *logging.Logger
}

// Default is the process-wide registry used by ObjectAPI unless
// WithRegistry is given.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{log: logging.New("registry")}
}

// UseMapping installs a mapping table for registrations that happen after
// the call.
func (r *Registry) UseMapping(m *Mapping) {
	r.mapping.Store(m)
}

// NameOf returns the entity name t is registered under, or the name it
// would be registered under.
func (r *Registry) NameOf(t reflect.Type) string {
	t = structType(t)
	if t == nil {
		return ""
	}
	if name, ok := r.byType.Load(t); ok {
		return name
	}
	return entityNameOf(t, r.mapping.Load())
}

// Register compiles and stores the descriptor of t under name. onCreate
// runs once, before the descriptor becomes visible; if it fails nothing is
// stored and a later call retries. Anonymous types are ignored.
func (r *Registry) Register(name string, t reflect.Type, onCreate func(*EntityDescriptor) error) (*EntityDescriptor, error) {
	t = structType(t)
	if t == nil {
		return nil, fmt.Errorf("register nil type: %w", ErrInvalidObject)
	}
	if t.Name() == "" {
		return nil, nil
	}
	if name == "" {
		name = r.NameOf(t)
	}
	if d, ok := r.byName.Load(name); ok {
		return d, nil
	}

	v, err, _ := r.gate.Do(name, func() (any, error) {
		if d, ok := r.byName.Load(name); ok {
			return d, nil
		}
		d, err := buildDescriptor(name, t, r.mapping.Load())
		if err != nil {
			return nil, err
		}
		if onCreate != nil {
			if err := onCreate(d); err != nil {
				return nil, err
			}
		}
		actual, _ := r.byName.LoadOrStore(name, d)
		r.byType.LoadOrStore(t, name)
		r.log.Debug("entity_registered", map[string]any{"entity": name, "type": t.String(), "edge": d.IsEdge()})
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EntityDescriptor), nil
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (*EntityDescriptor, error) {
	if d, ok := r.byName.Load(name); ok {
		return d, nil
	}
	return nil, &NotRegisteredError{Entity: name}
}

// Resolve returns the type registered under name.
func (r *Registry) Resolve(name string) (reflect.Type, error) {
	d, err := r.Descriptor(name)
	if err != nil {
		return nil, err
	}
	return d.Type(), nil
}

// DescriptorOf returns the descriptor of a registered type.
func (r *Registry) DescriptorOf(t reflect.Type) (*EntityDescriptor, bool) {
	t = structType(t)
	name, ok := r.byType.Load(t)
	if !ok {
		return nil, false
	}
	d, ok := r.byName.Load(name)
	return d, ok
}

// Names lists the registered entity names.
func (r *Registry) Names() []string {
	var names []string
	r.byName.Range(func(name string, _ *EntityDescriptor) bool {
		names = append(names, name)
		return true
	})
	return names
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
