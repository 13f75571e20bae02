package ogm

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// EntityMapping overrides the markers of one type from outside its source.
type EntityMapping struct {
	// Type is the package-qualified type name as printed by %T without the
	// pointer, e.g. "model.Person".
	Type string `yaml:"type"`

	Name string `yaml:"name,omitempty"`
	Edge bool   `yaml:"edge,omitempty"`

	// Fields maps Go field names to tag values, replacing struct tags.
	Fields map[string]string `yaml:"fields,omitempty"`
}

// Mapping is a declarative mapping table:
//
//	entities:
//	  - type: model.Person
//	    name: Human
//	    fields:
//	      ID: ",id"
//	      Friends: ",out=Knows"
type Mapping struct {
	entities map[string]EntityMapping
}

type mappingFile struct {
	Entities []EntityMapping `yaml:"entities"`
}

// ParseMapping decodes and validates a mapping table.
func ParseMapping(data []byte) (*Mapping, error) {
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	m := &Mapping{entities: make(map[string]EntityMapping, len(file.Entities))}
	for _, em := range file.Entities {
		if em.Type == "" {
			return nil, fmt.Errorf("mapping entry without type: %w", ErrInvalidObject)
		}
		if _, dup := m.entities[em.Type]; dup {
			return nil, fmt.Errorf("duplicate mapping for %s: %w", em.Type, ErrInvalidObject)
		}
		for field, tag := range em.Fields {
			if _, err := parseTag(tag); err != nil {
				return nil, &MappingError{Entity: em.Type, Field: field, Reason: err.Error()}
			}
		}
		m.entities[em.Type] = em
	}
	return m, nil
}

// LoadMapping reads a mapping table from a YAML file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

// Len returns the number of mapped types.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entities)
}

func (m *Mapping) lookup(t reflect.Type) (EntityMapping, bool) {
	if m == nil {
		return EntityMapping{}, false
	}
	em, ok := m.entities[t.String()]
	return em, ok
}
