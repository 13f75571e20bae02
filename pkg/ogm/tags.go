package ogm

import (
	"fmt"
	"strings"

	"github.com/joss/ogm/pkg/graph"
)

const tagName = "ogm"

// Cascade selects when a relation target is saved along with its owner.
type Cascade uint8

const (
	CascadeNone   Cascade = 0
	CascadeInsert Cascade = 1
	CascadeUpdate Cascade = 2
)

func (c Cascade) String() string {
	var parts []string
	if c&CascadeInsert != 0 {
		parts = append(parts, "insert")
	}
	if c&CascadeUpdate != 0 {
		parts = append(parts, "update")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

func parseCascade(s string) (Cascade, error) {
	var c Cascade
	for _, part := range strings.Split(s, "|") {
		switch strings.TrimSpace(part) {
		case "insert":
			c |= CascadeInsert
		case "update":
			c |= CascadeUpdate
		case "none", "":
		default:
			return 0, fmt.Errorf("unknown cascade %q", part)
		}
	}
	return c, nil
}

// tagSpec is a parsed `ogm:"..."` value.
type tagSpec struct {
	property   string
	skip       bool
	id         bool
	version    bool
	out        bool
	in         bool
	readonly   bool
	label      string
	cascade    Cascade
	cascadeSet bool
	index      *IndexSpec
}

// roles counts the mutually exclusive markers present.
func (t tagSpec) roles() []string {
	var r []string
	if t.skip {
		r = append(r, "-")
	}
	if t.id {
		r = append(r, "id")
	}
	if t.version {
		r = append(r, "version")
	}
	if t.out {
		r = append(r, "out")
	}
	if t.in {
		r = append(r, "in")
	}
	return r
}

// parseTag parses `[property][,option...]`. Conflicts between roles are
// reported by the descriptor builder, which knows the field.
func parseTag(raw string) (tagSpec, error) {
	var spec tagSpec
	if raw == "" {
		return spec, nil
	}
	if raw == "-" {
		spec.skip = true
		return spec, nil
	}
	parts := strings.Split(raw, ",")
	name := strings.TrimSpace(parts[0])
	if name == "-" {
		spec.skip = true
	} else {
		spec.property = name
	}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "id":
			spec.id = true
		case "version":
			spec.version = true
		case "readonly":
			spec.readonly = true
		case "out":
			spec.out = true
			spec.label = val
		case "in":
			spec.in = true
			spec.label = val
		case "cascade":
			c, err := parseCascade(val)
			if err != nil {
				return spec, err
			}
			spec.cascade = c
			spec.cascadeSet = true
		case "index":
			idx, err := parseIndex(val, hasVal)
			if err != nil {
				return spec, err
			}
			spec.index = idx
		case "":
		default:
			return spec, fmt.Errorf("unknown option %q", opt)
		}
	}
	return spec, nil
}

// IndexSpec is the index a field declares.
type IndexSpec struct {
	Name string
	Kind graph.IndexKind
}

// parseIndex accepts "index", "index=kind" and "index=Name:kind".
func parseIndex(val string, hasVal bool) (*IndexSpec, error) {
	if !hasVal || val == "" {
		return &IndexSpec{Kind: graph.IndexNotUnique}, nil
	}
	name, kind, found := strings.Cut(val, ":")
	if !found {
		kind, name = name, ""
	}
	k, err := graph.ParseIndexKind(kind)
	if err != nil {
		return nil, err
	}
	return &IndexSpec{Name: name, Kind: k}, nil
}
