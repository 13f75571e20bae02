package bolt

import (
	"context"
	"fmt"

	"github.com/joss/ogm/pkg/graph"
)

type schema struct {
	s *Session
}

// classBase looks a class up in the catalog. The base classes V and E
// always exist.
func classBase(ctx context.Context, r runner, name string) (graph.BaseClass, bool, error) {
	switch graph.BaseClass(name) {
	case graph.BaseVertex, graph.BaseEdge:
		return graph.BaseClass(name), true, nil
	}
	recs, err := r.run(ctx, "MATCH (c:"+labelClass+" {name: $name}) RETURN c.base AS base", map[string]any{"name": name})
	if err != nil {
		return "", false, fmt.Errorf("class %s: %w", name, err)
	}
	if len(recs) == 0 {
		return "", false, nil
	}
	return graph.BaseClass(rows(recs)[0].getString("base")), true, nil
}

func createClass(ctx context.Context, r runner, name string, base graph.BaseClass) error {
	_, err := r.run(ctx, "CREATE (c:"+labelClass+" {name: $name, base: $base})",
		map[string]any{"name": name, "base": string(base)})
	if err != nil {
		return fmt.Errorf("create class %s: %w", name, err)
	}
	return nil
}

func (sc schema) ExistsClass(ctx context.Context, name string) (bool, error) {
	r, err := sc.s.runner()
	if err != nil {
		return false, err
	}
	_, ok, err := classBase(ctx, r, name)
	return ok, err
}

func (sc schema) Class(ctx context.Context, name string) (graph.ClassInfo, bool, error) {
	r, err := sc.s.runner()
	if err != nil {
		return graph.ClassInfo{}, false, err
	}
	base, ok, err := classBase(ctx, r, name)
	if err != nil || !ok {
		return graph.ClassInfo{}, false, err
	}
	info := graph.ClassInfo{Name: name, Base: base, Properties: make(map[string]graph.PropertyType)}

	recs, err := r.run(ctx, "MATCH (p:"+labelProperty+" {class: $class}) RETURN p.name AS name, p.type AS type ORDER BY p.name",
		map[string]any{"class": name})
	if err != nil {
		return graph.ClassInfo{}, false, fmt.Errorf("class %s properties: %w", name, err)
	}
	for _, rr := range rows(recs) {
		pt, err := graph.ParsePropertyType(rr.getString("type"))
		if err != nil {
			return graph.ClassInfo{}, false, err
		}
		info.Properties[rr.getString("name")] = pt
	}

	recs, err = r.run(ctx, "MATCH (i:"+labelIndex+" {class: $class}) RETURN i.name AS name, i.kind AS kind, i.props AS props ORDER BY i.name",
		map[string]any{"class": name})
	if err != nil {
		return graph.ClassInfo{}, false, fmt.Errorf("class %s indexes: %w", name, err)
	}
	for _, rr := range rows(recs) {
		info.Indexes = append(info.Indexes, graph.IndexInfo{
			Name:       rr.getString("name"),
			Kind:       graph.IndexKind(rr.getString("kind")),
			Properties: rr.getStrings("props"),
		})
	}
	return info, true, nil
}

func (sc schema) CreateClass(ctx context.Context, name string, base graph.BaseClass) error {
	if base != graph.BaseVertex && base != graph.BaseEdge {
		return fmt.Errorf("class %s: unknown base %q", name, base)
	}
	r, err := sc.s.runner()
	if err != nil {
		return err
	}
	if _, ok, err := classBase(ctx, r, name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("class %s: %w", name, graph.ErrClassExists)
	}
	if err := createClass(ctx, r, name, base); err != nil {
		return err
	}
	sc.s.log.Debug("class_created", map[string]any{"class": name, "base": string(base)})
	return nil
}

func (sc schema) CreateProperty(ctx context.Context, class, name string, t graph.PropertyType) error {
	r, err := sc.s.runner()
	if err != nil {
		return err
	}
	if _, ok, err := classBase(ctx, r, class); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("property %s.%s: %w", class, name, graph.ErrClassNotFound)
	}
	_, err = r.run(ctx, "MERGE (p:"+labelProperty+" {class: $class, name: $name}) SET p.type = $type",
		map[string]any{"class": class, "name": name, "type": t.String()})
	if err != nil {
		return fmt.Errorf("create property %s.%s: %w", class, name, err)
	}
	return nil
}

// CreateIndex records the index in the catalog and, for vertex classes,
// creates the matching server index or constraint.
func (sc schema) CreateIndex(ctx context.Context, class, name string, kind graph.IndexKind, props ...string) error {
	if len(props) == 0 {
		return fmt.Errorf("index %s: no properties", name)
	}
	r, err := sc.s.runner()
	if err != nil {
		return err
	}
	base, ok, err := classBase(ctx, r, class)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index %s: %w", name, graph.ErrClassNotFound)
	}

	recs, err := r.run(ctx, "MATCH (i:"+labelIndex+" {name: $name}) RETURN count(i) AS n", map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	if len(recs) > 0 && rows(recs)[0].getInt64("n") > 0 {
		return nil
	}

	if base == graph.BaseVertex {
		for _, stmt := range sc.s.flavor.indexStatements(class, name, kind, props) {
			if _, err := r.run(ctx, stmt, nil); err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
		}
	}
	_, err = r.run(ctx, "CREATE (i:"+labelIndex+" {name: $name, class: $class, kind: $kind, props: $props})",
		map[string]any{"name": name, "class": class, "kind": string(kind), "props": props})
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	sc.s.log.Debug("index_created", map[string]any{"class": class, "index": name, "kind": string(kind)})
	return nil
}
