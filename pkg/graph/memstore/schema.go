package memstore

import (
	"context"
	"fmt"

	"github.com/joss/ogm/pkg/graph"
)

type schema struct {
	s *Session
}

func (sc schema) ExistsClass(ctx context.Context, name string) (bool, error) {
	if err := sc.s.Activate(); err != nil {
		return false, err
	}
	sc.s.store.mu.RLock()
	defer sc.s.store.mu.RUnlock()
	_, ok := sc.s.store.st.classes[name]
	return ok, nil
}

func (sc schema) Class(ctx context.Context, name string) (graph.ClassInfo, bool, error) {
	if err := sc.s.Activate(); err != nil {
		return graph.ClassInfo{}, false, err
	}
	sc.s.store.mu.RLock()
	defer sc.s.store.mu.RUnlock()
	c, ok := sc.s.store.st.classes[name]
	if !ok {
		return graph.ClassInfo{}, false, nil
	}
	info := c.info
	info.Properties = make(map[string]graph.PropertyType, len(c.info.Properties))
	for k, v := range c.info.Properties {
		info.Properties[k] = v
	}
	info.Indexes = append([]graph.IndexInfo(nil), c.info.Indexes...)
	return info, true, nil
}

func (sc schema) CreateClass(ctx context.Context, name string, base graph.BaseClass) error {
	if err := sc.s.Activate(); err != nil {
		return err
	}
	if base != graph.BaseVertex && base != graph.BaseEdge {
		return fmt.Errorf("class %s: unknown base %q", name, base)
	}
	sc.s.store.mu.Lock()
	defer sc.s.store.mu.Unlock()
	st := sc.s.store.st
	if _, ok := st.classes[name]; ok {
		return fmt.Errorf("class %s: %w", name, graph.ErrClassExists)
	}
	st.defineClass(name, base)
	sc.s.log.Debug("class_created", map[string]any{"class": name, "base": string(base)})
	return nil
}

func (sc schema) CreateProperty(ctx context.Context, class, name string, t graph.PropertyType) error {
	if err := sc.s.Activate(); err != nil {
		return err
	}
	sc.s.store.mu.Lock()
	defer sc.s.store.mu.Unlock()
	c, ok := sc.s.store.st.classes[class]
	if !ok {
		return fmt.Errorf("property %s.%s: %w", class, name, graph.ErrClassNotFound)
	}
	if _, exists := c.info.Properties[name]; exists {
		return nil
	}
	c.info.Properties[name] = t
	return nil
}

func (sc schema) CreateIndex(ctx context.Context, class, name string, kind graph.IndexKind, props ...string) error {
	if err := sc.s.Activate(); err != nil {
		return err
	}
	sc.s.store.mu.Lock()
	defer sc.s.store.mu.Unlock()
	st := sc.s.store.st
	c, ok := st.classes[class]
	if !ok {
		return fmt.Errorf("index %s: %w", name, graph.ErrClassNotFound)
	}
	for _, idx := range c.info.Indexes {
		if idx.Name == name {
			return nil
		}
	}
	idx := graph.IndexInfo{Name: name, Kind: kind, Properties: append([]string(nil), props...)}
	if kind.Unique() {
		seen := make([]map[string]any, 0)
		for _, rec := range st.vertices {
			if rec.class != class {
				continue
			}
			for _, prev := range seen {
				if collides(idx.Properties, rec.props, prev) {
					return fmt.Errorf("index %s on %s: %w", name, class, graph.ErrDuplicateKey)
				}
			}
			seen = append(seen, rec.props)
		}
	}
	c.info.Indexes = append(c.info.Indexes, idx)
	return nil
}
