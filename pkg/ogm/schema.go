package ogm

import (
	"context"
	"errors"
	"fmt"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// activeSchema re-binds its session before every schema call.
type activeSchema struct {
	session graph.Session
}

func (a activeSchema) ExistsClass(ctx context.Context, name string) (bool, error) {
	if err := a.session.Activate(); err != nil {
		return false, err
	}
	return a.session.Schema().ExistsClass(ctx, name)
}

func (a activeSchema) Class(ctx context.Context, name string) (graph.ClassInfo, bool, error) {
	if err := a.session.Activate(); err != nil {
		return graph.ClassInfo{}, false, err
	}
	return a.session.Schema().Class(ctx, name)
}

func (a activeSchema) CreateClass(ctx context.Context, name string, base graph.BaseClass) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Schema().CreateClass(ctx, name, base)
}

func (a activeSchema) CreateProperty(ctx context.Context, class, name string, t graph.PropertyType) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Schema().CreateProperty(ctx, class, name, t)
}

func (a activeSchema) CreateIndex(ctx context.Context, class, name string, kind graph.IndexKind, props ...string) error {
	if err := a.session.Activate(); err != nil {
		return err
	}
	return a.session.Schema().CreateIndex(ctx, class, name, kind, props...)
}

// SyncSchema creates the class of d with its typed properties and indexes
// unless the class already exists. Existing classes are never altered.
func SyncSchema(ctx context.Context, schema graph.Schema, d *EntityDescriptor, log *logging.Logger) error {
	exists, err := schema.ExistsClass(ctx, d.Name())
	if err != nil {
		return fmt.Errorf("check class %s: %w", d.Name(), err)
	}
	if exists {
		return nil
	}

	base := graph.BaseVertex
	if d.IsEdge() {
		for _, f := range d.fields {
			if f.Role == RoleOut || f.Role == RoleIn {
				return &UnsupportedError{What: "relation fields on edge class", Subject: d.Name()}
			}
		}
		base = graph.BaseEdge
	}
	if err := schema.CreateClass(ctx, d.Name(), base); err != nil && !errors.Is(err, graph.ErrClassExists) {
		return fmt.Errorf("create class %s: %w", d.Name(), err)
	}

	for _, f := range d.fields {
		if f.Role != RolePlain {
			continue
		}
		if err := schema.CreateProperty(ctx, d.Name(), f.Property, f.PropertyType); err != nil {
			return fmt.Errorf("create property %s.%s: %w", d.Name(), f.Property, err)
		}
	}
	for _, f := range d.fields {
		if f.Role != RolePlain || f.Index == nil {
			continue
		}
		if err := schema.CreateIndex(ctx, d.Name(), f.Index.Name, f.Index.Kind, f.Property); err != nil {
			return fmt.Errorf("create index %s: %w", f.Index.Name, err)
		}
	}
	log.Info("class_created", map[string]any{"class": d.Name(), "base": string(base), "fields": len(d.fields)})
	return nil
}
