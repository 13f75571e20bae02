package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/joss/ogm/pkg/graph"
)

type schema struct {
	s *Session
}

func (sc schema) ExistsClass(ctx context.Context, name string) (bool, error) {
	q, err := sc.s.conn()
	if err != nil {
		return false, err
	}
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("class %s: %w", name, err)
	}
	return n > 0, nil
}

func (sc schema) Class(ctx context.Context, name string) (graph.ClassInfo, bool, error) {
	q, err := sc.s.conn()
	if err != nil {
		return graph.ClassInfo{}, false, err
	}
	info := graph.ClassInfo{Name: name}
	var base string
	err = q.QueryRowContext(ctx, `SELECT base FROM classes WHERE name = ?`, name).Scan(&base)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.ClassInfo{}, false, nil
	}
	if err != nil {
		return graph.ClassInfo{}, false, fmt.Errorf("class %s: %w", name, err)
	}
	info.Base = graph.BaseClass(base)

	info.Properties, err = sc.properties(ctx, q, name)
	if err != nil {
		return graph.ClassInfo{}, false, err
	}
	info.Indexes, err = sc.indexes(ctx, q, name)
	if err != nil {
		return graph.ClassInfo{}, false, err
	}
	return info, true, nil
}

func (sc schema) properties(ctx context.Context, q querier, class string) (map[string]graph.PropertyType, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, type FROM properties WHERE class = ? ORDER BY name`, class)
	if err != nil {
		return nil, fmt.Errorf("class %s properties: %w", class, err)
	}
	defer rows.Close()
	out := make(map[string]graph.PropertyType)
	for rows.Next() {
		var prop, typ string
		if err := rows.Scan(&prop, &typ); err != nil {
			return nil, err
		}
		pt, err := graph.ParsePropertyType(typ)
		if err != nil {
			return nil, err
		}
		out[prop] = pt
	}
	return out, rows.Err()
}

func (sc schema) indexes(ctx context.Context, q querier, class string) ([]graph.IndexInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, kind, props FROM indexes WHERE class = ? ORDER BY name`, class)
	if err != nil {
		return nil, fmt.Errorf("class %s indexes: %w", class, err)
	}
	defer rows.Close()
	var out []graph.IndexInfo
	for rows.Next() {
		var name, kind, props string
		if err := rows.Scan(&name, &kind, &props); err != nil {
			return nil, err
		}
		out = append(out, graph.IndexInfo{Name: name, Kind: graph.IndexKind(kind), Properties: strings.Split(props, ",")})
	}
	return out, rows.Err()
}

func (sc schema) CreateClass(ctx context.Context, name string, base graph.BaseClass) error {
	if base != graph.BaseVertex && base != graph.BaseEdge {
		return fmt.Errorf("class %s: unknown base %q", name, base)
	}
	q, err := sc.s.conn()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO classes (name, base) VALUES (?, ?)`, name, string(base))
	if isConstraint(err) {
		return fmt.Errorf("class %s: %w", name, graph.ErrClassExists)
	}
	if err != nil {
		return fmt.Errorf("create class %s: %w", name, err)
	}
	sc.s.log.Debug("class_created", map[string]any{"class": name, "base": string(base)})
	return nil
}

func (sc schema) CreateProperty(ctx context.Context, class, name string, t graph.PropertyType) error {
	q, err := sc.s.conn()
	if err != nil {
		return err
	}
	if ok, err := sc.ExistsClass(ctx, class); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("property %s.%s: %w", class, name, graph.ErrClassNotFound)
	}
	_, err = q.ExecContext(ctx, `INSERT OR IGNORE INTO properties (class, name, type) VALUES (?, ?, ?)`, class, name, t.String())
	if err != nil {
		return fmt.Errorf("create property %s.%s: %w", class, name, err)
	}
	return nil
}

// CreateIndex records the index. Unique kinds are enforced through
// index_keys from the next write on; existing rows must already comply.
func (sc schema) CreateIndex(ctx context.Context, class, name string, kind graph.IndexKind, props ...string) error {
	if len(props) == 0 {
		return fmt.Errorf("index %s: no properties", name)
	}
	q, err := sc.s.conn()
	if err != nil {
		return err
	}
	if ok, err := sc.ExistsClass(ctx, class); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("index %s: %w", name, graph.ErrClassNotFound)
	}
	_, err = q.ExecContext(ctx, `INSERT OR IGNORE INTO indexes (name, class, kind, props) VALUES (?, ?, ?, ?)`,
		name, class, string(kind), strings.Join(props, ","))
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}
