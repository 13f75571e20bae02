package bolt

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// runner executes Cypher and returns every record of the result.
type runner interface {
	run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

// conn is the part of a driver session a Session uses.
type conn interface {
	runner
	begin(ctx context.Context) (txConn, error)
	close(ctx context.Context) error
}

// txConn is an explicit transaction.
type txConn interface {
	runner
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

type driverConn struct {
	session neo4j.SessionWithContext
}

func (c *driverConn) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := c.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func (c *driverConn) begin(ctx context.Context) (txConn, error) {
	tx, err := c.session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &driverTx{tx: tx}, nil
}

func (c *driverConn) close(ctx context.Context) error {
	return c.session.Close(ctx)
}

type driverTx struct {
	tx neo4j.ExplicitTransaction
}

func (t *driverTx) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func (t *driverTx) commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *driverTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// row is a single result record keyed by column.
type row map[string]any

func rows(records []*neo4j.Record) []row {
	out := make([]row, 0, len(records))
	for _, rec := range records {
		r := make(row, len(rec.Keys))
		for i, key := range rec.Keys {
			r[key] = rec.Values[i]
		}
		out = append(out, r)
	}
	return out
}

func (r row) getString(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// getInt64 handles int, int64, and float64 (truncated).
func (r row) getInt64(key string) int64 {
	switch n := r[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// getStrings handles both []string and []any containing strings.
func (r row) getStrings(key string) []string {
	switch s := r[key].(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
