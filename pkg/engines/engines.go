// Package engines opens graph sessions for the configured engine and wires
// them to the object mapper.
package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joss/ogm/internal/config"
	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
	"github.com/joss/ogm/pkg/graph/bolt"
	"github.com/joss/ogm/pkg/graph/memstore"
	"github.com/joss/ogm/pkg/graph/sqlgraph"
	"github.com/joss/ogm/pkg/ogm"
)

// ConnectRetries bounds Bolt connection attempts.
var ConnectRetries = 3

// OpenEnv opens a session for the engine selected by the environment.
func OpenEnv(ctx context.Context) (graph.Session, error) {
	return Open(ctx, config.Env())
}

// OpenFile opens a session for the engine selected by a YAML config file.
// Environment variables override the file.
func OpenFile(ctx context.Context, path string) (graph.Session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg)
}

// Open opens a session on a new store for cfg. Closing the session
// releases the store.
func Open(ctx context.Context, cfg *config.OGMEnv) (graph.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.New("engines")

	switch cfg.Engine {
	case config.EngineMemory:
		s := memstore.New().Open()
		log.Debug("engine_opened", map[string]any{"engine": string(cfg.Engine), "session": s.ID()})
		return s, nil

	case config.EngineSQLite:
		st, err := sqlgraph.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		s := st.Open()
		log.Debug("engine_opened", map[string]any{"engine": string(cfg.Engine), "path": st.Path(), "session": s.ID()})
		return owned(s, func(context.Context) error { return st.Close() }), nil

	case config.EngineBolt:
		flavor, err := bolt.ParseFlavor(cfg.Neo4j.Flavor)
		if err != nil {
			return nil, err
		}
		st, err := bolt.ConnectWithRetry(ctx, bolt.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
			Flavor:   flavor,
		}, ConnectRetries)
		if err != nil {
			return nil, err
		}
		s := st.Open(ctx)
		log.Debug("engine_opened", map[string]any{"engine": string(cfg.Engine), "uri": cfg.Neo4j.URI, "session": s.ID()})
		return owned(s, st.Close), nil
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

// Connect opens a session for the configuration at path (the environment
// when path is empty), applies its log level and mapping file, and returns
// the object API over it.
func Connect(ctx context.Context, path string, opts ...ogm.Option) (*ogm.ObjectAPI, error) {
	cfg := config.Env()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	logging.SetLevel(logging.Level(cfg.LogLevel))

	if cfg.MappingFile != "" {
		m, err := ogm.LoadMapping(cfg.MappingFile)
		if err != nil {
			return nil, err
		}
		ogm.Default.UseMapping(m)
	}

	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ogm.New(s, opts...), nil
}

// ownedSession releases its store once the session closes.
type ownedSession struct {
	graph.Session
	once    sync.Once
	release func(context.Context) error
}

func owned(s graph.Session, release func(context.Context) error) *ownedSession {
	return &ownedSession{Session: s, release: release}
}

func (o *ownedSession) Close(ctx context.Context) error {
	err := o.Session.Close(ctx)
	o.once.Do(func() {
		err = errors.Join(err, o.release(ctx))
	})
	return err
}
