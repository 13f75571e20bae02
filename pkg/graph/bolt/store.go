// Package bolt stores a property graph in Neo4j or Memgraph over the Bolt
// protocol.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/joss/ogm/internal/logging"
)

// Flavor selects the Cypher dialect of the server.
type Flavor string

const (
	FlavorNeo4j    Flavor = "neo4j"
	FlavorMemgraph Flavor = "memgraph"
)

// ParseFlavor accepts "neo4j" and "memgraph". Empty means neo4j.
func ParseFlavor(s string) (Flavor, error) {
	switch Flavor(strings.ToLower(strings.TrimSpace(s))) {
	case "", FlavorNeo4j:
		return FlavorNeo4j, nil
	case FlavorMemgraph:
		return FlavorMemgraph, nil
	}
	return "", fmt.Errorf("unknown bolt flavor %q", s)
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	Flavor   Flavor
}

// DefaultConfig targets a local Neo4j without authentication.
func DefaultConfig() Config {
	return Config{
		URI:    "bolt://localhost:7687",
		Flavor: FlavorNeo4j,
	}
}

// Store is a Bolt driver shared by its sessions.
type Store struct {
	driver neo4j.DriverWithContext
	config Config
	log    *logging.Logger
}

// New creates a driver. No connection is made until first use.
func New(cfg Config) (*Store, error) {
	if cfg.Flavor == "" {
		cfg.Flavor = FlavorNeo4j
	}
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	return &Store{
		driver: driver,
		config: cfg,
		log:    logging.New("bolt"),
	}, nil
}

// Connect creates a driver and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("connect %s: %w", cfg.URI, err)
	}
	return s, nil
}

// ConnectWithRetry tries to connect with exponential backoff: 100ms,
// 200ms, 400ms... Returns the last error when every attempt fails.
func ConnectWithRetry(ctx context.Context, cfg Config, maxRetries int) (*Store, error) {
	log := logging.New("bolt")
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		s, err := Connect(pingCtx, cfg)
		cancel()
		if err == nil {
			return s, nil
		}
		lastErr = err
		if !IsConnectionError(err) {
			break
		}
		log.Warn("connect_retry", map[string]any{"uri": cfg.URI, "attempt": i + 1}, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(100<<i) * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no connection attempts")
	}
	return nil, lastErr
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if neo4j.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "EOF")
}

// Config returns the connection settings.
func (s *Store) Config() Config { return s.config }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the database driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Open starts a session. Memgraph has a single database and ignores
// Config.Database.
func (s *Store) Open(ctx context.Context) *Session {
	cfg := neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite}
	if s.config.Flavor == FlavorNeo4j {
		cfg.DatabaseName = s.config.Database
	}
	return newSession(&driverConn{session: s.driver.NewSession(ctx, cfg)}, s.config.Flavor, s.log)
}
