// Package config provides centralized configuration management for the
// mapper and its engines.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Engine names a graph engine implementation.
type Engine string

const (
	EngineMemory Engine = "memory"
	EngineSQLite Engine = "sqlite"
	EngineBolt   Engine = "bolt"
)

// Neo4j holds Bolt connection settings.
type Neo4j struct {
	// URI is the server address (NEO4J_URI)
	URI string `yaml:"uri"`

	// User is the database user (NEO4J_USER)
	User string `yaml:"user"`

	// Password is the database password (NEO4J_PASSWORD)
	Password string `yaml:"password"`

	// Database selects a Neo4j database (NEO4J_DATABASE)
	Database string `yaml:"database"`

	// Flavor is neo4j or memgraph (NEO4J_FLAVOR)
	Flavor string `yaml:"flavor"`
}

// OGMEnv holds all mapper settings.
type OGMEnv struct {
	// Engine selects the graph engine (OGM_ENGINE)
	Engine Engine `yaml:"engine"`

	// SQLitePath is the sqlite database file (OGM_SQLITE_PATH)
	SQLitePath string `yaml:"sqlite_path"`

	Neo4j Neo4j `yaml:"neo4j"`

	// MappingFile is a YAML mapping table applied at startup (OGM_MAPPING_FILE)
	MappingFile string `yaml:"mapping_file"`

	// LogLevel is debug, info, warn or error (OGM_LOG_LEVEL)
	LogLevel string `yaml:"log_level"`
}

var (
	env     *OGMEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *OGMEnv {
	envOnce.Do(func() {
		e := environ().withDefaults()
		env = &e
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

// environ reads the variables that are set, without defaults.
func environ() OGMEnv {
	return OGMEnv{
		Engine:     Engine(strings.ToLower(os.Getenv("OGM_ENGINE"))),
		SQLitePath: os.Getenv("OGM_SQLITE_PATH"),
		Neo4j: Neo4j{
			URI:      os.Getenv("NEO4J_URI"),
			User:     os.Getenv("NEO4J_USER"),
			Password: os.Getenv("NEO4J_PASSWORD"),
			Database: os.Getenv("NEO4J_DATABASE"),
			Flavor:   os.Getenv("NEO4J_FLAVOR"),
		},
		MappingFile: os.Getenv("OGM_MAPPING_FILE"),
		LogLevel:    os.Getenv("OGM_LOG_LEVEL"),
	}
}

func (c OGMEnv) withDefaults() OGMEnv {
	if c.Engine == "" {
		c.Engine = EngineMemory
	}
	if c.SQLitePath == "" {
		c.SQLitePath = GetPaths().Database
	}
	if c.Neo4j.URI == "" {
		c.Neo4j.URI = "bolt://localhost:7687"
	}
	if c.Neo4j.Flavor == "" {
		c.Neo4j.Flavor = "neo4j"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Merge returns c with every setting that over defines replacing its own.
func (c OGMEnv) Merge(over OGMEnv) OGMEnv {
	pick := func(base, o string) string {
		if o != "" {
			return o
		}
		return base
	}
	c.Engine = Engine(pick(string(c.Engine), string(over.Engine)))
	c.SQLitePath = pick(c.SQLitePath, over.SQLitePath)
	c.Neo4j.URI = pick(c.Neo4j.URI, over.Neo4j.URI)
	c.Neo4j.User = pick(c.Neo4j.User, over.Neo4j.User)
	c.Neo4j.Password = pick(c.Neo4j.Password, over.Neo4j.Password)
	c.Neo4j.Database = pick(c.Neo4j.Database, over.Neo4j.Database)
	c.Neo4j.Flavor = pick(c.Neo4j.Flavor, over.Neo4j.Flavor)
	c.MappingFile = pick(c.MappingFile, over.MappingFile)
	c.LogLevel = pick(c.LogLevel, over.LogLevel)
	return c
}

// Load reads settings from a YAML file. Environment variables that are set
// override the file; unset values take their defaults.
func Load(path string) (*OGMEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file OGMEnv
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c := file.Merge(environ()).withDefaults()
	if c.MappingFile != "" && !filepath.IsAbs(c.MappingFile) {
		c.MappingFile = filepath.Join(filepath.Dir(path), c.MappingFile)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the engine selection and the settings it needs.
func (c *OGMEnv) Validate() error {
	switch c.Engine {
	case EngineMemory:
	case EngineSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("engine %s: sqlite_path is required", c.Engine)
		}
	case EngineBolt:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("engine %s: neo4j.uri is required", c.Engine)
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Paths holds standard directory paths.
type Paths struct {
	// Home is the mapper home directory (~/.ogm)
	Home string

	// Database is the default sqlite database (~/.ogm/graph.db)
	Database string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		ogmHome := filepath.Join(home, ".ogm")

		paths = &Paths{
			Home:     ogmHome,
			Database: filepath.Join(ogmHome, "graph.db"),
		}
	})
	return paths
}

// Path returns a path under the home directory.
// Equivalent to filepath.Join(~/.ogm, parts...)
func Path(parts ...string) string {
	p := GetPaths()
	allParts := append([]string{p.Home}, parts...)
	return filepath.Join(allParts...)
}
