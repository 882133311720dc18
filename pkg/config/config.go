// Package config loads the gateway's YAML configuration and constructs
// the core components from it: the connection registry, the session
// manager, and warehouse discovery.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"gopkg.in/yaml.v3"

	"github.com/txn2/analytics-gateway/pkg/connections"
	"github.com/txn2/analytics-gateway/pkg/dataset"
	"github.com/txn2/analytics-gateway/pkg/session"
	"github.com/txn2/analytics-gateway/pkg/warehouse"
)

// Config is the complete gateway configuration.
type Config struct {
	Connections map[string]ConnectionConfig `yaml:"connections"`
	Session     SessionConfig               `yaml:"session"`
	Snowflake   *SnowflakeConfig            `yaml:"snowflake,omitempty"`

	// MaxEngines bounds the registry engine cache.
	MaxEngines int `yaml:"max_engines"`
}

// ConnectionConfig defines one named connection.
type ConnectionConfig struct {
	URL string `yaml:"url"`

	// Provider overrides the tag derived from the URL scheme.
	Provider string `yaml:"provider"`
}

// SessionConfig configures the session manager.
type SessionConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes"`

	// SeedPaths lists data files registered into every new session.
	SeedPaths []string `yaml:"seed_paths"`
}

// SnowflakeConfig configures warehouse discovery.
type SnowflakeConfig struct {
	Account        string   `yaml:"account"`
	Warehouse      string   `yaml:"warehouse"`
	ConnectionName string   `yaml:"connection_name"`
	Databases      []string `yaml:"databases"`
	MaxEngines     int      `yaml:"max_engines"`

	// TokenExchangeURL is the delegated-auth token exchange endpoint.
	// Empty disables delegated auth.
	TokenExchangeURL string `yaml:"token_exchange_url"`

	// Credentials maps local connection names to static credentials.
	Credentials map[string]CredentialConfig `yaml:"credentials"`
}

// CredentialConfig is one static warehouse credential.
type CredentialConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

const defaultTimeoutMinutes = 30

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements.
func (c *Config) Validate() error {
	for name, conn := range c.Connections {
		if conn.URL == "" {
			return fmt.Errorf("connection %q is missing required url", name)
		}
	}
	if c.Snowflake != nil {
		if c.Snowflake.Account == "" {
			return fmt.Errorf("snowflake config requires an account")
		}
		if c.Snowflake.Warehouse == "" {
			return fmt.Errorf("snowflake config requires a warehouse")
		}
	}
	return nil
}

// BuildRegistry constructs the connection registry from the configured
// connections.
func (c *Config) BuildRegistry() *connections.Registry {
	reg := connections.NewRegistry(c.MaxEngines)
	for name, conn := range c.Connections {
		provider := conn.Provider
		if provider == "" {
			provider = connections.ProviderFromURL(conn.URL)
		}
		reg.Register(name, connections.URLFactory(provider, dsnFromURL(provider, conn.URL)), provider)
	}
	return reg
}

// dsnFromURL adapts a configured URL to what the driver expects.
// Postgres drivers take the URL verbatim; sqlite takes a bare path.
func dsnFromURL(provider, url string) string {
	if provider == "sqlite" || provider == "sqlite3" {
		return strings.TrimPrefix(url, "sqlite://")
	}
	return url
}

// BuildSessionManager constructs the session manager, loading seed
// datasets from the configured paths. Seed table names derive from file
// stems, sanitized and de-duplicated.
func (c *Config) BuildSessionManager() (*session.Manager, error) {
	timeout := c.Session.TimeoutMinutes
	if timeout == 0 {
		timeout = defaultTimeoutMinutes
	}

	seed, err := LoadSeedFiles(c.Session.SeedPaths)
	if err != nil {
		return nil, err
	}
	return session.NewManager(time.Duration(timeout)*time.Minute, seed, nil), nil
}

// LoadSeedFiles reads data files into named seed datasets.
func LoadSeedFiles(paths []string) ([]dataset.Named, error) {
	var (
		seed  []dataset.Named
		names []string
	)
	for _, path := range paths {
		ds, err := dataset.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading seed file %q: %w", path, err)
		}
		name := session.UniqueTableName(names, dataset.Stem(path))
		names = append(names, name)
		seed = append(seed, dataset.Named{Name: name, Data: ds})
	}
	return seed, nil
}

// BuildDiscovery constructs warehouse discovery, or nil when no
// snowflake section is configured.
func (c *Config) BuildDiscovery() (*warehouse.Discovery, error) {
	if c.Snowflake == nil {
		return nil, nil
	}
	s := c.Snowflake

	named := make(map[string]sf.Config, len(s.Credentials))
	for name, cred := range s.Credentials {
		named[name] = sf.Config{
			Account:  s.Account,
			User:     cred.User,
			Password: cred.Password,
			Role:     cred.Role,
		}
	}
	connector := warehouse.NewSnowflakeConnector(s.Account, s.Warehouse, named)

	var exchanger warehouse.TokenExchanger
	if s.TokenExchangeURL != "" {
		exchanger = warehouse.NewHTTPExchanger(s.TokenExchangeURL, nil)
	}

	return warehouse.New(warehouse.Config{
		Account:        s.Account,
		Warehouse:      s.Warehouse,
		ConnectionName: s.ConnectionName,
		Databases:      s.Databases,
		MaxEngines:     s.MaxEngines,
	}, connector, exchanger)
}
