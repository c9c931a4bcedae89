// Package config loads library configuration from lattice.yml or the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the Lattice configuration.
type Config struct {
	Scope    ScopeConfig    `mapstructure:"scope"`
	Memo     MemoConfig     `mapstructure:"memo"`
	Database DatabaseConfig `mapstructure:"database"`
	Boundary BoundaryConfig `mapstructure:"boundary"`
}

// ScopeConfig decides which registered extensions are in scope. Patterns are
// prefix patterns with a trailing "*" wildcard, matched against extension
// names and descriptions. An empty list means everything is in scope.
type ScopeConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// MemoConfig configures the memoization collaborator.
type MemoConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	ErrorTTL time.Duration `mapstructure:"error_ttl"`
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	CatalogTable string `mapstructure:"catalog_table"`
}

// BoundaryConfig configures the optional claims-scoped boundary filter.
type BoundaryConfig struct {
	Secret      string `mapstructure:"secret"`
	TenantField string `mapstructure:"tenant_field"`
}

// Load loads the configuration from lattice.yml or lattice.yaml.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads the configuration from an explicit file path. An empty path
// falls back to lattice.yml in the working directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("memo.ttl", 5*time.Minute)
	v.SetDefault("memo.error_ttl", 10*time.Second)
	v.SetDefault("database.catalog_table", "lattice_tables")
	v.SetDefault("boundary.tenant_field", "tenant_id")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lattice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LATTICE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL from the environment or config.
func GetDatabaseURL(config *Config) string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return config.Database.URL
}

func validateConfig(config *Config) error {
	if config.Memo.TTL < 0 {
		return fmt.Errorf("memo.ttl must not be negative")
	}
	if config.Memo.ErrorTTL < 0 {
		return fmt.Errorf("memo.error_ttl must not be negative")
	}
	if config.Database.CatalogTable == "" {
		return fmt.Errorf("database.catalog_table must not be empty")
	}
	return nil
}
