// Package config loads and validates the service configuration from YAML
// files and environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/veridex/compliance-core/internal/audit"
	"github.com/veridex/compliance-core/internal/compliance"
	"github.com/veridex/compliance-core/pkg/errors"
)

// ProviderConfig describes one external identity provider, in priority
// order as listed.
type ProviderConfig struct {
	Name     string        `mapstructure:"name" yaml:"name"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config is the full service configuration.
type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Server struct {
		Host            string        `mapstructure:"host" yaml:"host"`
		Port            int           `mapstructure:"port" yaml:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Redis struct {
		Address  string `mapstructure:"address" yaml:"address"`
		Password string `mapstructure:"password" yaml:"password"`
		DB       int    `mapstructure:"db" yaml:"db"`
	} `mapstructure:"redis" yaml:"redis"`

	Database struct {
		Driver string `mapstructure:"driver" yaml:"driver"` // postgres or sqlite
		DSN    string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`

	// ProfileSecret feeds the investor-profile integrity hash.
	ProfileSecret string `mapstructure:"profile_secret" yaml:"profile_secret"`

	// ArtifactDir is where the filesystem artifact store keeps report blobs.
	ArtifactDir string `mapstructure:"artifact_dir" yaml:"artifact_dir"`

	// AdminCaller is granted Administrative access at startup.
	AdminCaller string `mapstructure:"admin_caller" yaml:"admin_caller"`

	Providers []ProviderConfig        `mapstructure:"identity_providers" yaml:"identity_providers"`
	Policy    compliance.PolicyConfig `mapstructure:"policy" yaml:"policy"`
	Audit     audit.Config            `mapstructure:"audit" yaml:"audit"`
}

// Load reads configuration from the given paths (and the working
// directory), applies VERIDEX_-prefixed environment overrides and
// validates the result.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("VERIDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(errors.KindConfiguration, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "compliance.db")
	v.SetDefault("artifact_dir", "artifacts")
	v.SetDefault("admin_caller", "admin")
}

// Validate enforces the invariants the engine cannot start without.
func (c *Config) Validate() error {
	if c.ProfileSecret == "" {
		return errors.New(errors.KindConfiguration, "profile_secret is required")
	}
	if len(c.Providers) == 0 {
		return errors.New(errors.KindConfiguration, "at least one identity provider must be configured")
	}
	for i, p := range c.Providers {
		if p.Name == "" || p.Endpoint == "" {
			return errors.Newf(errors.KindConfiguration, "identity provider %d needs a name and endpoint", i)
		}
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.Newf(errors.KindConfiguration, "unsupported database driver %q", c.Database.Driver)
	}
	return c.Policy.Normalize()
}
