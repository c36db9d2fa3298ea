package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":4000")
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")
	v.SetDefault("auth.mode", "session")
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.handshakeTimeout", "10s")
	v.SetDefault("identity.backend", "sqlite")
	v.SetDefault("identity.redis.addr", "localhost:6379")
	v.SetDefault("identity.redis.db", 0)
	v.SetDefault("identity.sqlite.path", "localseva.db")
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("LOCALSEVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case "session":
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwtSecret is required when auth.mode is %q", c.Auth.Mode)
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}

	switch c.Identity.Backend {
	case "redis", "sqlite":
	default:
		return fmt.Errorf("unknown identity.backend %q", c.Identity.Backend)
	}

	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("unknown server.connectionLimit.mode %q", c.Server.ConnectionLimit.Mode)
	}
	return nil
}
