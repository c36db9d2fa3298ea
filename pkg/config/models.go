package config

import "time"

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Identity  IdentityConfig
	Transport TransportConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address         string
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"` // 0 disables the limiter
	Mode     string `mapstructure:"mode"`     // "reject" or "cycle"
}

type AuthConfig struct {
	// Mode selects the credential variant: "session" validates an opaque
	// session token against the identity store, "jwt" verifies a signed
	// token and then resolves the user profile.
	Mode             string        `mapstructure:"mode"`
	JWTSecret        string        `mapstructure:"jwtSecret"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
}

type IdentityConfig struct {
	Backend string       `mapstructure:"backend"` // "redis" or "sqlite"
	Redis   RedisConfig  `mapstructure:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type LoggingConfig struct {
	Level  string
	Format string
}
