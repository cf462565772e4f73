// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config holds the server settings.
type Config struct {
	// Host is the bind address; empty listens on every interface.
	Host string `env:"HOST"`
	Port int    `env:"PORT,default=8001" validate:"min=1,max=65535"`
	// TCPPort enables the framed TCP transport when non-zero.
	TCPPort int `env:"TCP_PORT,default=0" validate:"omitempty,min=1,max=65535,nefield=Port"`
	// SharedPort serves framed TCP clients on Port next to WebSocket upgrades.
	SharedPort bool `env:"SHARED_PORT,default=false" validate:"excluded_with=TCPPort"`
	// SniffTimeout is how long a shared-port connection may stay silent before it is treated as TCP.
	SniffTimeout       time.Duration `env:"SNIFF_TIMEOUT,default=500ms" validate:"gt=0"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	OutgoingBufferSize int           `env:"OUTGOING_BUFFER_SIZE,default=16" validate:"min=1"`
	ReadLimit          int           `env:"READ_LIMIT,default=65536" validate:"min=1"`
	PingInterval       time.Duration `env:"PING_INTERVAL,default=25s" validate:"min=0"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=0"`
}

// Load reads an optional .env file, then decodes and validates the environment.
func Load() (Config, error) {
	// A missing .env file is fine, the process environment still applies.
	_ = godotenv.Load()

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return Parse(es)
}

// Parse decodes and validates the given environment.
func Parse(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Addr is the WebSocket listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TCPAddr is the framed TCP listen address. ok is false when TCP is disabled.
func (c Config) TCPAddr() (addr string, ok bool) {
	if c.TCPPort == 0 {
		return "", false
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort)), true
}
