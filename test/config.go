// Package test holds end-to-end scenarios run against a real server.
package test

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL targets an already running server instead of an in-process one
	ServerURL string `envconfig:"E2E_SERVER_URL"`
	// E2E_LOG_LEVEL sets the level of the in-process server and client loggers
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
	// E2E_COLOURS enables colorized step headers
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
