package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using its
// `env` and `envDefault` tags.
//
//	type Config struct {
//	    Port       int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    SessionTTL int `env:"SESSION_TTL_HOURS" envDefault:"720"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
