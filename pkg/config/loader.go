package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses process environment variables into the provided struct.
// Fields are mapped with `env` tags; `notEmpty` and `required` are honored,
// and time.Duration fields accept values such as "15m" or "168h".
//
// Example:
//
//	type Config struct {
//	    Port   int           `env:"HTTP_PORT" envDefault:"8080"`
//	    Secret string        `env:"TOKEN_SECRET,notEmpty"`
//	    TTL    time.Duration `env:"TOKEN_TTL" envDefault:"15m"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFromMap parses the given key/value set instead of the process environment.
// It lets callers build a fully validated configuration without touching os.Environ.
func LoadFromMap(cfg any, vars map[string]string) error {
	if vars == nil {
		vars = map[string]string{}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
