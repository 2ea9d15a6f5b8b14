package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may be overridden from the environment.
type envOverrides struct {
	WebSocketURL *string `env:"SCATTER_WS_URL"`
	HTTPListen   *string `env:"SCATTER_HTTP_ADDR"`
	Debug        *bool   `env:"SCATTER_DEBUG"`
	MaxMessages  *int    `env:"SCATTER_MAX_MESSAGES"`
	Stdin        *bool   `env:"SCATTER_STDIN"`
}

// ApplyEnv overlays environment variable overrides onto the config and
// re-validates the result.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.WebSocketURL != nil {
		c.Transport.WebSocketURL = *o.WebSocketURL
	}
	if o.HTTPListen != nil {
		c.HTTP.Listen = *o.HTTPListen
	}
	if o.Stdin != nil {
		c.Transport.Stdin = *o.Stdin
	}

	var patch StylePatch
	if o.Debug != nil {
		patch.DebugMode = o.Debug
	}
	if o.MaxMessages != nil {
		v := float64(*o.MaxMessages)
		patch.MaxMessages = &v
	}
	c.Styles = c.Styles.Apply(patch)

	return c.Validate()
}
