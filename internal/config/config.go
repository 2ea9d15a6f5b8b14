// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default engine and transport values.
const (
	DefaultHistorySize          = 200
	DefaultMaxPlacementAttempts = 50
	DefaultFadeInDelay          = 10 * time.Millisecond
	DefaultReconnectDelay       = 5 * time.Second
	DefaultVolume               = 80
)

// Config is the configuration for scatterd.
// Loaded from ~/.config/scatter/scatter.toml
type Config struct {
	Styles    Styles          `toml:"styles"`
	Engine    EngineConfig    `toml:"engine"`
	Transport TransportConfig `toml:"transport"`
	HTTP      HTTPConfig      `toml:"http"`
	DBus      DBusConfig      `toml:"dbus"`
	Audio     AudioConfig     `toml:"audio"`
}

// EngineConfig tunes deduplication, placement and lifecycle timing.
type EngineConfig struct {
	HistorySize          int      `toml:"history_size"`           // Dedup window
	MaxPlacementAttempts int      `toml:"max_placement_attempts"` // Caps the random tier
	FadeInDelay          Duration `toml:"fade_in_delay"`          // Delay between placement and fade-in
	Seed                 uint64   `toml:"seed"`                   // 0 = seed from time
}

// TransportConfig selects the event sources.
type TransportConfig struct {
	WebSocketURL   string   `toml:"websocket_url"` // Empty disables the websocket client
	ReconnectDelay Duration `toml:"reconnect_delay"`
	Stdin          bool     `toml:"stdin"` // Read events from standard input
}

// HTTPConfig contains the control API settings.
type HTTPConfig struct {
	Listen string `toml:"listen"` // e.g. "127.0.0.1:8765"; empty disables the API
}

// DBusConfig contains the session bus service settings.
type DBusConfig struct {
	Enabled bool `toml:"enabled"`
}

// AudioConfig contains the message chime settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled"`
	Volume  int    `toml:"volume"` // 0-100
	Sound   string `toml:"sound"`  // WAV, OGG or MP3 file
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Styles: DefaultStyles(),
		Engine: EngineConfig{
			HistorySize:          DefaultHistorySize,
			MaxPlacementAttempts: DefaultMaxPlacementAttempts,
			FadeInDelay:          Duration(DefaultFadeInDelay),
		},
		Transport: TransportConfig{
			ReconnectDelay: Duration(DefaultReconnectDelay),
		},
		DBus: DBusConfig{
			Enabled: true,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  DefaultVolume,
		},
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "scatter", "scatter.toml"), nil
}

// StatePath returns the directory for logs and other runtime state.
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state.
func StatePath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "scatter")
}

// LogPath returns the log file used while the terminal surface owns the screen.
func LogPath() string {
	return filepath.Join(StatePath(), "scatterd.log")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns the default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	s := c.Styles
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", s.Width, s.Height)
	}
	if s.MaxMessages < 1 || s.MaxMessages > 50 {
		return fmt.Errorf("max_messages must be between 1 and 50, got %d", s.MaxMessages)
	}
	if s.MessageDuration <= 0 {
		return fmt.Errorf("message_duration must be positive, got %v", s.MessageDuration)
	}
	if s.AnimationDuration < 0 {
		return fmt.Errorf("animation_duration cannot be negative, got %d", s.AnimationDuration)
	}
	if s.Margin < 0 {
		return fmt.Errorf("margin cannot be negative, got %d", s.Margin)
	}
	for name, color := range map[string]string{
		"text_color":     s.TextColor,
		"username_color": s.UsernameColor,
		"bg_color":       s.BgColor,
	} {
		if !validColor(color) {
			return fmt.Errorf("invalid %s %q, must be a hex color like #a0a0ff", name, color)
		}
	}

	if c.Engine.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1, got %d", c.Engine.HistorySize)
	}
	if c.Engine.MaxPlacementAttempts < 1 {
		return fmt.Errorf("max_placement_attempts must be at least 1, got %d", c.Engine.MaxPlacementAttempts)
	}
	if c.Engine.FadeInDelay < 0 {
		return fmt.Errorf("fade_in_delay cannot be negative")
	}
	if c.Transport.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	return nil
}
