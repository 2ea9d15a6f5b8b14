package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// DefaultMinInterval is the shortest gap between two chimes.
const DefaultMinInterval = 150 * time.Millisecond

// Chime plays the configured sound when a message is shown.
type Chime struct {
	mu     sync.Mutex
	logger *slog.Logger
	player *Player

	cfg         config.AudioConfig
	minInterval time.Duration
	last        time.Time

	play func(path string) error
	now  func() time.Time
}

// NewChime creates a chime from the audio configuration.
func NewChime(cfg config.AudioConfig, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	player := NewPlayer(logger)
	c := &Chime{
		logger:      logger,
		player:      player,
		minInterval: DefaultMinInterval,
		play:        player.Play,
		now:         time.Now,
	}
	c.Update(cfg)
	return c
}

// Update applies a new audio configuration, typically after a config reload.
func (c *Chime) Update(cfg config.AudioConfig) {
	c.mu.Lock()
	previous := c.cfg.Sound
	c.cfg = cfg
	c.mu.Unlock()

	c.player.SetVolume(float64(cfg.Volume) / 100.0)
	if previous != "" {
		c.player.Invalidate(previous)
	}

	if cfg.Enabled && cfg.Sound != "" {
		if err := c.player.Preload(cfg.Sound); err != nil {
			c.logger.Warn("failed to preload chime", "path", cfg.Sound, "error", err)
		}
	}
}

// Reload re-reads the sound file after it changed on disk.
func (c *Chime) Reload() {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	c.Update(cfg)
}

// Sound returns the configured sound path, or "" when disabled.
func (c *Chime) Sound() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Enabled {
		return ""
	}
	return expandPath(c.cfg.Sound)
}

// OnShown plays the chime for a newly shown message.
func (c *Chime) OnShown(msg *overlay.ActiveMessage) {
	c.mu.Lock()
	if !c.cfg.Enabled || c.cfg.Sound == "" {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.minInterval {
		c.mu.Unlock()
		c.logger.Debug("chime rate limited", "id", msg.ID)
		return
	}
	c.last = now
	path := c.cfg.Sound
	c.mu.Unlock()

	if err := c.play(path); err != nil {
		c.logger.Debug("failed to play chime", "id", msg.ID, "error", err)
	}
}

// Close releases the audio device.
func (c *Chime) Close() {
	c.player.Close()
}
