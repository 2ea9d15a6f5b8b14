package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/scatter/internal/audio"
	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/dbus"
	"github.com/jmylchreest/scatter/internal/httpapi"
	"github.com/jmylchreest/scatter/internal/overlay"
	"github.com/jmylchreest/scatter/internal/schedule"
	"github.com/jmylchreest/scatter/internal/transport"
	"github.com/jmylchreest/scatter/internal/tui"
)

// reloadTimeout bounds how long a config reload waits on the engine.
const reloadTimeout = 5 * time.Second

// Options configures a Daemon.
type Options struct {
	ConfigPath string // Watched for hot reload; empty disables reloading
	Headless   bool   // Run without the terminal surface
	Stdin      io.Reader
	Logger     *slog.Logger
}

// Daemon owns every long-running scatterd component.
type Daemon struct {
	cfg        *config.Config
	configPath string
	headless   bool
	logger     *slog.Logger

	loop       *schedule.Loop
	canvas     *tui.Canvas
	engine     *overlay.Engine
	dispatcher *overlay.Dispatcher
	chime      *audio.Chime
	bus        *dbus.Server
	sources    []transport.Source
}

// New builds a daemon from a validated configuration.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		headless:   opts.Headless,
		logger:     opts.Logger,
		loop:       schedule.NewLoop(schedule.DefaultBacklog, opts.Logger),
		canvas:     tui.NewCanvas(),
		chime:      audio.NewChime(cfg.Audio, opts.Logger),
	}

	engine, err := overlay.New(overlay.Options{
		Styles:      cfg.Styles,
		HistorySize: cfg.Engine.HistorySize,
		MaxAttempts: cfg.Engine.MaxPlacementAttempts,
		FadeInDelay: cfg.Engine.FadeInDelay.Duration(),
		Seed:        cfg.Engine.Seed,
		Scheduler:   d.loop,
		Surface:     d.canvas,
		Logger:      opts.Logger,
		OnShown:     d.onShown,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay engine: %w", err)
	}
	d.engine = engine
	d.dispatcher = overlay.NewDispatcher(d.loop, engine)

	if cfg.DBus.Enabled {
		d.bus = dbus.NewServer(d.dispatcher, opts.Logger)
	}

	if cfg.Transport.WebSocketURL != "" {
		d.sources = append(d.sources, transport.NewWebSocketSource(
			cfg.Transport.WebSocketURL, cfg.Transport.ReconnectDelay.Duration(), opts.Logger))
	}
	if cfg.Transport.Stdin {
		if opts.Headless {
			d.sources = append(d.sources, transport.NewLineSource(opts.Stdin, transport.StdinSender, opts.Logger))
		} else {
			opts.Logger.Warn("stdin transport needs -headless, the terminal surface owns stdin")
		}
	}

	return d, nil
}

// Dispatcher returns the serialized engine handle.
func (d *Daemon) Dispatcher() *overlay.Dispatcher {
	return d.dispatcher
}

// Run starts every component and blocks until ctx is cancelled, the user
// quits the terminal surface, or a required component fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		first error
	)
	fail := func(err error) {
		errMu.Lock()
		if first == nil {
			first = err
		}
		errMu.Unlock()
		cancel()
	}
	spawn := func(name string, required bool, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			if required {
				fail(fmt.Errorf("%s: %w", name, err))
				return
			}
			d.logger.Error("component stopped", "component", name, "error", err)
		}()
	}

	spawn("event loop", true, d.loop.Run)

	for _, src := range d.sources {
		spawn(src.Name(), false, func(ctx context.Context) error {
			return src.Run(ctx, d.dispatcher)
		})
	}

	if addr := d.cfg.HTTP.Listen; addr != "" {
		srv := httpapi.NewServer(addr, httpapi.NewRouter(d.dispatcher, d.logger), d.logger)
		spawn("http", true, srv.Run)
	}

	if d.bus != nil {
		if err := d.bus.Start(); err != nil {
			d.logger.Warn("D-Bus control service unavailable", "error", err)
		} else {
			defer func() { _ = d.bus.Stop() }()
		}
	}
	defer d.chime.Close()

	if watcher := d.startWatcher(ctx); watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	d.logger.Info("scatterd started",
		"headless", d.headless,
		"sources", len(d.sources),
		"http", d.cfg.HTTP.Listen,
		"dbus", d.bus != nil,
	)

	if d.headless {
		<-ctx.Done()
	} else if err := tui.Run(ctx, d.canvas, d.dispatcher, d.logger); err != nil {
		fail(fmt.Errorf("terminal surface: %w", err))
	}

	cancel()
	wg.Wait()
	d.logger.Info("scatterd stopped")

	errMu.Lock()
	defer errMu.Unlock()
	return first
}

// onShown runs on the event loop after each message is placed.
func (d *Daemon) onShown(msg *overlay.ActiveMessage) {
	d.chime.OnShown(msg)
	if d.bus != nil {
		if err := d.bus.EmitMessageShown(msg); err != nil {
			d.logger.Debug("failed to emit MessageShown", "id", msg.ID, "error", err)
		}
	}
}

// startWatcher watches the config file and the chime sound for changes.
func (d *Daemon) startWatcher(ctx context.Context) *FileWatcher {
	if d.configPath == "" {
		return nil
	}

	watcher, err := NewFileWatcher(d.logger)
	if err != nil {
		d.logger.Warn("config hot reload disabled", "error", err)
		return nil
	}

	if err := watcher.Watch(d.configPath, func() { d.reloadConfig(ctx, watcher) }); err != nil {
		d.logger.Warn("config hot reload disabled", "path", d.configPath, "error", err)
		_ = watcher.Stop()
		return nil
	}
	d.watchSound(watcher, "", d.chime.Sound())

	watcher.Start()
	d.logger.Debug("config watcher started", "path", d.configPath)
	return watcher
}

// reloadConfig loads and validates the config file, then applies it. An
// invalid file is logged and the running configuration is kept.
func (d *Daemon) reloadConfig(ctx context.Context, watcher *FileWatcher) {
	cfg, err := config.Load(d.configPath)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err != nil {
		d.logger.Warn("config file changed but validation failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()
	if err := d.dispatcher.Reconfigure(ctx, cfg.Styles); err != nil {
		d.logger.Warn("failed to apply reloaded styles", "error", err)
		return
	}

	previous := d.chime.Sound()
	d.chime.Update(cfg.Audio)
	d.watchSound(watcher, previous, d.chime.Sound())

	d.logger.Info("config reloaded successfully")
}

// watchSound moves the sound file watch from previous to next.
func (d *Daemon) watchSound(watcher *FileWatcher, previous, next string) {
	if previous == next {
		return
	}
	if previous != "" {
		watcher.Unwatch(previous)
	}
	if next == "" {
		return
	}
	if err := watcher.Watch(next, d.chime.Reload); err != nil {
		d.logger.Warn("failed to watch chime sound", "path", next, "error", err)
	}
}
