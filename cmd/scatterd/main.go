// Package main is the entry point for the scatterd overlay daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/daemon"
)

const appName = "scatterd"

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/scatter/scatter.toml)")
	headless := flag.Bool("headless", false, "Run without the terminal surface (logs to stderr, enables the stdin transport)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to get config path:", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logOut, closeLog, err := logOutput(*headless)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open log file:", err)
		os.Exit(1)
	}
	defer closeLog()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting scatterd", "version", version, "config", path)

	d, err := daemon.New(cfg, daemon.Options{
		ConfigPath: path,
		Headless:   *headless,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialize daemon", "error", err)
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		logger.Error("scatterd failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

// logOutput returns stderr in headless mode. The terminal surface owns the
// screen otherwise, so logs go to a file under the state directory.
func logOutput(headless bool) (io.Writer, func(), error) {
	if headless {
		return os.Stderr, func() {}, nil
	}

	path := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
