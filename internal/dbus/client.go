package dbus

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/scatter/internal/config"
)

// Client calls a running scatterd over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, DBusPath),
	}, nil
}

// Close closes the client's bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Show sends a message and returns the identity it was given.
func (c *Client) Show(ctx context.Context, sender, text string) (string, error) {
	var id string
	if err := c.call(ctx, "Show", sender, text).Store(&id); err != nil {
		return "", fmt.Errorf("Show failed: %w", err)
	}
	return id, nil
}

// Clear removes every message.
func (c *Client) Clear(ctx context.Context) error {
	if err := c.call(ctx, "Clear").Err; err != nil {
		return fmt.Errorf("Clear failed: %w", err)
	}
	return nil
}

// ToggleDebug flips placement outlines and returns the new state.
func (c *Client) ToggleDebug(ctx context.Context) (bool, error) {
	var debug bool
	if err := c.call(ctx, "ToggleDebug").Store(&debug); err != nil {
		return false, fmt.Errorf("ToggleDebug failed: %w", err)
	}
	return debug, nil
}

// ResetStyles restores the daemon's configured styles.
func (c *Client) ResetStyles(ctx context.Context) error {
	if err := c.call(ctx, "ResetStyles").Err; err != nil {
		return fmt.Errorf("ResetStyles failed: %w", err)
	}
	return nil
}

// SetStyles sends a partial style update.
func (c *Client) SetStyles(ctx context.Context, p config.StylePatch) error {
	styles, err := VariantsFromStylePatch(p)
	if err != nil {
		return err
	}
	if err := c.call(ctx, "SetStyles", styles).Err; err != nil {
		return fmt.Errorf("SetStyles failed: %w", err)
	}
	return nil
}

// Status reads the daemon's engine status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var (
		active, queued, history uint32
		debug                   bool
		started                 int64
	)
	if err := c.call(ctx, "Status").Store(&active, &queued, &history, &debug, &started); err != nil {
		return Status{}, fmt.Errorf("Status failed: %w", err)
	}
	return Status{
		Active:    int(active),
		Queued:    int(queued),
		History:   int(history),
		DebugMode: debug,
		StartedAt: time.Unix(started, 0),
	}, nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, DBusInterface+"."+method, 0, args...)
}
