package main

import (
	"context"
	"fmt"

	"github.com/jmylchreest/scatter/internal/dbus"
	"github.com/jmylchreest/scatter/internal/httpapi"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// controller is the subset of scatterd's control surface the CLI uses.
// Both the D-Bus and HTTP clients implement it.
type controller interface {
	Show(ctx context.Context, sender, text string) (string, error)
	Execute(ctx context.Context, cmd overlay.Command) error
	Status(ctx context.Context) (overlay.Stats, error)
	Close() error
}

func dialController() (controller, error) {
	if globalOpts.http != "" {
		logger.Debug("using HTTP control API", "addr", globalOpts.http)
		return &httpController{c: httpapi.NewClient(globalOpts.http)}, nil
	}

	c, err := dbus.NewClient()
	if err != nil {
		return nil, fmt.Errorf("scatterd is not reachable over D-Bus (try --http): %w", err)
	}
	logger.Debug("using D-Bus control interface", "interface", dbus.DBusInterface)
	return &dbusController{c: c}, nil
}

type dbusController struct {
	c *dbus.Client
}

func (d *dbusController) Show(ctx context.Context, sender, text string) (string, error) {
	return d.c.Show(ctx, sender, text)
}

func (d *dbusController) Execute(ctx context.Context, cmd overlay.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	switch cmd.Canonical() {
	case overlay.CommandClear:
		return d.c.Clear(ctx)
	case overlay.CommandSetStyles:
		return d.c.SetStyles(ctx, *cmd.Styles)
	case overlay.CommandResetStyles:
		return d.c.ResetStyles(ctx)
	case overlay.CommandToggleDebug:
		_, err := d.c.ToggleDebug(ctx)
		return err
	}
	return nil
}

func (d *dbusController) Status(ctx context.Context) (overlay.Stats, error) {
	st, err := d.c.Status(ctx)
	if err != nil {
		return overlay.Stats{}, err
	}
	return overlay.Stats{
		Active:    st.Active,
		Queued:    st.Queued,
		History:   st.History,
		DebugMode: st.DebugMode,
		StartedAt: st.StartedAt,
	}, nil
}

func (d *dbusController) Close() error {
	return d.c.Close()
}

type httpController struct {
	c *httpapi.Client
}

func (h *httpController) Show(ctx context.Context, sender, text string) (string, error) {
	resp, err := h.c.Show(ctx, sender, text)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (h *httpController) Execute(ctx context.Context, cmd overlay.Command) error {
	return h.c.Execute(ctx, cmd)
}

func (h *httpController) Status(ctx context.Context) (overlay.Stats, error) {
	return h.c.Status(ctx)
}

func (h *httpController) Close() error {
	return nil
}
