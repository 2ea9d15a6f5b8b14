package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/overlay"
)

const (
	// DBusInterface is the scatter control interface name.
	DBusInterface = "io.github.jmylchreest.Scatter1"
	// DBusPath is the scatter object path.
	DBusPath = "/io/github/jmylchreest/Scatter"
	// DBusBusName is the bus name to claim.
	DBusBusName = "io.github.jmylchreest.Scatter1"
)

// Source is the event source name recorded for messages sent over D-Bus.
const Source = "dbus"

// callTimeout bounds how long a method call waits on the engine.
const callTimeout = 5 * time.Second

// Controller is the engine surface the service drives.
type Controller interface {
	overlay.Sink
	Stats(ctx context.Context) (overlay.Stats, error)
}

// Server implements the io.github.jmylchreest.Scatter1 D-Bus interface.
type Server struct {
	conn   *dbus.Conn
	ctrl   Controller
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates a new Server backed by ctrl.
func NewServer(ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:   ctrl,
		logger: logger,
	}
}

// Start connects to the session bus and exports the control service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: scatterMethods(),
				Signals: scatterSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", DBusBusName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus control service started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		_ = s.conn.Export(nil, DBusPath, DBusInterface)
		_ = s.conn.Export(nil, DBusPath, "org.freedesktop.DBus.Introspectable")
		// The session bus connection is shared; leave it open.
	}

	s.logger.Info("D-Bus control service stopped")
	return nil
}

// Show displays a message from sender and returns its identity.
// D-Bus method: Show(ss) -> s
func (s *Server) Show(sender, text string) (string, *dbus.Error) {
	s.logger.Debug("Show called", "sender", sender)

	ev := model.Normalize(model.RawEvent{User: &sender, Text: &text}, Source, time.Now())
	id, err := model.NewIdentity()
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	ev.ID = id

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	id, _, err = s.ctrl.Submit(ctx, ev)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return id, nil
}

// Clear removes every message from the overlay.
// D-Bus method: Clear() -> nothing
func (s *Server) Clear() *dbus.Error {
	s.logger.Debug("Clear called")
	return s.execute(overlay.Clear())
}

// ToggleDebug flips placement outlines and returns the new state.
// D-Bus method: ToggleDebug() -> b
func (s *Server) ToggleDebug() (bool, *dbus.Error) {
	s.logger.Debug("ToggleDebug called")
	if derr := s.execute(overlay.ToggleDebug()); derr != nil {
		return false, derr
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	st, err := s.ctrl.Stats(ctx)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return st.DebugMode, nil
}

// ResetStyles restores the configured styles.
// D-Bus method: ResetStyles() -> nothing
func (s *Server) ResetStyles() *dbus.Error {
	s.logger.Debug("ResetStyles called")
	return s.execute(overlay.ResetStyles())
}

// SetStyles merges a partial style update keyed by style name.
// D-Bus method: SetStyles(a{sv}) -> nothing
func (s *Server) SetStyles(styles map[string]dbus.Variant) *dbus.Error {
	s.logger.Debug("SetStyles called", "keys", len(styles))

	patch, err := StylePatchFromVariants(styles)
	if err != nil {
		return invalidArgs(err)
	}
	return s.execute(overlay.SetStyles(patch))
}

// Status reports engine occupancy and the service start time.
// D-Bus method: Status() -> (uuubx)
func (s *Server) Status() (uint32, uint32, uint32, bool, int64, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	st, err := s.ctrl.Stats(ctx)
	if err != nil {
		return 0, 0, 0, false, 0, dbus.MakeFailedError(err)
	}
	return uint32(st.Active), uint32(st.Queued), uint32(st.History), st.DebugMode, st.StartedAt.Unix(), nil
}

func (s *Server) execute(cmd overlay.Command) *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := s.ctrl.Execute(ctx, cmd); err != nil {
		if errors.Is(err, overlay.ErrUnknownCommand) || errors.Is(err, overlay.ErrMissingStyles) {
			return invalidArgs(err)
		}
		return dbus.MakeFailedError(err)
	}
	return nil
}

func invalidArgs(err error) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []any{err.Error()})
}

// scatterMethods returns the D-Bus method introspection data.
func scatterMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Show",
			Args: []introspect.Arg{
				{Name: "sender", Type: "s", Direction: "in"},
				{Name: "text", Type: "s", Direction: "in"},
				{Name: "id", Type: "s", Direction: "out"},
			},
		},
		{Name: "Clear"},
		{
			Name: "ToggleDebug",
			Args: []introspect.Arg{
				{Name: "debug", Type: "b", Direction: "out"},
			},
		},
		{Name: "ResetStyles"},
		{
			Name: "SetStyles",
			Args: []introspect.Arg{
				{Name: "styles", Type: "a{sv}", Direction: "in"},
			},
		},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "active", Type: "u", Direction: "out"},
				{Name: "queued", Type: "u", Direction: "out"},
				{Name: "history", Type: "u", Direction: "out"},
				{Name: "debug", Type: "b", Direction: "out"},
				{Name: "started", Type: "x", Direction: "out"},
			},
		},
	}
}

// scatterSignals returns the D-Bus signal introspection data.
func scatterSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "MessageShown",
			Args: []introspect.Arg{
				{Name: "id", Type: "s"},
				{Name: "sender", Type: "s"},
			},
		},
	}
}
