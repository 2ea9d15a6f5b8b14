package dbus

import (
	"fmt"

	"github.com/jmylchreest/scatter/internal/overlay"
)

// EmitMessageShown emits the MessageShown signal.
// It is emitted once a message has been placed on the overlay.
func (s *Server) EmitMessageShown(msg *overlay.ActiveMessage) error {
	s.mu.Lock()
	conn, running := s.conn, s.running
	s.mu.Unlock()

	if conn == nil || !running {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := conn.Emit(DBusPath, DBusInterface+".MessageShown", msg.ID, msg.Sender); err != nil {
		return fmt.Errorf("failed to emit MessageShown signal: %w", err)
	}

	s.logger.Debug("emitted MessageShown signal", "id", msg.ID)
	return nil
}
