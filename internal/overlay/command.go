package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/scatter/internal/config"
)

// Command names as they appear on the wire.
const (
	CommandClear       = "clear"
	CommandSetStyles   = "set_styles"
	CommandResetStyles = "reset_styles"
	CommandToggleDebug = "toggle_debug"
)

// ErrUnknownCommand is returned for commands the engine does not recognize.
var ErrUnknownCommand = errors.New("unknown command")

// ErrMissingStyles is returned for a set_styles command without styles.
var ErrMissingStyles = errors.New("set_styles requires styles")

// Command is a control instruction for the overlay.
type Command struct {
	Name   string             `json:"command"`
	Styles *config.StylePatch `json:"styles,omitempty"`
}

// Clear returns a command removing every active message.
func Clear() Command { return Command{Name: CommandClear} }

// SetStyles returns a command merging p into the style snapshot.
func SetStyles(p config.StylePatch) Command { return Command{Name: CommandSetStyles, Styles: &p} }

// ResetStyles returns a command restoring the base style snapshot.
func ResetStyles() Command { return Command{Name: CommandResetStyles} }

// ToggleDebug returns a command flipping footprint outlines on or off.
func ToggleDebug() Command { return Command{Name: CommandToggleDebug} }

// Canonical returns the wire name for the command, accepting camelCase and
// kebab-case spellings ("setStyles", "set-styles").
func (c Command) Canonical() string {
	switch normalizeName(c.Name) {
	case "clear":
		return CommandClear
	case "setstyles":
		return CommandSetStyles
	case "resetstyles":
		return CommandResetStyles
	case "toggledebug":
		return CommandToggleDebug
	default:
		return ""
	}
}

// Validate checks that the command is known and complete.
func (c Command) Validate() error {
	switch c.Canonical() {
	case "":
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	case CommandSetStyles:
		if c.Styles == nil {
			return ErrMissingStyles
		}
	}
	return nil
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}
