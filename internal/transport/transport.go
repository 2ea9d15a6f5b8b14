// Package transport delivers chat events and overlay commands to the engine
// from external sources.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// Envelope types.
const (
	TypeChatMessage    = "kick_chat_message"
	TypeOverlayCommand = "kick_overlay_command"
)

var (
	// ErrNotJSON is returned for payloads that are not a JSON object.
	ErrNotJSON = errors.New("payload is not a JSON object")
	// ErrIgnoredType is returned for envelopes of a type the overlay does not handle.
	ErrIgnoredType = errors.New("envelope type ignored")
)

// Source produces events until its context ends.
type Source interface {
	// Name returns the source identifier (e.g., "websocket", "stdin").
	Name() string
	// Run delivers events to sink until ctx is cancelled or the source is exhausted.
	Run(ctx context.Context, sink overlay.Sink) error
}

// Envelope is the wire wrapper around events and commands.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is a decoded payload: exactly one of Event or Command is set.
type Message struct {
	Event   *model.IncomingEvent
	Command *overlay.Command
}

// Decode parses one payload. It accepts a typed envelope or a bare event
// object.
func Decode(data []byte, source string, now time.Time) (Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Message{}, model.ErrEmptyPayload
	}
	if data[0] != '{' {
		return Message{}, ErrNotJSON
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		ev, err := model.DecodeEvent(env.Data, source, now)
		if err != nil {
			return Message{}, err
		}
		return Message{Event: &ev}, nil

	case TypeOverlayCommand:
		var cmd overlay.Command
		if len(bytes.TrimSpace(env.Data)) == 0 {
			return Message{}, model.ErrEmptyPayload
		}
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return Message{}, fmt.Errorf("failed to decode command: %w", err)
		}
		return Message{Command: &cmd}, nil

	case "":
		ev, err := model.DecodeEvent(data, source, now)
		if err != nil {
			return Message{}, err
		}
		return Message{Event: &ev}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrIgnoredType, env.Type)
	}
}

// Deliver hands a decoded message to the sink.
func Deliver(ctx context.Context, sink overlay.Sink, msg Message) error {
	switch {
	case msg.Event != nil:
		_, _, err := sink.Submit(ctx, *msg.Event)
		return err
	case msg.Command != nil:
		return sink.Execute(ctx, *msg.Command)
	default:
		return nil
	}
}

// handle decodes and delivers one payload, logging per-message problems.
// Only errors that make further delivery impossible are returned.
func handle(ctx context.Context, sink overlay.Sink, data []byte, source string, logger *slog.Logger) error {
	msg, err := Decode(data, source, time.Now())
	switch {
	case errors.Is(err, ErrIgnoredType):
		logger.Debug("ignoring payload", "source", source, "error", err)
		return nil
	case errors.Is(err, model.ErrEmptyPayload):
		return nil
	case err != nil:
		logger.Warn("malformed payload", "source", source, "error", err)
		return nil
	}

	err = Deliver(ctx, sink, msg)
	if err == nil || errors.Is(err, overlay.ErrUnknownCommand) || errors.Is(err, overlay.ErrMissingStyles) {
		return nil
	}
	return err
}

// SourceError represents a transport failure.
type SourceError struct {
	Source  string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
