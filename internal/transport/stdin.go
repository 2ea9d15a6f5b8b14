package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// StdinSender is the sender assigned to plain text lines.
const StdinSender = "stdin"

// LineSource reads one payload per line: a JSON envelope, a bare event
// object, or plain text shown as a message from StdinSender.
type LineSource struct {
	reader io.Reader
	name   string
	logger *slog.Logger
}

// NewStdinSource creates a LineSource reading from os.Stdin.
func NewStdinSource(logger *slog.Logger) *LineSource {
	return NewLineSource(os.Stdin, "stdin", logger)
}

// NewLineSource creates a LineSource with a custom reader.
func NewLineSource(r io.Reader, name string, logger *slog.Logger) *LineSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineSource{reader: r, name: name, logger: logger}
}

// Name returns the source identifier.
func (s *LineSource) Name() string {
	return s.name
}

// Run delivers lines until the reader is exhausted or ctx is cancelled.
func (s *LineSource) Run(ctx context.Context, sink overlay.Sink) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	// The scanner cannot be interrupted, so it runs apart from the
	// delivery loop and is abandoned on cancellation.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.reader)
		const maxSize = 1024 * 1024 // 1MB max line
		scanner.Buffer(make([]byte, 64*1024), maxSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errCh; err != nil {
					return &SourceError{Source: s.name, Message: "failed to read input", Err: err}
				}
				s.logger.Debug("input exhausted", "source", s.name)
				return nil
			}
			if err := s.deliver(ctx, sink, line); err != nil {
				return &SourceError{Source: s.name, Message: "delivery failed", Err: err}
			}
		}
	}
}

func (s *LineSource) deliver(ctx context.Context, sink overlay.Sink, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "{") {
		return handle(ctx, sink, []byte(line), s.name, s.logger)
	}

	ev, err := PlainEvent(line, s.name)
	if err != nil {
		return err
	}
	_, _, err = sink.Submit(ctx, ev)
	return err
}

// PlainEvent wraps a line of text as an event with a fresh identity.
func PlainEvent(text, source string) (model.IncomingEvent, error) {
	id, err := model.NewIdentity()
	if err != nil {
		return model.IncomingEvent{}, err
	}
	text = strings.TrimSpace(text)
	return model.Normalize(model.RawEvent{
		ID:   []byte(`"` + id + `"`),
		User: ptr(StdinSender),
		Text: &text,
	}, source, time.Now()), nil
}

func ptr[T any](v T) *T { return &v }
