package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmylchreest/scatter/internal/overlay"
)

// DefaultReconnectDelay is the fixed pause between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// WebSocketSource reads envelopes from a websocket server, reconnecting
// after a fixed delay whenever the connection fails.
type WebSocketSource struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	header         http.Header
	logger         *slog.Logger
}

// NewWebSocketSource creates a websocket source for url.
func NewWebSocketSource(url string, reconnectDelay time.Duration, logger *slog.Logger) *WebSocketSource {
	if logger == nil {
		logger = slog.Default()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &WebSocketSource{
		url:            url,
		reconnectDelay: reconnectDelay,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Name returns the source identifier.
func (s *WebSocketSource) Name() string {
	return "websocket"
}

// Run connects and delivers payloads until ctx is cancelled.
func (s *WebSocketSource) Run(ctx context.Context, sink overlay.Sink) error {
	for {
		err := s.session(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("websocket disconnected, reconnecting",
			"url", s.url,
			"error", err,
			"delay", s.reconnectDelay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

// session runs one connection until it fails.
func (s *WebSocketSource) session(ctx context.Context, sink overlay.Sink) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return &SourceError{Source: s.Name(), Message: "failed to connect", Err: err}
	}
	defer func() { _ = conn.Close() }()
	s.logger.Info("websocket connected", "url", s.url)

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return &SourceError{Source: s.Name(), Message: "read failed", Err: err}
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := handle(ctx, sink, payload, s.Name(), s.logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return &SourceError{Source: s.Name(), Message: "delivery failed", Err: err}
		}
	}
}
