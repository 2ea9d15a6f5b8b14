package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/overlay"
)

type fakeController struct {
	mu       sync.Mutex
	events   []model.IncomingEvent
	commands []overlay.Command
	seen     map[string]bool
	stats    overlay.Stats
	err      error
}

func (f *fakeController) Submit(_ context.Context, ev model.IncomingEvent) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[ev.ID] {
		return ev.ID, false, nil
	}
	f.seen[ev.ID] = true
	f.events = append(f.events, ev)
	return ev.ID, true, nil
}

func (f *fakeController) Execute(_ context.Context, cmd overlay.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeController) Stats(context.Context) (overlay.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHandler_Routes(t *testing.T) {
	ctrl := &fakeController{stats: overlay.Stats{Active: 2, History: 7, DebugMode: true}}
	router := NewRouter(ctrl, discardLogger())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
		{"message", http.MethodPost, "/api/messages", `{"id":"m1","user":"alice","text":"hi"}`, http.StatusAccepted, `"accepted":true`},
		{"duplicate message", http.MethodPost, "/api/messages", `{"id":"m1","user":"alice","text":"hi"}`, http.StatusAccepted, `"accepted":false`},
		{"empty message", http.MethodPost, "/api/messages", ``, http.StatusBadRequest, "invalid event JSON"},
		{"malformed message", http.MethodPost, "/api/messages", `{nope`, http.StatusBadRequest, "invalid event JSON"},
		{"clear", http.MethodPost, "/api/commands", `{"command":"clear"}`, http.StatusNoContent, ""},
		{"set styles", http.MethodPost, "/api/commands", `{"command":"set_styles","styles":{"fontSize":20}}`, http.StatusNoContent, ""},
		{"set styles without styles", http.MethodPost, "/api/commands", `{"command":"set_styles"}`, http.StatusBadRequest, "styles"},
		{"unknown command", http.MethodPost, "/api/commands", `{"command":"explode"}`, http.StatusBadRequest, "unknown"},
		{"malformed command", http.MethodPost, "/api/commands", `[]`, http.StatusBadRequest, "invalid command JSON"},
		{"status", http.MethodGet, "/api/status", "", http.StatusOK, `"active":2`},
		{"wrong method", http.MethodGet, "/api/messages", "", http.StatusMethodNotAllowed, ""},
		{"not found", http.MethodGet, "/nope", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}

	require.Len(t, ctrl.events, 1)
	assert.Equal(t, "alice", ctrl.events[0].Sender)
	assert.Equal(t, Source, ctrl.events[0].Source)

	require.Len(t, ctrl.commands, 2)
	assert.Equal(t, overlay.CommandClear, ctrl.commands[0].Name)
	require.NotNil(t, ctrl.commands[1].Styles)
	assert.Equal(t, 20.0, *ctrl.commands[1].Styles.FontSize)
}

func TestHandler_ControllerUnavailable(t *testing.T) {
	ctrl := &fakeController{err: errors.New("loop stopped")}
	router := NewRouter(ctrl, discardLogger())

	for _, path := range []string{"/api/messages", "/api/commands"} {
		body := `{"user":"a","text":"b"}`
		if path == "/api/commands" {
			body = `{"command":"clear"}`
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_BodyTooLarge(t *testing.T) {
	router := NewRouter(&fakeController{}, discardLogger())

	big := `{"user":"a","text":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestClient(t *testing.T) {
	ctrl := &fakeController{stats: overlay.Stats{Active: 1, Shown: 5}}
	srv := httptest.NewServer(NewRouter(ctrl, discardLogger()))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	resp, err := c.Show(ctx, "bob", "hello")
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.NotEmpty(t, resp.ID)

	require.NoError(t, c.Execute(ctx, overlay.ToggleDebug()))

	err = c.Execute(ctx, overlay.Command{Name: "explode"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, uint64(5), st.Shown)
}

func TestNewClient_AddsScheme(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8765", NewClient("127.0.0.1:8765").base)
	assert.Equal(t, "https://example.com", NewClient("https://example.com/").base)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), NewRouter(&fakeController{}, discardLogger()), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
