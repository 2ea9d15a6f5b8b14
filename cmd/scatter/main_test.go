package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/scatter/internal/overlay"
)

type fakeController struct {
	shown    []string
	commands []overlay.Command
	stats    overlay.Stats
	err      error
	closed   bool
}

func (f *fakeController) Show(_ context.Context, sender, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.shown = append(f.shown, sender+": "+text)
	return "id-" + text, nil
}

func (f *fakeController) Execute(_ context.Context, cmd overlay.Command) error {
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, cmd)
	if cmd.Canonical() == overlay.CommandToggleDebug {
		f.stats.DebugMode = !f.stats.DebugMode
	}
	return nil
}

func (f *fakeController) Status(context.Context) (overlay.Stats, error) {
	return f.stats, f.err
}

func (f *fakeController) Close() error {
	f.closed = true
	return nil
}

// runCLI executes the root command against a fake controller.
func runCLI(t *testing.T, fake *fakeController, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := dial
	dial = func() (controller, error) { return fake, nil }
	t.Cleanup(func() { dial = orig })

	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestSend(t *testing.T) {
	fake := &fakeController{}
	out, err := runCLI(t, fake, "", "send", "--from", "bot", "hello", "chat")
	require.NoError(t, err)

	assert.Equal(t, []string{"bot: hello chat"}, fake.shown)
	assert.Equal(t, "id-hello chat\n", out)
	assert.True(t, fake.closed)
}

func TestSend_Lines(t *testing.T) {
	fake := &fakeController{}
	out, err := runCLI(t, fake, "one\n\n  two  \n", "send", "-q")
	require.NoError(t, err)

	assert.Equal(t, []string{"scatter: one", "scatter: two"}, fake.shown)
	assert.Empty(t, out)
}

func TestSend_Error(t *testing.T) {
	fake := &fakeController{err: errors.New("not running")}
	_, err := runCLI(t, fake, "", "send", "hi")
	assert.ErrorContains(t, err, "not running")
}

func TestCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
		out  string
	}{
		{[]string{"clear"}, overlay.CommandClear, ""},
		{[]string{"reset"}, overlay.CommandResetStyles, ""},
		{[]string{"debug"}, overlay.CommandToggleDebug, "debug on\n"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			fake := &fakeController{}
			out, err := runCLI(t, fake, "", tt.args...)
			require.NoError(t, err)
			require.Len(t, fake.commands, 1)
			assert.Equal(t, tt.want, fake.commands[0].Name)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestStyles(t *testing.T) {
	fake := &fakeController{}
	_, err := runCLI(t, fake, "", "styles",
		"--font-size", "20",
		"--text-color", "#ffffff",
		"--debug",
		"--json", `{"fontSize":12,"margin":30}`,
	)
	require.NoError(t, err)

	require.Len(t, fake.commands, 1)
	cmd := fake.commands[0]
	assert.Equal(t, overlay.CommandSetStyles, cmd.Name)
	require.NotNil(t, cmd.Styles)
	p := *cmd.Styles
	require.NotNil(t, p.FontSize)
	assert.Equal(t, 20.0, *p.FontSize, "flags win over --json")
	require.NotNil(t, p.Margin)
	assert.Equal(t, 30.0, *p.Margin)
	require.NotNil(t, p.TextColor)
	assert.Equal(t, "#ffffff", *p.TextColor)
	require.NotNil(t, p.DebugMode)
	assert.True(t, *p.DebugMode)
	assert.Nil(t, p.Width)
}

func TestStyles_Errors(t *testing.T) {
	_, err := runCLI(t, &fakeController{}, "", "styles")
	assert.ErrorIs(t, err, errEmptyPatch)

	_, err = runCLI(t, &fakeController{}, "", "styles", "--json", "{nope")
	assert.ErrorContains(t, err, "invalid --json")
}

func TestWriteStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	st := overlay.Stats{
		Active:    3,
		Queued:    0,
		History:   1200,
		DebugMode: true,
		StartedAt: now.Add(-2 * time.Hour),
		Shown:     4500,
	}

	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, st, "text", now))
	text := buf.String()
	assert.Contains(t, text, "active:  3")
	assert.Contains(t, text, "history: 1,200")
	assert.Contains(t, text, "debug:   on")
	assert.Contains(t, text, "started: 2 hours ago")
	assert.Contains(t, text, "shown:   4,500")

	buf.Reset()
	require.NoError(t, writeStatus(&buf, st, "yaml", now))
	assert.Contains(t, buf.String(), "debug_mode: true")
	assert.Contains(t, buf.String(), "history: 1200")

	buf.Reset()
	require.NoError(t, writeStatus(&buf, st, "json", now))
	assert.Contains(t, buf.String(), `"debugMode": true`)

	assert.Error(t, writeStatus(&buf, st, "xml", now))
}

func TestStatusCommand(t *testing.T) {
	fake := &fakeController{stats: overlay.Stats{Active: 1, StartedAt: time.Now()}}
	out, err := runCLI(t, fake, "", "status", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "active: 1")
}

func init() {
	logger = slog.New(slog.DiscardHandler)
}
