package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/overlay"
)

var errEmptyPatch = errors.New("no styles given")

var stylesOpts struct {
	raw string

	textColor     string
	usernameColor string
	bgColor       string
	textShadow    string
	fontSize      float64
	bgOpacity     float64
	padding       float64
	width         float64
	height        float64
	duration      float64
	animation     float64
	maxMessages   float64
	margin        float64
	debug         bool
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "Change overlay styles",
	Long: `Change overlay styles on the running overlay.

Only the flags you pass are changed. Values are clamped to their allowed
ranges by scatterd. Messages already on screen keep their position and
timing; the new styles apply to messages shown afterwards.

Examples:
  scatter styles --font-size 20 --text-color '#ffffff'
  scatter styles --max-messages 3 --duration 8
  scatter styles --json '{"bgOpacity":0.8,"margin":20}'`,
	Args: cobra.NoArgs,
	RunE: runStyles,
}

func init() {
	rootCmd.AddCommand(stylesCmd)

	f := stylesCmd.Flags()
	f.StringVar(&stylesOpts.raw, "json", "", "Partial styles as a JSON object (wire key names)")
	f.StringVar(&stylesOpts.textColor, "text-color", "", "Message text color (#rrggbb)")
	f.StringVar(&stylesOpts.usernameColor, "username-color", "", "Sender name color (#rrggbb)")
	f.StringVar(&stylesOpts.bgColor, "bg-color", "", "Message background color (#rrggbb)")
	f.StringVar(&stylesOpts.textShadow, "text-shadow", "", "Text shadow (on|off)")
	f.Float64Var(&stylesOpts.fontSize, "font-size", 0, "Font size (10-32)")
	f.Float64Var(&stylesOpts.bgOpacity, "bg-opacity", 0, "Background opacity (0-1)")
	f.Float64Var(&stylesOpts.padding, "padding", 0, "Padding in pixels (0-20)")
	f.Float64Var(&stylesOpts.width, "width", 0, "Viewport width in pixels")
	f.Float64Var(&stylesOpts.height, "height", 0, "Viewport height in pixels")
	f.Float64Var(&stylesOpts.duration, "duration", 0, "Seconds a message stays fully visible (1-60)")
	f.Float64Var(&stylesOpts.animation, "animation", 0, "Fade duration in milliseconds (100-2000)")
	f.Float64Var(&stylesOpts.maxMessages, "max-messages", 0, "Maximum messages on screen (1-50)")
	f.Float64Var(&stylesOpts.margin, "margin", 0, "Minimum gap between messages in pixels (0-100)")
	f.BoolVar(&stylesOpts.debug, "debug", false, "Show placement outlines")
}

func runStyles(cmd *cobra.Command, args []string) error {
	patch, err := buildPatch(cmd.Flags())
	if err != nil {
		return err
	}
	return withController(func(ctx context.Context, c controller) error {
		return c.Execute(ctx, overlay.SetStyles(patch))
	})
}

// buildPatch collects the changed flags into a style patch. Flags win over
// keys given in --json.
func buildPatch(flags *pflag.FlagSet) (config.StylePatch, error) {
	var p config.StylePatch
	if stylesOpts.raw != "" {
		if err := json.Unmarshal([]byte(stylesOpts.raw), &p); err != nil {
			return p, fmt.Errorf("invalid --json styles: %w", err)
		}
	}

	str := func(name string, dst **string, v string) {
		if flags.Changed(name) {
			*dst = &v
		}
	}
	num := func(name string, dst **float64, v float64) {
		if flags.Changed(name) {
			*dst = &v
		}
	}

	str("text-color", &p.TextColor, stylesOpts.textColor)
	str("username-color", &p.UsernameColor, stylesOpts.usernameColor)
	str("bg-color", &p.BgColor, stylesOpts.bgColor)
	str("text-shadow", &p.TextShadow, stylesOpts.textShadow)
	num("font-size", &p.FontSize, stylesOpts.fontSize)
	num("bg-opacity", &p.BgOpacity, stylesOpts.bgOpacity)
	num("padding", &p.Padding, stylesOpts.padding)
	num("width", &p.Width, stylesOpts.width)
	num("height", &p.Height, stylesOpts.height)
	num("duration", &p.MessageDuration, stylesOpts.duration)
	num("animation", &p.AnimationDuration, stylesOpts.animation)
	num("max-messages", &p.MaxMessages, stylesOpts.maxMessages)
	num("margin", &p.Margin, stylesOpts.margin)
	if flags.Changed("debug") {
		debug := stylesOpts.debug
		p.DebugMode = &debug
	}

	if p.IsEmpty() {
		return p, errEmptyPatch
	}
	return p, nil
}
