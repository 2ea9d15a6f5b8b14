package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/scatter/internal/overlay"
)

var statusOpts struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show overlay status",
	Long: `Show how many messages are on screen, queued and remembered for
deduplication, whether debug outlines are on, and when scatterd started.

Formats: text (default), json, yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, c controller) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), st, statusOpts.format, time.Now())
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "o", "text",
		"Output format (text, json, yaml)")
}

func writeStatus(w io.Writer, st overlay.Stats, format string, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		data, err := yaml.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "text", "":
		debug := "off"
		if st.DebugMode {
			debug = "on"
		}
		_, err := fmt.Fprintf(w, "active:  %d\nqueued:  %d\nhistory: %s\ndebug:   %s\nstarted: %s\n",
			st.Active,
			st.Queued,
			humanize.Comma(int64(st.History)),
			debug,
			humanize.RelTime(st.StartedAt, now, "ago", "from now"),
		)
		if err != nil {
			return err
		}
		if st.Shown > 0 {
			_, err = fmt.Fprintf(w, "shown:   %s\n", humanize.Comma(int64(st.Shown)))
		}
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
