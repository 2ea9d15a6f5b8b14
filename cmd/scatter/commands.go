package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/scatter/internal/overlay"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every message from the overlay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, c controller) error {
			return c.Execute(ctx, overlay.Clear())
		})
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Toggle placement outlines",
	Long: `Toggle placement outlines.

While debug mode is on, every message is drawn with an outline of the
footprint the placer reserved for it, including the margin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, c controller) error {
			if err := c.Execute(ctx, overlay.ToggleDebug()); err != nil {
				return err
			}
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			state := "off"
			if st.DebugMode {
				state = "on"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "debug %s\n", state)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the configured styles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, c controller) error {
			return c.Execute(ctx, overlay.ResetStyles())
		})
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(resetCmd)
}
