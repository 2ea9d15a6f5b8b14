package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var sendOpts struct {
	from  string
	quiet bool
}

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Show a message on the overlay",
	Long: `Show a message on the overlay.

The message text is taken from the arguments. Without arguments, each
non-empty line of standard input is sent as its own message.

Emotes use the [emote:name] markup.

Examples:
  scatter send hello chat
  scatter send --from bot "stream starting [emote:Kappa]"
  journalctl -f -o cat | scatter send --from journal`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendOpts.from, "from", "f", "scatter",
		"Sender name shown with the message")
	sendCmd.Flags().BoolVarP(&sendOpts.quiet, "quiet", "q", false,
		"Do not print message identities")
}

func runSend(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return withController(func(ctx context.Context, c controller) error {
			return send(ctx, c, cmd.OutOrStdout(), strings.Join(args, " "))
		})
	}

	// Streaming input is not bounded by --timeout.
	c, err := dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return sendLines(c, cmd.InOrStdin(), cmd.OutOrStdout())
}

func sendLines(c controller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), globalOpts.timeout)
		err := send(ctx, c, out, line)
		cancel()
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func send(ctx context.Context, c controller, out io.Writer, text string) error {
	id, err := c.Show(ctx, sendOpts.from, text)
	if err != nil {
		return err
	}
	logger.Debug("message sent", "id", id)
	if !sendOpts.quiet {
		_, _ = fmt.Fprintln(out, id)
	}
	return nil
}

