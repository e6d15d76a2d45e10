// ABOUTME: Cobra commands for coven-mail: send, read and stats
// ABOUTME: Connection flags fall back to COVEN_MAIL_* environment variables

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-mailbox/internal/client"
)

const defaultSocket = "/run/coven/mailbox.sock"

// connOptions are the persistent connection flags.
type connOptions struct {
	server string
	socket string
	token  string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &connOptions{}

	root := &cobra.Command{
		Use:           "coven-mail",
		Short:         "Send and read messages on a coven-mailbox server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", os.Getenv("COVEN_MAIL_SERVER"), "server URL, e.g. http://host:8470 (overrides --socket)")
	root.PersistentFlags().StringVar(&opts.socket, "socket", getEnv("COVEN_MAIL_SOCKET", defaultSocket), "unix socket of a local server")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("COVEN_MAIL_TOKEN"), "bearer token for --server")

	root.AddCommand(newSendCmd(opts), newReadCmd(opts), newStatsCmd(opts))
	return root
}

// newClient builds a client from the connection flags.
func (o *connOptions) newClient() (*client.Client, error) {
	if o.server != "" {
		return client.New(client.Options{Server: o.server, Token: o.token})
	}
	return client.New(client.Options{Socket: o.socket, Token: o.token})
}

func newSendCmd(opts *connOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send @user message",
		Short: "Send a message to a user",
		Long:  `Send a one-word message to a user. With "-" as the message it is read from stdin.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := args[1]
			if payload == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				payload = strings.TrimRight(string(data), "\n")
			}

			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Send(cmd.Context(), args[0], payload); err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			green.Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", strings.TrimPrefix(args[0], "@"))
			return nil
		},
	}
}

func newReadCmd(opts *connOptions) *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read your mail",
		Long:  `Print every message addressed to you. Unread messages are marked with "*" and become read.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			block, err := c.Read(cmd.Context(), size)
			if errors.Is(err, client.ErrNoMail) {
				fmt.Fprintln(cmd.ErrOrStderr(), "No mail.")
				return nil
			}
			if err != nil {
				return err
			}

			_, err = io.WriteString(cmd.OutOrStdout(), block)
			return err
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "largest block to accept in bytes (0 = server default)")
	return cmd
}

func newStatsCmd(opts *connOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mailbox counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "unread:     %d / %d\n", stats.Unread, stats.Capacity)
			fmt.Fprintf(out, "read:       %d\n", stats.Read)
			fmt.Fprintf(out, "visibility: %s\n", stats.Visibility)
			return nil
		},
	}
}
