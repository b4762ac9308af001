package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vango-dev/state/internal/errors"
	"github.com/vango-dev/state/internal/todo"
	"github.com/vango-dev/state/pkg/live"
)

func watchCmd(opts *options) *cobra.Command {
	var (
		url   string
		count int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the todo list each time a server reports a change",
		Long: `Connect to a running 'statectl serve' and print the todo list
on every change until interrupted.

Examples:
  statectl watch
  statectl watch --url ws://example.com:8080/todos/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				url = "ws://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)) + "/todos/ws"
			}

			out := cmd.OutOrStdout()
			seen := 0
			err := live.Watch(cmd.Context(), url, nil, func(f live.Frame) error {
				if err := printFrame(out, f); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return live.ErrStop
				}
				return nil
			})
			if err != nil && !stderrors.Is(err, context.Canceled) {
				return errors.New("E403").WithDetailf("watching %s", url).Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "WebSocket URL (default: the configured server's /todos/ws)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many updates")

	return cmd
}

// printFrame prints one todo frame.
func printFrame(w io.Writer, f live.Frame) error {
	if f.Error != "" {
		fmt.Fprintf(w, "! %s\n", f.Error)
		return nil
	}
	records, ok, err := live.Decode[[]todo.Record](f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "-- version %d\n", f.Version)
	if !ok {
		info(w, "Loading...")
		return nil
	}
	for i, r := range records {
		mark := " "
		if r.Checked {
			mark = "x"
		}
		fmt.Fprintf(w, "%3d. [%s] %s\n", i+1, mark, r.Text)
	}
	return nil
}
