package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/state/internal/errors"
	"github.com/vango-dev/state/internal/todo"
	"github.com/vango-dev/state/pkg/persist"
)

func todoCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Edit the persisted todo list",
		Long: `Read and edit the todo list in the configured storage.

Items are numbered from 1, as printed by 'statectl todo list'.`,
	}

	cmd.AddCommand(
		todoListCmd(opts),
		todoAddCmd(opts),
		todoCheckCmd(opts),
		todoEditCmd(opts),
		todoRemoveCmd(opts),
		todoResetCmd(opts),
	)
	return cmd
}

// withList opens the configured backend and the todo list in it, then runs fn.
func withList(ctx context.Context, opts *options, fn func(list *todo.List, backend persist.Backend) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	store, err := todo.Open(ctx, backend)
	if err != nil {
		return errors.New("E202").Wrap(err)
	}
	return fn(todo.NewList(store), backend)
}

// todoError maps list errors to CLI errors.
func todoError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, todo.ErrNotFound):
		return errors.New("E301").Wrap(err)
	case stderrors.Is(err, todo.ErrEmptyText):
		return errors.New("E302").Wrap(err)
	case stderrors.Is(err, todo.ErrNotEditing):
		return errors.New("E303").Wrap(err)
	}
	return errors.New("E203").Wrap(err)
}

// parseIndex converts a 1-based item number to a list index.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, errors.New("E401").
			WithDetailf("%q is not an item number", arg).
			WithExample("statectl todo check 2")
	}
	return n - 1, nil
}

func todoListCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print the todo list",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withList(cmd.Context(), opts, func(list *todo.List, _ persist.Backend) error {
				out := cmd.OutOrStdout()
				records := list.Records()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(records)
				}
				if len(records) == 0 {
					info(out, "Nothing to do")
					return nil
				}
				for i, r := range records {
					mark := " "
					if r.Checked {
						mark = "x"
					}
					fmt.Fprintf(out, "%3d. [%s] %s\n", i+1, mark, r.Text)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

func todoAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>...",
		Short: "Append an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withList(cmd.Context(), opts, func(list *todo.List, _ persist.Backend) error {
				if err := list.Add(cmd.Context(), text); err != nil {
					return todoError(err)
				}
				success(cmd.OutOrStdout(), "Added %d. %s", list.Len(), strings.TrimSpace(text))
				return nil
			})
		},
	}
}

func todoCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "check <n>",
		Aliases: []string{"toggle"},
		Short:   "Toggle whether an item is done",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withList(cmd.Context(), opts, func(list *todo.List, _ persist.Backend) error {
				if err := list.Toggle(cmd.Context(), i); err != nil {
					return todoError(err)
				}
				r := list.Records()[i]
				status := "open"
				if r.Checked {
					status = "done"
				}
				success(cmd.OutOrStdout(), "%d. %s is %s", i+1, r.Text, status)
				return nil
			})
		},
	}
}

func todoEditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <n> <text>...",
		Short: "Replace the text of an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return withList(cmd.Context(), opts, func(list *todo.List, _ persist.Backend) error {
				if err := list.Edit(cmd.Context(), i, text); err != nil {
					return todoError(err)
				}
				success(cmd.OutOrStdout(), "%d. %s", i+1, list.Records()[i].Text)
				return nil
			})
		},
	}
}

func todoRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <n>",
		Aliases: []string{"remove"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withList(cmd.Context(), opts, func(list *todo.List, _ persist.Backend) error {
				records := list.Records()
				if err := list.Remove(cmd.Context(), i); err != nil {
					return todoError(err)
				}
				success(cmd.OutOrStdout(), "Removed %s", records[i].Text)
				return nil
			})
		},
	}
}

func todoResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the saved list and start from the seed list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withList(cmd.Context(), opts, func(list *todo.List, backend persist.Backend) error {
				if err := backend.Delete(cmd.Context(), todo.StoreKey); err != nil {
					return errors.New("E203").Wrap(err)
				}
				if err := list.Reset(cmd.Context()); err != nil {
					return errors.New("E202").Wrap(err)
				}
				success(cmd.OutOrStdout(), "Reset the list to %d items", list.Len())
				return nil
			})
		},
	}
}
