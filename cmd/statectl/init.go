package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vango-dev/state/internal/config"
	"github.com/vango-dev/state/internal/errors"
)

func initCmd(opts *options) *cobra.Command {
	var (
		force  bool
		driver string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default state.json",
		Long: `Write a state.json with default settings.

Examples:
  statectl init
  statectl init ./deploy --driver=sqlite`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := opts.configPath
			if path == "" {
				path = filepath.Join(dir, config.ConfigFileName)
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.New("E401").
					WithDetail(path + " already exists").
					WithSuggestion("Pass --force to overwrite it")
			}

			cfg := config.New()
			if driver != "" {
				cfg.Storage.Driver = driver
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.New("E401").Wrap(err)
			}
			if err := cfg.SaveTo(path); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing state.json")
	cmd.Flags().StringVar(&driver, "driver", "", "Storage driver: memory, file, sqlite or s3")

	return cmd
}
