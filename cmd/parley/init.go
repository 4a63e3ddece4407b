package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a parley.yaml with default settings",
		Long: `Write a parley.yaml into the given directory (default ".") so
'parley serve' has a project to run. Every field in the file is
optional; anything left out falls back to its default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, name, force)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name recorded in the config")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing parley.yaml")

	return cmd
}

func runInit(dir, name string, force bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Newf(errors.CategoryCLI, "cannot create %s", dir).Wrap(err)
	}

	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf(errors.CategoryCLI, "%s already exists", path).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	cfg.Name = name
	if cfg.Name == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			cfg.Name = filepath.Base(abs)
		}
	}
	cfg.Transfer.Enabled = true

	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success("Wrote %s", path)
	info("Run 'parley serve' to start the demo applications")
	return nil
}
