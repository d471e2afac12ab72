package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/livetree-dev/livetree/internal/config"
	lterrors "github.com/livetree-dev/livetree/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		title  string
		asYAML bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write livetree.json (or livetree.yaml with --yaml) with the default
settings into dir, the working directory by default.

Examples:
  livetree init
  livetree init status --title "Build status" --yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := runInit(dir, title, asYAML, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Write YAML instead of JSON")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration")

	return cmd
}

func runInit(dir, title string, asYAML, force bool) (string, error) {
	if config.Exists(dir) && !force {
		return "", lterrors.New("E205").
			WithDetail("A configuration already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := config.ConfigFileName
	if asYAML {
		name = config.YAMLConfigFileName
	}
	cfg := config.New()
	cfg.Title = title
	path := filepath.Join(dir, name)
	if err := cfg.SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
