package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/livetree-dev/livetree/internal/config"
	lterrors "github.com/livetree-dev/livetree/internal/errors"
	"github.com/livetree-dev/livetree/pkg/page"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "livetree",
		Short: "Live documents driven from Go",
		Long: `livetree keeps a tree of UI elements in a Go process and mirrors it
into every connected browser.

Pages are described in a YAML element DSL. They can be served live,
edited over the REST API while running, or exported to a static
document on disk or in S3.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: livetree.json or livetree.yaml)")

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(),
		exportCmd(),
		checkCmd(),
		versionCmd(),
	)
	rootCmd.AddCommand(remoteCmds()...)

	if err := rootCmd.Execute(); err != nil {
		var coded *lterrors.Error
		if errors.As(err, &coded) {
			fmt.Fprintln(os.Stderr, coded.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig loads --config, or the configuration found from the working
// directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadFromWorkingDir()
}

// newLogger builds the process logger from cfg and installs it as the
// default.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

// pageOptions translates cfg into page options.
func pageOptions(cfg *config.Config, logger *slog.Logger) ([]page.Option, error) {
	srv, err := cfg.ServerConfig()
	if err != nil {
		return nil, err
	}
	opts := []page.Option{
		page.WithLogger(logger),
		page.WithServerConfig(srv),
		page.WithOffline(cfg.Offline),
	}
	if cfg.Title != "" {
		opts = append(opts, page.WithTitle(cfg.Title))
	}
	if cfg.Width > 0 {
		opts = append(opts, page.WithWidth(cfg.Width))
	}
	if len(cfg.Style) > 0 {
		opts = append(opts, page.WithStyle(cfg.Style))
	}
	return opts, nil
}

// buildPage creates a page and fills it from the DSL document at source.
// An empty source leaves the page empty.
func buildPage(source string, inputs map[string]string, opts ...page.Option) (*page.Page, error) {
	p := page.New(opts...)
	if source == "" {
		return p, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		p.Close()
		return nil, err
	}
	in := make(map[string]any, len(inputs))
	for k, v := range inputs {
		in[k] = v
	}
	if _, err := p.New(string(data), in); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return p, nil
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
