package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		addr   string
		inputs map[string]string
	)

	cmd := &cobra.Command{
		Use:   "serve [page.yaml]",
		Short: "Serve a live page",
		Long: `Serve a page built from a DSL document.

Browsers connect to the page and stay in sync with it. The REST API
under /api can add, change and remove elements while the page runs.

Examples:
  livetree serve
  livetree serve status.yaml --addr :9000
  livetree serve status.yaml --input build=1234`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			return runServe(source, addr, inputs)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")
	cmd.Flags().StringToStringVarP(&inputs, "input", "i", nil, "DSL input values (name=value)")

	return cmd
}

func runServe(source, addr string, inputs map[string]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Address = addr
	}
	cfg.Offline = false

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	opts, err := pageOptions(cfg, logger)
	if err != nil {
		return err
	}
	p, err := buildPage(source, inputs, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	success("Serving %s on %s", p.Title(), cfg.Server.Address)
	info("Press Ctrl+C to stop")
	if err := p.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
