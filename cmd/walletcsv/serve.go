package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"walletcsv/internal/interfaces/httpapi"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve exports, scans and the assistant over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{service: "api", console: true})
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := a.newHTTPServer(ctx)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}
	if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("http api stopped")
	return nil
}

// newHTTPServer wires the API over the app. Chat requests are denied any
// confirmation-gated tool unless they opt into auto approval.
func (a *app) newHTTPServer(ctx context.Context) (*httpapi.Server, error) {
	deps := httpapi.Deps{
		Chains:   a.chains,
		Exporter: a.exporter,
		Scanner:  a.scanner,
		Settings: a.store,
		Metrics:  a.metrics,
	}
	if a.archive != nil {
		deps.Archive = a.archive
	}
	agent, err := a.newAgent(ctx, nil)
	if err != nil {
		slog.Warn("assistant disabled", "err", err)
	} else if agent != nil {
		deps.Assistant = agent
	}

	return httpapi.NewServer(httpapi.Config{
		CORSOrigins: a.cfg.CORSOrigins,
		RateLimit:   a.cfg.HTTPRateLimit,
	}, deps, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
}
