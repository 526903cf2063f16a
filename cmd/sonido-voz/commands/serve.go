package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/server"
	"github.com/RyanBlaney/sonido-voz/telemetry"
)

// telemetryFlushTimeout bounds the final metric and span flush
const telemetryFlushTimeout = 5 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP",
	Long: `Serve the prediction API over HTTP.

Routes:
  GET  /api/health
  POST /api/predict       multipart field "audio" or raw audio body
  POST /api/features
  POST /api/test-sample   {"sample_name": "...", "features": [20 numbers]}
  GET  /api/test-samples
  GET  /metrics           Prometheus metrics

Artifacts are loaded before the listener opens. Ctrl+C shuts down
gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :3001)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	shutdown, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := flushTelemetry(ctx, shutdown); err != nil {
			logging.Warn("Telemetry shutdown failed", logging.Fields{"error": err.Error()})
		}
	}()

	srvCfg := globalConfig.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}

	p, err := newPredictor()
	if err != nil {
		return err
	}
	// Fail fast on a broken bundle instead of on the first request
	if _, err := p.Bundle(); err != nil {
		return err
	}

	srv, err := server.New(p, &srvCfg, server.WithMetricsHandler(promhttp.Handler()))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// flushTelemetry runs shutdown detached from ctx, which is already
// cancelled by the signal that stopped the server
func flushTelemetry(ctx context.Context, shutdown func(context.Context) error) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
	defer cancel()
	return shutdown(flushCtx)
}
