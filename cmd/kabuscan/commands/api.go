package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaizumaki/kabuscan/internal/api"
	"github.com/kaizumaki/kabuscan/internal/api/handlers"
	"github.com/kaizumaki/kabuscan/internal/provider/stream"
	"github.com/kaizumaki/kabuscan/internal/scan"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health
  GET  /api/scan/batches
  GET  /api/scan/batches/{n}
  POST /api/scan/batches/{n}/run
  GET  /api/scan/batches/{n}/progress
  GET  /api/candidates
  GET  /api/alerts
  POST /api/alerts
  ...

When the tick feed is enabled, instruments with alerts are streamed and
direct price/volume alerts react between scans.

Example:
  go run ./cmd/kabuscan api
  go run ./cmd/kabuscan api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	universe, err := d.provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	scanCfg := scan.Config{
		BatchSize:      d.cfg.Screen.BatchSize,
		MaxConcurrency: d.cfg.Screen.MaxConcurrency,
		FetchTimeout:   d.cfg.Provider.FetchTimeout,
	}
	orch := scan.NewOrchestrator(universe, d.provider, d.evalA, d.evalB, scanCfg, d.logger)

	scanHandler := handlers.NewScanHandler(orch, d.scanRepo, d.logger)
	alertHandler := handlers.NewAlertHandler(d.engine, d.logger)

	router := api.NewRouter(scanHandler, alertHandler, d.logger)
	server := api.New(d.cfg, d.logger, router)

	if d.cfg.Stream.Enabled {
		feed := stream.NewClient(d.cfg.Stream, d.logger, func(ctx context.Context, tick stream.Tick) {
			d.engine.EvaluateTick(ctx, tick.Code, tick.Price, tick.Volume)
		})
		if err := feed.Start(ctx); err != nil {
			d.logger.WithError(err).Warn("Tick feed unavailable, continuing without it")
		} else {
			defer feed.Stop()
			for _, a := range d.engine.List(ctx) {
				feed.Subscribe(a.InstrumentCode)
			}
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			d.logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", d.cfg.Port)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
