package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the pages directory",
	Long: `Load every page under the pages directory and serve it.

When GATEWAY_GEN is set, serve generates that page and exits instead. When
GATEWAY_BUILD is set, it pre-renders the site into that directory and exits.

In dev mode (--env dev) pages get a live-reload script, and serve exits
with status 8 when a file the route table does not know about changes, so
that "gateway dev" can restart it.

Examples:
  gateway serve                        # Serve on 0.0.0.0:3000
  gateway serve -p 8080 --cache-ttl 60 # Custom port and static max-age
  GATEWAY_ENV=dev gateway serve        # Development mode`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.Int("cache-ttl", 3600, "Static file max-age in seconds (prod only)")
	flags.Bool("json-errors", true, "Answer failed .json requests with a 502 error body")
	flags.Int64("max-body-size", 1<<20, "Maximum request body in bytes (0 for unlimited)")
	flags.StringSlice("allowed-origins", nil, "Extra WebSocket origin patterns")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	bindFlags(flags, map[string]string{
		"cache-ttl":       config.KeyCacheTTL,
		"json-errors":     config.KeyJSONErrors,
		"max-body-size":   config.KeyMaxBodySize,
		"allowed-origins": config.KeyAllowedOrigins,
		"metrics-addr":    config.KeyMetricsAddr,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Gen != "" {
		return generate(cmd, cfg, cfg.Gen, false)
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	if cfg.Build != "" {
		return buildSite(ctx, cmd, cfg, logger, cfg.Build)
	}

	metrics := monitoring.New()
	table, err := loadRoutes(ctx, cfg, logger)
	if err != nil {
		return err
	}

	err = server.New(cfg, table, logger, metrics).Run(ctx)
	if errors.Is(err, server.ErrRestartRequested) {
		logger.Info(ctx, "Restart requested", "exit_code", server.ExitRestart)
	}
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
