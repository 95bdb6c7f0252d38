package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/build"
	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/server"
)

var (
	buildConcurrency int
	buildNoPublic    bool
)

var buildCmd = &cobra.Command{
	Use:     "build <dir>",
	Aliases: []string{"b"},
	Short:   "Pre-render pages into static files",
	Long: `Render every page into dir as static HTML.

Routes without parameters are rendered first. Links in the rendered pages
are then followed to render pages of dynamic routes. The not-found page is
written as 404.html and the public directory is copied alongside.

Examples:
  gateway build dist
  gateway build dist --concurrency 8 --no-public`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().IntVar(&buildConcurrency, "concurrency", 4, "Pages rendered in parallel")
	buildCmd.Flags().BoolVar(&buildNoPublic, "no-public", false, "Do not copy the public directory")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return buildSite(contextOf(cmd), cmd, cfg, newLogger(cfg), args[0])
}

func buildSite(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger logging.Logger, dir string) error {
	table, err := loadRoutes(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metrics := monitoring.New()
	site := server.NewDispatcher(server.Options{
		Table:      table,
		Runtime:    server.NewRuntime(config.EnvProd, 0, metrics),
		Public:     os.DirFS(cfg.PublicDir),
		CacheTTL:   cfg.CacheTTL,
		JSONErrors: cfg.JSONErrors,
		Logger:     logger,
	})

	opts := build.Options{
		OutDir:      dir,
		Concurrency: buildConcurrency,
		Logger:      logger,
		Metrics:     metrics,
	}
	if !buildNoPublic {
		opts.PublicDir = cfg.PublicDir
	}

	report, err := build.New(site, opts).Build(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range report.Pages {
		fmt.Fprintf(out, "  %s -> %s\n", p.Path, p.File)
	}
	skipped := make([]string, 0, len(report.Skipped))
	for p := range report.Skipped {
		skipped = append(skipped, p)
	}
	sort.Strings(skipped)
	for _, p := range skipped {
		fmt.Fprintf(out, "  %s skipped (%s)\n", p, report.Skipped[p])
	}
	fmt.Fprintf(out, "Rendered %d pages into %s\n", len(report.Pages), dir)
	return nil
}
