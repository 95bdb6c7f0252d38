package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/scaffolding"
)

var genOpen bool

var genCmd = &cobra.Command{
	Use:     "gen <name>",
	Aliases: []string{"g"},
	Short:   "Generate a page file",
	Long: `Create a page file under the pages directory from the built-in template.
The .go extension is added when missing, parent directories are created, and
an existing file is never overwritten.

Examples:
  gateway gen about            # pages/about.go
  gateway gen blog/[slug]      # pages/blog/[slug].go
  gateway gen contact --open   # Also open the file in VS Code`,
	Args: cobra.ExactArgs(1),
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)
	genCmd.Flags().BoolVar(&genOpen, "open", false, "Open the file with code -r")
}

func runGen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return generate(cmd, cfg, args[0], genOpen)
}

func generate(cmd *cobra.Command, cfg *config.Config, name string, open bool) error {
	g := scaffolding.NewGenerator(cfg.PagesDir)
	if open {
		g.Open = scaffolding.VSCode
	}
	file, err := g.Generate(name)
	if file != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", file)
	}
	return err
}
