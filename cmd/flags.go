package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/registry"
)

// Output formats shared by commands that print structured data.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// bindFlags binds each named flag to its configuration key.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func newLogger(cfg *config.Config) *logging.GatewayLogger {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
		Component: "gateway",
	})
}

// loadRoutes loads the route table from the configured pages directory.
func loadRoutes(ctx context.Context, cfg *config.Config, logger logging.Logger) (*registry.Table, error) {
	return registry.Load(ctx, os.DirFS(cfg.PagesDir), registry.Options{Logger: logger})
}

// writeFormatted encodes v as JSON or YAML.
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: %s, %s)", format, formatJSON, formatYAML)
	}
}
