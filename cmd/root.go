// Package cmd provides the gateway command line.
//
// Pages are Go files that register themselves from init, so a site builds
// its own binary: its main package blank-imports the pages packages and
// calls Execute.
//
//	func main() {
//		if err := cmd.Execute(); err != nil {
//			os.Exit(cmd.ExitCode(err))
//		}
//	}
//
// Configuration comes from flags, GATEWAY_-prefixed environment variables
// and an optional .gateway.yml, in that order of precedence. Every setting
// is a flat key, so GATEWAY_PORT sets port and GATEWAY_CACHE_TTL sets
// cache_ttl.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "A file-convention web server",
	Long: `gateway maps a directory of page files to URL routes.

Each file under the pages directory is a route: pages/index.go serves /,
pages/blog/[slug].go serves /blog/<slug>, and pages/404.go renders missing
pages. Appending .json to any URL returns the page's data instead of HTML.

Quick Start:
  gateway gen index        Create pages/index.go
  gateway dev              Serve with live reload
  gateway serve            Serve in production mode
  gateway build dist       Pre-render pages into dist/`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line. A restart request from serve is returned
// without being printed.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, server.ErrRestartRequested) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, server.ErrRestartRequested):
		return server.ExitRestart
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .gateway.yml, can also use GATEWAY_CONFIG_FILE)")
	flags.String("hostname", "0.0.0.0", "Hostname to bind to")
	flags.IntP("port", "p", 3000, "Port to serve on")
	flags.String("env", string(config.EnvProd), "Environment (dev, prod)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("pages-dir", "pages", "Directory of page files")
	flags.String("public-dir", "public", "Directory of static files")
	flags.String("log-format", "auto", "Log format (auto, text, json)")

	bindFlags(flags, map[string]string{
		"hostname":   config.KeyHostname,
		"port":       config.KeyPort,
		"env":        config.KeyEnv,
		"debug":      config.KeyDebug,
		"pages-dir":  config.KeyPagesDir,
		"public-dir": config.KeyPublicDir,
		"log-format": config.KeyLogFormat,
	})
}

// initConfig wires viper to the config file and GATEWAY_ environment.
func initConfig() {
	if cfgFile == "" {
		cfgFile = os.Getenv("GATEWAY_CONFIG_FILE")
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gateway")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
