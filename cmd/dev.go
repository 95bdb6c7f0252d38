package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/server"
)

const childStopDelay = 5 * time.Second

var devRun string

var devCmd = &cobra.Command{
	Use:     "dev [-- serve flags]",
	Aliases: []string{"d"},
	Short:   "Serve in development mode, restarting when pages change",
	Long: `Run "serve" in development mode and restart it whenever it exits with
status 8, which it does when a page file appears or is removed.

Pages are compiled into the binary, so picking up new pages needs a rebuild.
Use --run to supply a command that rebuilds, such as "go run . serve".

Examples:
  gateway dev                         # Re-run this binary's serve command
  gateway dev --run "go run . serve"  # Rebuild the site on every restart
  gateway dev -- -p 8080              # Pass flags through to serve`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)
	devCmd.Flags().StringVar(&devRun, "run", "", `Command that starts the server (default: this binary with "serve")`)
}

func runDev(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	argv, err := devCommand(devRun, args)
	if err != nil {
		return err
	}

	for reloads := 0; ; reloads++ {
		code, err := runChild(ctx, argv, reloads)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		switch code {
		case server.ExitRestart:
			fmt.Fprintf(cmd.ErrOrStderr(), "Restarting (%d)\n", reloads+1)
		case 0:
			return nil
		default:
			return fmt.Errorf("serve exited with status %d", code)
		}
	}
}

// devCommand returns the child command line.
func devCommand(run string, args []string) ([]string, error) {
	if run != "" {
		argv := strings.Fields(run)
		if len(argv) == 0 {
			return nil, errors.New("--run is empty")
		}
		return append(argv, args...), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return append([]string{exe, "serve"}, args...), nil
}

// childEnv returns base with the dev environment and reload count set.
func childEnv(base []string, reloads int) []string {
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "GATEWAY_ENV=") || strings.HasPrefix(kv, "GATEWAY_RELOADS=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "GATEWAY_ENV=dev", "GATEWAY_RELOADS="+strconv.Itoa(reloads))
}

// runChild runs argv to completion and returns its exit status.
func runChild(ctx context.Context, argv []string, reloads int) (int, error) {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Env = childEnv(os.Environ(), reloads)
	c.Cancel = func() error { return c.Process.Signal(os.Interrupt) }
	c.WaitDelay = childStopDelay

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
