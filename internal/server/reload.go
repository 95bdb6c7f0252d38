package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/internal/watcher"
)

// ExitRestart is the exit code that asks the dev supervisor for a restart.
const ExitRestart = 8

// ErrRestartRequested is returned by ReloadLoop.Run when the route table no
// longer matches the pages directory.
var ErrRestartRequested = errors.New("server: restart requested")

const defaultDebounce = 100 * time.Millisecond

// ReloadLoop watches the pages and public directories in development.
type ReloadLoop struct {
	Runtime   *Runtime
	Table     *registry.Table
	PagesDir  string
	PublicDir string
	Logger    logging.Logger
	Debounce  time.Duration
}

// Run blocks until ctx is done or a restart is needed. A change to a loaded
// route file broadcasts a reload. Any other change under the pages directory,
// or the deletion of a route file, returns ErrRestartRequested. Changes under
// the public directory always broadcast a reload.
func (l *ReloadLoop) Run(ctx context.Context) error {
	logger := l.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("reload")
	delay := l.Debounce
	if delay <= 0 {
		delay = defaultDebounce
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	restart := make(chan string, 1)

	pages, err := l.watch(ctx, logger, delay, l.PagesDir, func(events []watcher.ChangeEvent) error {
		for _, ev := range events {
			key, ok := l.routeKey(ev)
			if !ok {
				select {
				case restart <- ev.Path:
				default:
				}
				return nil
			}
			logger.Debug(ctx, "Route changed", "route", key)
		}
		n := l.Runtime.BroadcastReload()
		logger.Info(ctx, "Reloading clients", "clients", n)
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch pages: %w", err)
	}
	defer pages.Stop()

	if l.PublicDir != "" {
		if info, err := os.Stat(l.PublicDir); err == nil && info.IsDir() {
			public, err := l.watch(ctx, logger, delay, l.PublicDir, func(events []watcher.ChangeEvent) error {
				n := l.Runtime.BroadcastReload()
				logger.Info(ctx, "Static files changed", "files", len(events), "clients", n)
				return nil
			})
			if err != nil {
				return fmt.Errorf("watch public: %w", err)
			}
			defer public.Stop()
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case path := <-restart:
		logger.Info(ctx, "Restarting", "path", path)
		return ErrRestartRequested
	}
}

// routeKey returns the table key for a changed file under PagesDir, or false
// when the path is not a live route.
func (l *ReloadLoop) routeKey(ev watcher.ChangeEvent) (string, bool) {
	if ev.Type == watcher.EventTypeDeleted || ev.Type == watcher.EventTypeRenamed {
		return "", false
	}
	rel, err := filepath.Rel(l.PagesDir, ev.Path)
	if err != nil {
		return "", false
	}
	key := filepath.ToSlash(rel)
	return key, l.Table.Has(key)
}

func (l *ReloadLoop) watch(ctx context.Context, logger logging.Logger, delay time.Duration, dir string, handler watcher.ChangeHandler) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(delay, logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorFilter)
	fw.AddHandler(handler)
	if err := fw.AddRecursive(dir); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}
