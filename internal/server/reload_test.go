package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/internal/watcher"
	"github.com/redraskal/gateway/pkg/route"
)

func reloadCount(t *testing.T, m *monitoring.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "gateway_dev_reload_broadcasts_total" {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

type reloadEnv struct {
	pages, public string
	metrics       *monitoring.Metrics
	errc          chan error
	cancel        context.CancelFunc
}

func startReloadLoop(t *testing.T) *reloadEnv {
	t.Helper()
	root := t.TempDir()
	env := &reloadEnv{
		pages:   filepath.Join(root, "pages"),
		public:  filepath.Join(root, "public"),
		metrics: monitoring.New(),
		errc:    make(chan error, 1),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(env.pages, "blog"), 0o755))
	require.NoError(t, os.MkdirAll(env.public, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.pages, "index.go"), []byte("package pages"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.pages, "blog", "[slug].go"), []byte("package pages"), 0o644))

	loop := &ReloadLoop{
		Runtime: NewRuntime(config.EnvDev, 0, env.metrics),
		Table: registry.New(map[string]route.Route{
			"index.go":       bodyOnly{body: markup("home")},
			"blog/[slug].go": bodyOnly{body: markup("post")},
		}),
		PagesDir:  env.pages,
		PublicDir: env.public,
		Debounce:  10 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	t.Cleanup(cancel)
	go func() { env.errc <- loop.Run(ctx) }()
	return env
}

func touch(t *testing.T, path string, i int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("package pages // %d", i)), 0o644))
}

func TestReloadLoopBroadcastsForRouteChange(t *testing.T) {
	env := startReloadLoop(t)

	i := 0
	require.Eventually(t, func() bool {
		i++
		touch(t, filepath.Join(env.pages, "blog", "[slug].go"), i)
		return reloadCount(t, env.metrics) > 0
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case err := <-env.errc:
		t.Fatalf("loop returned early: %v", err)
	default:
	}

	env.cancel()
	select {
	case err := <-env.errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestReloadLoopRestartsForNewFile(t *testing.T) {
	env := startReloadLoop(t)

	i := 0
	var err error
	require.Eventually(t, func() bool {
		i++
		touch(t, filepath.Join(env.pages, fmt.Sprintf("new%d.go", i)), i)
		select {
		case err = <-env.errc:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrRestartRequested)
}

func TestReloadLoopBroadcastsForPublicChange(t *testing.T) {
	env := startReloadLoop(t)

	i := 0
	require.Eventually(t, func() bool {
		i++
		touch(t, filepath.Join(env.public, "app.css"), i)
		return reloadCount(t, env.metrics) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestReloadLoopMissingPagesDir(t *testing.T) {
	loop := &ReloadLoop{
		Runtime:  NewRuntime(config.EnvDev, 0, nil),
		Table:    registry.New(nil),
		PagesDir: filepath.Join(t.TempDir(), "missing"),
	}
	assert.Error(t, loop.Run(context.Background()))
}

func TestRouteKey(t *testing.T) {
	loop := &ReloadLoop{
		PagesDir: "pages",
		Table:    registry.New(map[string]route.Route{"blog/[slug].go": bodyOnly{}}),
	}

	key, ok := loop.routeKey(watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: filepath.Join("pages", "blog", "[slug].go")})
	assert.True(t, ok)
	assert.Equal(t, "blog/[slug].go", key)

	_, ok = loop.routeKey(watcher.ChangeEvent{Type: watcher.EventTypeDeleted, Path: filepath.Join("pages", "blog", "[slug].go")})
	assert.False(t, ok)

	_, ok = loop.routeKey(watcher.ChangeEvent{Type: watcher.EventTypeCreated, Path: filepath.Join("pages", "about.go")})
	assert.False(t, ok)
}
