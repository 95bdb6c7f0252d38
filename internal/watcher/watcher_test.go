package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestFilters(t *testing.T) {
	assert.True(t, GoFilter("pages/index.go"))
	assert.False(t, GoFilter("pages/index.ts"))

	assert.True(t, NoTestFilter("pages/index.go"))
	assert.False(t, NoTestFilter("pages/index_test.go"))

	assert.True(t, NoGitFilter("pages/index.go"))
	assert.False(t, NoGitFilter("repo/.git/HEAD"))
	assert.False(t, NoGitFilter(".git/HEAD"))

	assert.True(t, NoEditorFilter("pages/index.go"))
	assert.False(t, NoEditorFilter("pages/index.go~"))
	assert.False(t, NoEditorFilter("pages/.index.go.swp"))
	assert.False(t, NoEditorFilter("pages/.#index.go"))

	css := ExtensionFilter(".css", ".js")
	assert.True(t, css("public/app.css"))
	assert.True(t, css("public/app.js"))
	assert.False(t, css("public/logo.png"))
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.go"})
	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "a.go"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.go"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.go", events[0].Path)
		assert.Equal(t, "b.go", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestDebouncerFlushEmpty(t *testing.T) {
	d := newDebouncer(time.Millisecond)
	d.flush()
	assert.Empty(t, d.output)
}

func TestAddPathValidation(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, fw.AddPath(dir))
	assert.Error(t, fw.AddPath(""))
	assert.Error(t, fw.AddPath(file))
	assert.Error(t, fw.AddPath(filepath.Join(dir, "missing")))
}

func TestAddRecursive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "blog", "drafts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))

	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(root))

	watched := fw.WatchList()
	assert.Contains(t, watched, root)
	assert.Contains(t, watched, filepath.Join(root, "blog"))
	assert.Contains(t, watched, filepath.Join(root, "blog", "drafts"))
	assert.NotContains(t, watched, filepath.Join(root, ".cache"))
}

func TestFileWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(GoFilter)
	fw.AddFilter(NoTestFilter)

	batches := make(chan []ChangeEvent, 10)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index_test.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.go"), []byte("package pages"), 0o644))

	select {
	case events := <-batches:
		require.NotEmpty(t, events)
		for _, e := range events {
			assert.Equal(t, filepath.Join(root, "index.go"), e.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestFileWatcherWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(GoFilter)
	batches := make(chan []ChangeEvent, 10)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	sub := filepath.Join(root, "blog")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		for _, p := range fw.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "[slug].go"), []byte("package blog"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case events := <-batches:
			for _, e := range events {
				if e.Path == filepath.Join(sub, "[slug].go") {
					return
				}
			}
		case <-deadline:
			t.Fatal("change in new directory not reported")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}
