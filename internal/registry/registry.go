// Package registry builds the route table by walking the pages directory and
// resolving each page file against the factories registered in a
// route.Catalog.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	gwerrors "github.com/redraskal/gateway/internal/errors"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/router"
	"github.com/redraskal/gateway/pkg/route"
)

var (
	// ErrUnregistered means a page file has no factory in the catalog,
	// usually because its package is not imported by the binary.
	ErrUnregistered = errors.New("registry: no factory registered for page")
	// ErrFactory means a factory returned nil or panicked.
	ErrFactory = errors.New("registry: route factory failed")
)

// Options configures Load.
type Options struct {
	// Extensions lists the page file extensions. Defaults to ".go".
	Extensions []string
	// Catalog defaults to route.Default.
	Catalog *route.Catalog
	Logger  logging.Logger
}

// Entry is one loaded route.
type Entry struct {
	Key   string
	Route route.Route
	// Socket holds the handlers returned by WebSocket(), called once at load.
	Socket *route.WebSocket
}

// Cached returns the cache wrapper when the route was registered with
// route.Cache.
func (e *Entry) Cached() (*route.Cached, bool) {
	c, ok := e.Route.(*route.Cached)
	return c, ok
}

// Table is the immutable set of loaded routes.
type Table struct {
	entries  map[string]*Entry
	keys     []string
	notFound *Entry
}

// Load walks fsys and instantiates one route per page file.
func Load(ctx context.Context, fsys fs.FS, opts Options) (*Table, error) {
	if opts.Catalog == nil {
		opts.Catalog = route.Default
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".go"}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	logger := opts.Logger.WithComponent("registry")

	t := &Table{entries: make(map[string]*Entry)}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if hidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !isPage(d.Name(), opts.Extensions) {
			return nil
		}

		entry, err := load(opts.Catalog, p)
		if err != nil {
			return err
		}
		t.add(entry)
		logger.Info(ctx, "Loaded route", "route", entry.Key, "websocket", entry.Socket != nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(t.keys)
	return t, nil
}

// New builds a table from already-constructed routes, keyed by file key.
// WebSocket handlers are resolved the same way Load resolves them.
func New(routes map[string]route.Route) *Table {
	t := &Table{entries: make(map[string]*Entry, len(routes))}
	for key, r := range routes {
		t.add(newEntry(route.NormalizeKey(key), r))
	}
	sort.Strings(t.keys)
	return t
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func isPage(name string, extensions []string) bool {
	if hidden(name) || strings.HasSuffix(name, "_test.go") {
		return false
	}
	ext := path.Ext(name)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func load(catalog *route.Catalog, key string) (*Entry, error) {
	factory, ok := catalog.Lookup(key)
	if !ok {
		return nil, gwerrors.NewRouteError("ERR_ROUTE_UNREGISTERED", key, ErrUnregistered).WithFile(key)
	}

	r, err := construct(factory)
	if err != nil {
		return nil, gwerrors.NewRouteError("ERR_ROUTE_FACTORY", key, err).WithFile(key)
	}
	return newEntry(key, r), nil
}

func construct(factory route.Factory) (r route.Route, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrFactory, p)
		}
	}()
	r = factory()
	if r == nil {
		return nil, fmt.Errorf("%w: factory returned nil", ErrFactory)
	}
	return r, nil
}

func newEntry(key string, r route.Route) *Entry {
	e := &Entry{Key: key, Route: r}
	if ws, ok := route.Underlying(r).(route.WebSocketer); ok {
		handlers := ws.WebSocket()
		e.Socket = &handlers
	}
	return e
}

func (t *Table) add(e *Entry) {
	if _, exists := t.entries[e.Key]; !exists {
		t.keys = append(t.keys, e.Key)
	}
	t.entries[e.Key] = e
	if router.IsNotFound(e.Key) {
		t.notFound = e
	}
}

// Get returns the entry for key.
func (t *Table) Get(key string) (*Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Has reports whether key was loaded.
func (t *Table) Has(key string) bool {
	_, ok := t.entries[key]
	return ok
}

// NotFound returns the 404 route, or nil.
func (t *Table) NotFound() *Entry {
	return t.notFound
}

// Keys returns all loaded keys, sorted.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of loaded routes.
func (t *Table) Len() int {
	return len(t.entries)
}
