// Package build pre-renders a site into static files.
//
// Every route without parameters is rendered, then the links found in the
// rendered pages are followed to discover pages of dynamic routes. Pages are
// written as <path>/index.html, and the not-found page as 404.html.
package build

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	gwerrors "github.com/redraskal/gateway/internal/errors"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/router"
)

const defaultConcurrency = 4

// Site is a handler that can be pre-rendered.
type Site interface {
	http.Handler
	Router() *router.Router
}

// Options configures a build.
type Options struct {
	// OutDir receives the rendered files. It is created if missing.
	OutDir string
	// PublicDir, when set, is copied into OutDir first.
	PublicDir string
	// Concurrency caps parallel renders.
	Concurrency int
	Logger      logging.Logger
	Metrics     *monitoring.Metrics
}

// Page is one written file.
type Page struct {
	Path string `json:"path" yaml:"path"`
	File string `json:"file" yaml:"file"`
	Size int    `json:"size" yaml:"size"`
}

// Report lists what a build wrote and skipped.
type Report struct {
	Pages []Page `json:"pages" yaml:"pages"`
	// Skipped maps paths that were not written to the reason.
	Skipped map[string]string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Builder renders a Site in process.
type Builder struct {
	site   Site
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	seen    map[string]bool
	report  Report
	written map[string]bool
}

// New creates a builder. The site should run in prod mode so pages carry no
// live-reload script.
func New(site Site, opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Builder{
		site:    site,
		opts:    opts,
		logger:  opts.Logger.WithComponent("build"),
		seen:    make(map[string]bool),
		written: make(map[string]bool),
		report:  Report{Skipped: make(map[string]string)},
	}
}

// Build renders the site into OutDir.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	if b.opts.OutDir == "" {
		return nil, gwerrors.NewConfigError("ERR_BUILD_DIR", "build output directory is empty")
	}
	perf := logging.StartOperation(b.logger, "build")

	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return nil, gwerrors.NewIOError("ERR_BUILD_DIR", "failed to create output directory", err).WithFile(b.opts.OutDir)
	}
	if err := b.copyPublic(); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	queue := b.seeds()
	for len(queue) > 0 {
		next, err := b.renderAll(ctx, queue)
		if err != nil {
			perf.EndWithError(ctx, err)
			return nil, err
		}
		queue = next
	}

	if err := b.renderNotFound(ctx); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	sort.Slice(b.report.Pages, func(i, j int) bool { return b.report.Pages[i].Path < b.report.Pages[j].Path })
	perf.End(ctx, "pages", len(b.report.Pages), "skipped", len(b.report.Skipped))
	return &b.report, nil
}

// seeds returns the paths of every route without parameters.
func (b *Builder) seeds() []string {
	r := b.site.Router()
	var paths []string
	for _, key := range r.Routes() {
		if r.IsDynamic(key) {
			continue
		}
		if p := router.PatternName(key); b.visit(p) {
			paths = append(paths, p)
		}
	}
	return paths
}

// visit marks p as queued and reports whether it was new.
func (b *Builder) visit(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[p] {
		return false
	}
	b.seen[p] = true
	return true
}

// renderAll renders one wave of paths and returns the newly discovered ones.
func (b *Builder) renderAll(ctx context.Context, paths []string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	var mu sync.Mutex
	var next []string
	for _, p := range paths {
		g.Go(func() error {
			links, err := b.render(gctx, p)
			if err != nil {
				return err
			}
			mu.Lock()
			next = append(next, links...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(next)
	return next, nil
}

// render fetches p and writes it if it is an HTML page. It returns the
// unvisited page links it contains.
func (b *Builder) render(ctx context.Context, p string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := b.fetch(ctx, p)

	switch {
	case rec.Code != http.StatusOK:
		b.skip(ctx, p, fmt.Sprintf("status %d", rec.Code))
		return nil, nil
	case !isHTML(rec.Header().Get("Content-Type")):
		b.skip(ctx, p, "not html")
		return nil, nil
	}

	body := rec.Body.Bytes()
	if err := b.write(p, pageFile(p), body); err != nil {
		return nil, err
	}

	var found []string
	for _, link := range Links(p, bytes.NewReader(body)) {
		if _, ok := b.site.Router().Match(link); ok && b.visit(link) {
			found = append(found, link)
		}
	}
	return found, nil
}

func (b *Builder) renderNotFound(ctx context.Context) error {
	rec := b.fetch(ctx, "/"+router.NotFoundKey)
	if rec.Code != http.StatusNotFound || rec.Body.Len() == 0 || !isHTML(rec.Header().Get("Content-Type")) {
		return nil
	}
	return b.write("/"+router.NotFoundKey, router.NotFoundKey+".html", rec.Body.Bytes())
}

func (b *Builder) fetch(ctx context.Context, p string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, p, nil).WithContext(ctx)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	b.site.ServeHTTP(rec, req)
	return rec
}

func (b *Builder) write(p, file string, body []byte) error {
	dest := filepath.Join(b.opts.OutDir, filepath.FromSlash(file))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return gwerrors.NewIOError("ERR_BUILD_WRITE", "failed to create directory", err).WithFile(dest)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return gwerrors.NewIOError("ERR_BUILD_WRITE", "failed to write page", err).WithFile(dest)
	}

	b.mu.Lock()
	b.report.Pages = append(b.report.Pages, Page{Path: p, File: file, Size: len(body)})
	b.mu.Unlock()
	b.opts.Metrics.RecordPageRendered()
	b.logger.Debug(context.Background(), "Rendered page", "path", p, "file", file, "bytes", len(body))
	return nil
}

func (b *Builder) skip(ctx context.Context, p, reason string) {
	b.mu.Lock()
	b.report.Skipped[p] = reason
	b.mu.Unlock()
	b.logger.Warn(ctx, nil, "Skipped page", "path", p, "reason", reason)
}

func (b *Builder) copyPublic() error {
	if b.opts.PublicDir == "" {
		return nil
	}
	info, err := os.Stat(b.opts.PublicDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil || !info.IsDir() {
		return gwerrors.NewIOError("ERR_BUILD_PUBLIC", "public path is not a directory", err).WithFile(b.opts.PublicDir)
	}
	if err := os.CopyFS(b.opts.OutDir, os.DirFS(b.opts.PublicDir)); err != nil {
		return gwerrors.NewIOError("ERR_BUILD_PUBLIC", "failed to copy public files", err).WithFile(b.opts.PublicDir)
	}
	return nil
}

// pageFile maps a URL path to its file: "/" is index.html and "/a/b" is
// a/b/index.html. Escaped segments are decoded.
func pageFile(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "index.html"
	}
	return p + "/index.html"
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}
