package server

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/internal/router"
	"github.com/redraskal/gateway/pkg/html"
	"github.com/redraskal/gateway/pkg/route"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
	methodField     = "_method"
)

// Options configures a Dispatcher.
type Options struct {
	Table   *registry.Table
	Runtime *Runtime
	// Public is the static asset root. Nil disables static files.
	Public fs.FS
	// CacheTTL is the static Cache-Control max-age in seconds, sent in prod.
	CacheTTL int
	// JSONErrors enables the 502 JSON error response.
	JSONErrors bool
	// MaxBodySize caps request bodies in bytes. Zero means unlimited.
	MaxBodySize int64
	// AllowedOrigins are extra WebSocket origin patterns. Same-host origins
	// are always accepted.
	AllowedOrigins []string
	Logger         logging.Logger
}

// Dispatcher routes requests to pages, static files and the not-found page.
type Dispatcher struct {
	opts    Options
	router  *router.Router
	rt      *Runtime
	logger  logging.Logger
	metrics *monitoring.Metrics
	errs    classifier
}

// NewDispatcher builds a dispatcher over opts.Table.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Runtime == nil {
		opts.Runtime = NewRuntime("", 0, nil)
	}
	logger := opts.Logger.WithComponent("dispatch")
	return &Dispatcher{
		opts:    opts,
		router:  router.New(opts.Table.Keys()),
		rt:      opts.Runtime,
		logger:  logger,
		metrics: opts.Runtime.Metrics(),
		errs:    classifier{logger: logger, metrics: opts.Runtime.Metrics()},
	}
}

// Router returns the matcher built from the route table.
func (d *Dispatcher) Router() *router.Router {
	return d.router
}

// request carries per-request state through the pipeline.
type request struct {
	rc      RequestContext
	entry   *registry.Entry
	match   route.Match
	logger  logging.Logger
	outcome string
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rawURL := r.RequestURI
	if rawURL == "" {
		rawURL = r.URL.RequestURI()
	}
	req := &request{
		rc:     BuildContext(rawURL, r.Header),
		logger: d.logger.With("request_id", uuid.NewString()),
	}
	defer func() { d.metrics.RecordRequest(req.outcome, time.Since(start)) }()

	if m, ok := d.router.Match(req.rc.Pathname); ok {
		req.entry, _ = d.opts.Table.Get(m.Pattern)
		req.match = m
		req.match.Query, _ = url.ParseQuery(req.rc.RawQuery)
	}

	if req.rc.Upgrade && d.shouldUpgrade(req.entry) {
		req.outcome = monitoring.OutcomeUpgrade
		d.serveSocket(w, r, req)
		return
	}

	if d.opts.MaxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, d.opts.MaxBodySize)
	}

	if req.entry != nil {
		if d.rt.IsDev() {
			req.logger.Info(r.Context(), "["+r.Method+"] "+req.rc.Pathname, "route", req.entry.Key)
		}
		if d.serveRoute(w, overrideMethod(r), req) {
			return
		}
	}

	if d.serveStatic(w, r, req) {
		return
	}
	d.serveNotFound(w, r, req)
}

func (d *Dispatcher) shouldUpgrade(entry *registry.Entry) bool {
	return d.rt.IsDev() || (entry != nil && entry.Socket != nil)
}

// overrideMethod applies a form's _method field to POST requests. The form
// is parsed here, so r.PostForm stays readable downstream.
func overrideMethod(r *http.Request) *http.Request {
	if r.Method != http.MethodPost {
		return r
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" {
		return r
	}
	if err := r.ParseForm(); err != nil {
		return r
	}
	method := strings.ToUpper(strings.TrimSpace(r.PostForm.Get(methodField)))
	if method == "" {
		return r
	}
	r = r.WithContext(r.Context())
	r.Method = method
	return r
}

// serveRoute runs the page pipeline. It returns false when the request
// should fall through to static files.
func (d *Dispatcher) serveRoute(w http.ResponseWriter, r *http.Request, req *request) bool {
	if cached, ok := req.entry.Cached(); ok && !d.rt.IsDev() {
		return d.serveSnapshot(w, r, req, cached.Snapshot())
	}

	page := route.Underlying(req.entry.Route)
	ctx := r.Context()

	data, err := d.loadData(r, page, req.match)
	var cls Classification
	if err != nil {
		cls = d.errs.classify(ctx, req.rc.Pathname, err)
	}

	if cls.Kind == KindRedirect && !req.rc.WantsJSON {
		req.outcome = monitoring.OutcomeRedirect
		http.Redirect(w, r, cls.Redirect, http.StatusFound)
		return true
	}

	if req.rc.WantsJSON {
		if !isNil(data) {
			req.outcome = monitoring.OutcomeJSON
			d.writeJSON(w, r, req, http.StatusOK, data, true)
			return true
		}
		if err != nil && d.opts.JSONErrors {
			req.outcome = monitoring.OutcomeJSONError
			d.writeJSON(w, r, req, http.StatusBadGateway, cls.body(), false)
			return true
		}
	}

	b, ok := page.(route.Bodier)
	if !ok {
		return false
	}
	out, berr := d.callBody(b, data, err)
	if berr != nil {
		return d.bodyFailed(w, r, req, berr)
	}
	return d.writeOutput(w, r, req, page, out, data, err, http.StatusOK)
}

func (d *Dispatcher) serveSnapshot(w http.ResponseWriter, r *http.Request, req *request, snap *route.Snapshot) bool {
	cls := Classify(snap.Err)
	if snap.Err != nil && cls.Kind == KindRedirect && !req.rc.WantsJSON {
		req.outcome = monitoring.OutcomeRedirect
		http.Redirect(w, r, cls.Redirect, http.StatusFound)
		return true
	}

	if req.rc.WantsJSON {
		if !isNil(snap.Data) {
			req.outcome = monitoring.OutcomeJSON
			d.writeJSON(w, r, req, http.StatusOK, snap.Data, true)
			return true
		}
		if snap.Err != nil && d.opts.JSONErrors {
			req.outcome = monitoring.OutcomeJSONError
			d.writeJSON(w, r, req, http.StatusBadGateway, cls.body(), false)
			return true
		}
	}

	if !snap.HasBody {
		return false
	}
	if snap.BodyErr != nil {
		return d.bodyFailed(w, r, req, snap.BodyErr)
	}
	if raw, ok := snap.Output.(route.RawOutput); ok {
		req.outcome = monitoring.OutcomeRaw
		raw.Handler.ServeHTTP(w, r)
		return true
	}
	if snap.Document == "" {
		return false
	}
	req.outcome = monitoring.OutcomeCached
	writeDocument(w, http.StatusOK, snap.Document)
	return true
}

// bodyFailed handles a Body error: redirects are followed, anything else is
// logged and falls through.
func (d *Dispatcher) bodyFailed(w http.ResponseWriter, r *http.Request, req *request, err error) bool {
	if target, ok := route.RedirectTarget(err); ok {
		req.outcome = monitoring.OutcomeRedirect
		http.Redirect(w, r, target, http.StatusFound)
		return true
	}
	d.errs.classify(r.Context(), req.rc.Pathname, err)
	return false
}

// writeOutput writes a Body result. Markup is composed into a page with the
// route's head; in dev the live-reload script is injected.
func (d *Dispatcher) writeOutput(w http.ResponseWriter, r *http.Request, req *request, page route.Route, out route.Output, data any, dataErr error, status int) bool {
	switch o := out.(type) {
	case route.RawOutput:
		if o.Handler == nil {
			return false
		}
		req.outcome = monitoring.OutcomeRaw
		o.Handler.ServeHTTP(w, r)
		return true
	case route.MarkupOutput:
		body, err := d.resolve(r.Context(), o)
		if err != nil {
			d.errs.classify(r.Context(), req.rc.Pathname, err)
			return false
		}
		head := d.callHead(r.Context(), req, page, data, dataErr)
		if req.outcome == "" {
			req.outcome = monitoring.OutcomePage
		}
		writeDocument(w, status, html.Page(head, body, d.rt.IsDev()))
		return true
	default:
		return false
	}
}

func writeDocument(w http.ResponseWriter, status int, doc string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(status)
	_, _ = io.WriteString(w, doc)
}

func (d *Dispatcher) writeJSON(w http.ResponseWriter, r *http.Request, req *request, status int, v any, sanitize bool) {
	var (
		body []byte
		err  error
	)
	if sanitize {
		body, err = Sanitize(v)
	} else {
		body, err = marshal(v)
	}
	if err != nil {
		d.logger.Error(r.Context(), err, "Failed to encode JSON response", "path", req.rc.Pathname)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// loadData calls Data, converting a panic into an error.
func (d *Dispatcher) loadData(r *http.Request, page route.Route, m route.Match) (data any, err error) {
	dl, ok := page.(route.DataLoader)
	if !ok {
		return nil, nil
	}
	defer func() {
		if p := recover(); p != nil {
			d.metrics.RecordPanic()
			data, err = nil, route.Recovered(p)
		}
	}()
	return dl.Data(r, m)
}

func (d *Dispatcher) callBody(b route.Bodier, data any, dataErr error) (out route.Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			d.metrics.RecordPanic()
			out, err = nil, route.Recovered(p)
		}
	}()
	return b.Body(data, dataErr)
}

// callHead returns the route head, or nothing if Head is missing or panics.
func (d *Dispatcher) callHead(ctx context.Context, req *request, page route.Route, data any, dataErr error) (head html.HTML) {
	h, ok := page.(route.Header)
	if !ok {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			d.metrics.RecordPanic()
			d.errs.classify(ctx, req.rc.Pathname, route.Recovered(p))
			head = ""
		}
	}()
	return h.Head(data, dataErr)
}

// resolve renders markup, converting a component panic into an error.
func (d *Dispatcher) resolve(ctx context.Context, o route.MarkupOutput) (body html.HTML, err error) {
	defer func() {
		if p := recover(); p != nil {
			d.metrics.RecordPanic()
			body, err = "", route.Recovered(p)
		}
	}()
	return o.Resolve(ctx)
}

// serveStatic serves a regular file from the public root.
func (d *Dispatcher) serveStatic(w http.ResponseWriter, r *http.Request, req *request) bool {
	if d.opts.Public == nil {
		return false
	}
	decoded, err := url.PathUnescape(req.rc.Path)
	if err != nil {
		return false
	}
	name := strings.TrimPrefix(path.Clean("/"+decoded), "/")
	if name == "" || !fs.ValidPath(name) {
		return false
	}

	f, err := d.opts.Public.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(f)
		if err != nil {
			return false
		}
		content = bytes.NewReader(b)
	}

	if !d.rt.IsDev() {
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(d.opts.CacheTTL))
	}
	req.outcome = monitoring.OutcomeStatic
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
	return true
}

// serveNotFound renders the 404 page with nil data, or an empty 404.
func (d *Dispatcher) serveNotFound(w http.ResponseWriter, r *http.Request, req *request) {
	req.outcome = monitoring.OutcomeNotFound
	if d.rt.IsDev() {
		req.logger.Warn(r.Context(), nil, "404: ["+r.Method+"] "+req.rc.Pathname)
	}

	if entry := d.opts.Table.NotFound(); entry != nil && d.renderNotFound(w, r, req, entry) {
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (d *Dispatcher) renderNotFound(w http.ResponseWriter, r *http.Request, req *request, entry *registry.Entry) bool {
	if cached, ok := entry.Cached(); ok && !d.rt.IsDev() {
		if snap := cached.Snapshot(); snap.Document != "" {
			writeDocument(w, http.StatusNotFound, snap.Document)
			return true
		}
		return false
	}

	page := route.Underlying(entry.Route)
	b, ok := page.(route.Bodier)
	if !ok {
		return false
	}
	out, err := d.callBody(b, nil, nil)
	if err != nil {
		d.errs.classify(r.Context(), req.rc.Pathname, err)
		return false
	}
	return d.writeOutput(w, r, req, page, out, nil, nil, http.StatusNotFound)
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
