package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/pkg/html"
	"github.com/redraskal/gateway/pkg/route"
)

// loader is a route with only Data.
type loader struct {
	data func(r *http.Request, m route.Match) (any, error)
}

func (l loader) Data(r *http.Request, m route.Match) (any, error) { return l.data(r, m) }

// bodyOnly is a route with only Body.
type bodyOnly struct {
	body func(data any, err error) (route.Output, error)
}

func (b bodyOnly) Body(data any, err error) (route.Output, error) { return b.body(data, err) }

// page is a route with every HTTP capability. Nil funcs fall back to
// defaults.
type page struct {
	data func(r *http.Request, m route.Match) (any, error)
	head func(data any, err error) html.HTML
	body func(data any, err error) (route.Output, error)
}

func (p page) Data(r *http.Request, m route.Match) (any, error) {
	if p.data == nil {
		return nil, nil
	}
	return p.data(r, m)
}

func (p page) Head(data any, err error) html.HTML {
	if p.head == nil {
		return ""
	}
	return p.head(data, err)
}

func (p page) Body(data any, err error) (route.Output, error) {
	if p.body == nil {
		return route.Markup(""), nil
	}
	return p.body(data, err)
}

// markup returns a Body func rendering text.
func markup(text string) func(any, error) (route.Output, error) {
	return func(any, error) (route.Output, error) { return route.Markup(html.HTML(text)), nil }
}

type testEnv struct {
	dispatcher *Dispatcher
	metrics    *monitoring.Metrics
	opts       Options
}

func newTestEnv(t *testing.T, env config.Environment, routes map[string]route.Route, configure ...func(*Options)) *testEnv {
	t.Helper()
	m := monitoring.New()
	opts := Options{
		Table:      registry.New(routes),
		Runtime:    NewRuntime(env, 0, m),
		CacheTTL:   60,
		JSONErrors: true,
		Logger:     logging.Discard(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	return &testEnv{dispatcher: NewDispatcher(opts), metrics: m, opts: opts}
}

func withPublic(files fstest.MapFS) func(*Options) {
	return func(o *Options) { o.Public = files }
}

func (e *testEnv) do(method, target string, header http.Header, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.dispatcher.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, nil, "")
}

func acceptJSON() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	return h
}
