// Package route defines what a gateway page is.
//
// A page is any value; what it can do is discovered from the optional
// interfaces it implements. A page that implements none of them still
// matches its URL and falls through to static files and the 404 page.
//
//	type Index struct{}
//
//	func (Index) Data(r *http.Request, m route.Match) (any, error) {
//		return map[string]any{"time": time.Now(), "_secret": "yes"}, nil
//	}
//
//	func (Index) Body(data any, err error) (route.Output, error) {
//		return route.Markup(html.Join(`<h1>Hello</h1>`)), nil
//	}
//
//	func init() { route.Register("index.go", func() route.Route { return Index{} }) }
package route

import (
	"context"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/redraskal/gateway/pkg/html"
)

// Route is a page handler. See DataLoader, Header, Bodier and WebSocketer.
type Route any

// DataLoader resolves the per-request value handed to Head and Body.
// Data runs on the request goroutine and should honour r.Context().
type DataLoader interface {
	Data(r *http.Request, m Match) (any, error)
}

// Header renders the page head. err is the Data error, if any.
type Header interface {
	Head(data any, err error) html.HTML
}

// Bodier renders the page body. Returning an error falls through to the
// static and not-found handlers, unless the error is a redirect.
type Bodier interface {
	Body(data any, err error) (Output, error)
}

// WebSocketer exposes WebSocket callbacks. WebSocket is called once when the
// route is loaded, so the callbacks are shared by every connection and must
// keep per-connection state on the Socket.
type WebSocketer interface {
	WebSocket() WebSocket
}

// Match describes how a request path matched a route.
type Match struct {
	// Pattern is the route key, the page file path relative to the pages root.
	Pattern string
	// Name is the URL pattern, e.g. /blog/[slug].
	Name string
	// Pathname is the matched request path.
	Pathname string
	// Params holds dynamic segment values. Catch-all values are joined with "/".
	Params map[string]string
	// Query is the parsed query string.
	Query url.Values
}

// Param returns a dynamic segment value.
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Output is what Body produces: markup wrapped in the page skeleton, or a
// raw response written as-is.
type Output interface {
	isOutput()
}

// MarkupOutput is page content.
type MarkupOutput struct {
	HTML      html.HTML
	Component templ.Component
}

func (MarkupOutput) isOutput() {}

// Resolve renders the markup.
func (o MarkupOutput) Resolve(ctx context.Context) (html.HTML, error) {
	if o.Component == nil {
		return o.HTML, nil
	}
	return html.Render(ctx, o.Component)
}

// RawOutput is a response that bypasses page composition.
type RawOutput struct {
	Handler http.Handler
}

func (RawOutput) isOutput() {}

// Markup wraps a fragment as page content.
func Markup(h html.HTML) Output {
	return MarkupOutput{HTML: h}
}

// Component wraps a templ component as page content.
func Component(c templ.Component) Output {
	return MarkupOutput{Component: c}
}

// Raw returns h's response verbatim.
func Raw(h http.Handler) Output {
	return RawOutput{Handler: h}
}

// Redirect responds with 302 Found to target.
func Redirect(target string) Output {
	return RawOutput{Handler: http.RedirectHandler(target, http.StatusFound)}
}

// As converts Data's value for use in Head and Body. It returns the zero
// value when data is nil or of another type.
func As[T any](data any) T {
	v, _ := data.(T)
	return v
}
