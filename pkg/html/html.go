// Package html composes HTML documents from small fragments.
//
// It is deliberately not a template language: Join concatenates literal
// markup, escaped text, nested fragments and templ components into a single
// HTML value, and Page wraps a head and body fragment in the fixed document
// skeleton served by gateway.
//
//	body := html.Join(`
//		<h1>Hello `, html.Text(name), `</h1>
//		<ul>`, items, `</ul>
//	`)
package html

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	nethtml "golang.org/x/net/html"
)

// HTML is trusted markup. Values of this type are inserted verbatim.
type HTML string

// String returns the markup.
func (h HTML) String() string { return string(h) }

// RenderError is raised by Join when a templ.Component fails to render.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "html: render component: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Join composes a fragment from parts:
//
//   - string: literal markup; newlines and tabs are dropped so indented
//     source stays compact on the wire
//   - HTML: inserted verbatim
//   - []HTML, []any: flattened in order
//   - templ.Component: rendered in place
//   - nil: ignored
//   - anything else: formatted with fmt.Sprint and escaped
//
// Join panics with a *RenderError if a component fails to render.
func Join(parts ...any) HTML {
	var b strings.Builder
	for _, part := range parts {
		write(&b, part)
	}
	return HTML(b.String())
}

func write(b *strings.Builder, part any) {
	switch v := part.(type) {
	case nil:
	case HTML:
		b.WriteString(string(v))
	case string:
		writeLiteral(b, v)
	case []HTML:
		for _, h := range v {
			b.WriteString(string(h))
		}
	case []any:
		for _, p := range v {
			write(b, p)
		}
	case templ.Component:
		if err := v.Render(context.Background(), b); err != nil {
			panic(&RenderError{Err: err})
		}
	default:
		b.WriteString(nethtml.EscapeString(fmt.Sprint(v)))
	}
}

func writeLiteral(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != '\n' && c != '\t' {
			b.WriteByte(c)
		}
	}
}

// Text escapes s for use as element content or a quoted attribute value.
func Text(s string) HTML {
	return HTML(nethtml.EscapeString(s))
}

// Render renders a templ component into a fragment.
func Render(ctx context.Context, c templ.Component) (HTML, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", &RenderError{Err: err}
	}
	return HTML(b.String()), nil
}

// Meta returns a <meta name content> element with escaped attributes.
func Meta(name, content string) HTML {
	return HTML(`<meta name="` + nethtml.EscapeString(name) + `" content="` + nethtml.EscapeString(content) + `" />`)
}
