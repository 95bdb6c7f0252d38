package route

import (
	"context"
	"sync"

	"github.com/redraskal/gateway/pkg/html"
)

// Cache wraps factory so the route renders once and is served from memory
// outside development mode. The route's output must not depend on the
// request: Data is called with a nil request and an empty Match.
func Cache(factory Factory) Factory {
	return func() Route {
		return NewCached(factory())
	}
}

// Cached holds a route and the result of rendering it once.
type Cached struct {
	inner Route
	once  sync.Once
	snap  *Snapshot
}

// Snapshot is the stored result of a cached render.
type Snapshot struct {
	Data    any
	Err     error
	HasBody bool
	Output  Output
	BodyErr error
	// Document is the composed page when Output is markup.
	Document string
}

// NewCached wraps inner.
func NewCached(inner Route) *Cached {
	return &Cached{inner: inner}
}

// Unwrap returns the wrapped route.
func (c *Cached) Unwrap() Route { return c.inner }

// Snapshot renders the route on first use and returns the stored result.
func (c *Cached) Snapshot() *Snapshot {
	c.once.Do(func() {
		c.snap = render(c.inner)
	})
	return c.snap
}

func render(r Route) (snap *Snapshot) {
	snap = &Snapshot{}
	defer func() {
		if p := recover(); p != nil {
			snap.BodyErr = &Error{Message: "cached render panicked", Err: panicError(p)}
		}
	}()

	if dl, ok := r.(DataLoader); ok {
		snap.Data, snap.Err = dl.Data(nil, Match{})
	}
	b, ok := r.(Bodier)
	if !ok {
		return snap
	}
	snap.HasBody = true
	snap.Output, snap.BodyErr = b.Body(snap.Data, snap.Err)
	if snap.BodyErr != nil {
		return snap
	}

	markup, ok := snap.Output.(MarkupOutput)
	if !ok {
		return snap
	}
	body, err := markup.Resolve(context.Background())
	if err != nil {
		snap.BodyErr = err
		return snap
	}
	var head html.HTML
	if h, ok := r.(Header); ok {
		head = h.Head(snap.Data, snap.Err)
	}
	snap.Document = html.Page(head, body, false)
	return snap
}

// Underlying returns the route inside any wrappers.
func Underlying(r Route) Route {
	for {
		u, ok := r.(interface{ Unwrap() Route })
		if !ok {
			return r
		}
		r = u.Unwrap()
	}
}
