package route

import (
	"errors"
	"net/http"
	"testing"

	"github.com/redraskal/gateway/pkg/html"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	calls int
}

func (c *counter) Data(r *http.Request, m Match) (any, error) {
	c.calls++
	return c.calls, nil
}

func (c *counter) Head(data any, err error) html.HTML {
	return "<title>count</title>"
}

func (c *counter) Body(data any, err error) (Output, error) {
	return Markup(html.Join("<p>", data, "</p>")), nil
}

func TestCachedRendersOnce(t *testing.T) {
	inner := &counter{}
	c := NewCached(inner)

	first := c.Snapshot()
	second := c.Snapshot()

	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, first.Data)
	assert.True(t, first.HasBody)
	assert.Equal(t, html.Page("<title>count</title>", "<p>1</p>", false), first.Document)
}

func TestCacheFactory(t *testing.T) {
	r := Cache(func() Route { return &counter{} })()

	c, ok := r.(*Cached)
	require.True(t, ok)
	assert.IsType(t, &counter{}, c.Unwrap())
	assert.IsType(t, &counter{}, Underlying(r))
}

type failing struct{}

func (failing) Body(data any, err error) (Output, error) {
	return nil, RedirectTo("/elsewhere", "moved")
}

func TestCachedKeepsBodyError(t *testing.T) {
	snap := NewCached(failing{}).Snapshot()

	assert.True(t, snap.HasBody)
	assert.Empty(t, snap.Document)
	target, ok := RedirectTarget(snap.BodyErr)
	assert.True(t, ok)
	assert.Equal(t, "/elsewhere", target)
}

type panicking struct{}

func (panicking) Body(data any, err error) (Output, error) {
	panic(errors.New("kaboom"))
}

func TestCachedRecoversPanic(t *testing.T) {
	snap := NewCached(panicking{}).Snapshot()

	require.Error(t, snap.BodyErr)
	var pe *PanicError
	require.ErrorAs(t, snap.BodyErr, &pe)
	assert.EqualError(t, pe.Unwrap(), "kaboom")
}

func TestCachedWithoutBody(t *testing.T) {
	snap := NewCached(struct{}{}).Snapshot()
	assert.False(t, snap.HasBody)
	assert.Nil(t, snap.Data)
}
