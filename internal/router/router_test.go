package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = []string{
	"index.go",
	"about.go",
	"404.go",
	"blog/index.go",
	"blog/new.go",
	"blog/[slug].go",
	"docs/[...path].go",
	"shop/[[...path]].go",
	"users/[id]/posts/[post].go",
	"files/readme.go",
	"files/[...rest].go",
}

func TestMatch(t *testing.T) {
	r := New(testKeys)

	tests := []struct {
		name     string
		path     string
		wantKey  string
		wantName string
		params   map[string]string
	}{
		{"root", "/", "index.go", "/", map[string]string{}},
		{"static", "/about", "about.go", "/about", map[string]string{}},
		{"trailing slash", "/about/", "about.go", "/about", map[string]string{}},
		{"nested index", "/blog", "blog/index.go", "/blog", map[string]string{}},
		{"static beats dynamic", "/blog/new", "blog/new.go", "/blog/new", map[string]string{}},
		{"dynamic", "/blog/hello", "blog/[slug].go", "/blog/[slug]", map[string]string{"slug": "hello"}},
		{"decoded param", "/blog/hello%20world", "blog/[slug].go", "/blog/[slug]", map[string]string{"slug": "hello world"}},
		{"catch-all", "/docs/a/b/c", "docs/[...path].go", "/docs/[...path]", map[string]string{"path": "a/b/c"}},
		{"optional catch-all empty", "/shop", "shop/[[...path]].go", "/shop/[[...path]]", map[string]string{}},
		{"optional catch-all", "/shop/x/y", "shop/[[...path]].go", "/shop/[[...path]]", map[string]string{"path": "x/y"}},
		{"multiple params", "/users/7/posts/42", "users/[id]/posts/[post].go", "/users/[id]/posts/[post]", map[string]string{"id": "7", "post": "42"}},
		{"static beats catch-all", "/files/readme", "files/readme.go", "/files/readme", map[string]string{}},
		{"catch-all fallback", "/files/readme/extra", "files/[...rest].go", "/files/[...rest]", map[string]string{"rest": "readme/extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.wantKey, m.Pattern)
			assert.Equal(t, tt.wantName, m.Name)
			assert.Equal(t, tt.path, m.Pathname)
			assert.Equal(t, tt.params, m.Params)
		})
	}
}

func TestMatchMisses(t *testing.T) {
	r := New(testKeys)

	for _, path := range []string{"/404", "/docs", "/missing", "/blog/a/b", "/users/7"} {
		t.Run(path, func(t *testing.T) {
			_, ok := r.Match(path)
			assert.False(t, ok)
		})
	}
}

func TestRoutesOrder(t *testing.T) {
	r := New([]string{"[...all].go", "blog/[slug].go", "blog/new.go", "index.go", "[id].go"})

	assert.Equal(t, []string{
		"index.go",
		"blog/new.go",
		"blog/[slug].go",
		"[id].go",
		"[...all].go",
	}, r.Routes())

	m, ok := r.Match("/blog/x")
	require.True(t, ok)
	assert.Equal(t, "blog/[slug].go", m.Pattern)

	m, ok = r.Match("/x")
	require.True(t, ok)
	assert.Equal(t, "[id].go", m.Pattern)

	m, ok = r.Match("/x/y")
	require.True(t, ok)
	assert.Equal(t, "[...all].go", m.Pattern)
}

func TestDuplicatePatternKeepsFirstKey(t *testing.T) {
	r := New([]string{"blog/index.go", "blog.go"})

	assert.Equal(t, []string{"blog.go"}, r.Routes())
}

func TestIsDynamic(t *testing.T) {
	r := New(testKeys)

	assert.False(t, r.IsDynamic("about.go"))
	assert.False(t, r.IsDynamic("index.go"))
	assert.True(t, r.IsDynamic("blog/[slug].go"))
	assert.True(t, r.IsDynamic("shop/[[...path]].go"))
	assert.False(t, r.IsDynamic("unknown.go"))
}

func TestPatternName(t *testing.T) {
	assert.Equal(t, "/", PatternName("index.go"))
	assert.Equal(t, "/blog", PatternName("blog/index.go"))
	assert.Equal(t, "/sitemap.xml", PatternName("sitemap.xml.go"))
	assert.Equal(t, "/blog/[slug]", PatternName("blog/[slug].go"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound("404.go"))
	assert.False(t, IsNotFound("errors/404.go"))
	assert.False(t, IsNotFound("4040.go"))
}
