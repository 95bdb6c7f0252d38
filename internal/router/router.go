// Package router matches request paths against page file keys using
// Next.js conventions:
//
//	index.go              /
//	about.go              /about
//	blog/index.go         /blog
//	blog/[slug].go        /blog/:slug
//	docs/[...path].go     /docs/* (one or more segments)
//	shop/[[...path]].go   /shop and /shop/* (zero or more segments)
//
// Static segments take priority over dynamic ones at the same depth, and
// dynamic segments over catch-alls, so a longer static prefix always wins.
package router

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/redraskal/gateway/pkg/route"
)

// NotFoundKey is the base name of the not-found page. It is never matched.
const NotFoundKey = "404"

type segmentKind int

// Ordered by precedence.
const (
	segmentStatic segmentKind = iota
	segmentDynamic
	segmentCatchAll
	segmentOptionalCatchAll
)

type segment struct {
	kind  segmentKind
	value string
}

type pattern struct {
	key      string
	name     string
	segments []segment
}

// Router matches paths against a fixed set of keys.
type Router struct {
	patterns []pattern
	byKey    map[string]*pattern
}

// New builds a router for the given route keys.
func New(keys []string) *Router {
	r := &Router{byKey: make(map[string]*pattern, len(keys))}
	seen := make(map[string]bool, len(keys))

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if IsNotFound(key) {
			continue
		}
		p := parse(key)
		if seen[p.name] {
			continue
		}
		seen[p.name] = true
		r.patterns = append(r.patterns, p)
	}

	sort.SliceStable(r.patterns, func(i, j int) bool {
		return before(r.patterns[i].segments, r.patterns[j].segments)
	})
	for i := range r.patterns {
		r.byKey[r.patterns[i].key] = &r.patterns[i]
	}
	return r
}

// IsNotFound reports whether key names the root-level not-found page.
func IsNotFound(key string) bool {
	return !strings.Contains(key, "/") && trimExt(key) == NotFoundKey
}

// PatternName returns the URL pattern for a key, e.g. "blog/[slug].go"
// becomes "/blog/[slug]".
func PatternName(key string) string {
	return parse(key).name
}

func trimExt(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

func parse(key string) pattern {
	p := pattern{key: key}
	parts := strings.Split(trimExt(key), "/")
	if parts[len(parts)-1] == "index" {
		parts = parts[:len(parts)-1]
	}
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		names = append(names, part)
		p.segments = append(p.segments, parseSegment(part))
	}
	p.name = "/" + strings.Join(names, "/")
	return p
}

func parseSegment(part string) segment {
	switch {
	case strings.HasPrefix(part, "[[...") && strings.HasSuffix(part, "]]"):
		return segment{kind: segmentOptionalCatchAll, value: part[5 : len(part)-2]}
	case strings.HasPrefix(part, "[...") && strings.HasSuffix(part, "]"):
		return segment{kind: segmentCatchAll, value: part[4 : len(part)-1]}
	case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]"):
		return segment{kind: segmentDynamic, value: part[1 : len(part)-1]}
	default:
		return segment{kind: segmentStatic, value: part}
	}
}

// before orders patterns by precedence. A pattern that ends first wins over
// one that continues, so /shop beats /shop/[[...path]].
func before(a, b []segment) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].kind != b[i].kind {
			return a[i].kind < b[i].kind
		}
		if a[i].kind == segmentStatic && a[i].value != b[i].value {
			return a[i].value < b[i].value
		}
	}
	return len(a) < len(b)
}

// Match returns the highest-precedence route for pathname. pathname must
// start with "/" and carry no query string; its segments are percent-decoded
// into the returned params.
func (r *Router) Match(pathname string) (route.Match, bool) {
	parts := splitPath(pathname)
	for i := range r.patterns {
		p := &r.patterns[i]
		if params, ok := p.match(parts); ok {
			return route.Match{
				Pattern:  p.key,
				Name:     p.name,
				Pathname: pathname,
				Params:   params,
			}, true
		}
	}
	return route.Match{}, false
}

func splitPath(pathname string) []string {
	trimmed := strings.Trim(pathname, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (p *pattern) match(parts []string) (map[string]string, bool) {
	params := make(map[string]string)
	for i, seg := range p.segments {
		switch seg.kind {
		case segmentStatic:
			if i >= len(parts) || parts[i] != seg.value {
				return nil, false
			}
		case segmentDynamic:
			if i >= len(parts) || parts[i] == "" {
				return nil, false
			}
			params[seg.value] = unescape(parts[i])
		case segmentCatchAll, segmentOptionalCatchAll:
			rest := parts[min(i, len(parts)):]
			if seg.kind == segmentCatchAll && len(rest) == 0 {
				return nil, false
			}
			if len(rest) > 0 {
				decoded := make([]string, len(rest))
				for j, s := range rest {
					decoded[j] = unescape(s)
				}
				params[seg.value] = strings.Join(decoded, "/")
			}
			return params, true
		}
	}
	if len(parts) != len(p.segments) {
		return nil, false
	}
	return params, true
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// Routes returns the route keys in precedence order.
func (r *Router) Routes() []string {
	keys := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		keys[i] = p.key
	}
	return keys
}

// IsDynamic reports whether the key's pattern has any parameters.
func (r *Router) IsDynamic(key string) bool {
	p, ok := r.byKey[key]
	if !ok {
		return false
	}
	for _, seg := range p.segments {
		if seg.kind != segmentStatic {
			return true
		}
	}
	return false
}
