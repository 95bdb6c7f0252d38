package server

import (
	"net/http"
	"strings"
)

const jsonSuffix = ".json"

// RequestContext is what the dispatcher knows about one request before any
// route code runs.
type RequestContext struct {
	RawURL string
	// Path is the request path as sent, still percent-encoded.
	Path string
	// Pathname is Path without a trailing .json suffix. Routes are matched
	// against it.
	Pathname  string
	RawQuery  string
	WantsJSON bool
	// Upgrade reports a WebSocket upgrade request.
	Upgrade bool
}

const (
	scanAuthority = iota
	scanPath
	scanQuery
)

// BuildContext parses rawURL in a single pass. rawURL may be origin-form
// ("/a/b?x=1") or absolute ("http://host/a/b?x=1"); in the absolute case the
// path starts at the third slash.
func BuildContext(rawURL string, header http.Header) RequestContext {
	rc := RequestContext{RawURL: rawURL}

	state := scanPath
	if rawURL != "" && rawURL[0] != '/' {
		state = scanAuthority
	}
	slashes := 0
	pathStart, pathEnd := 0, -1
	queryStart, queryEnd := -1, -1

scan:
	for i := 0; i < len(rawURL); i++ {
		c := rawURL[i]
		switch state {
		case scanAuthority:
			switch {
			case c == '/':
				slashes++
				if slashes == 3 {
					pathStart, state = i, scanPath
				}
			case c == '?' && slashes >= 2:
				pathStart, pathEnd = i, i
				queryStart, state = i+1, scanQuery
			case c == '#' && slashes >= 2:
				pathStart, pathEnd = i, i
				break scan
			}
		case scanPath:
			switch c {
			case '?':
				pathEnd = i
				queryStart, state = i+1, scanQuery
			case '#':
				pathEnd = i
				break scan
			}
		case scanQuery:
			if c == '#' {
				queryEnd = i
				break scan
			}
		}
	}

	switch {
	case state == scanAuthority && pathEnd < 0:
		// No path at all, e.g. "http://host".
	case pathEnd < 0:
		rc.Path = rawURL[pathStart:]
	default:
		rc.Path = rawURL[pathStart:pathEnd]
	}
	if rc.Path == "" {
		rc.Path = "/"
	}
	if queryStart >= 0 {
		if queryEnd < 0 {
			queryEnd = len(rawURL)
		}
		rc.RawQuery = rawURL[queryStart:queryEnd]
	}

	rc.Pathname = rc.Path
	if strings.HasSuffix(rc.Pathname, jsonSuffix) {
		rc.Pathname = rc.Pathname[:len(rc.Pathname)-len(jsonSuffix)]
		rc.WantsJSON = true
		if rc.Pathname == "" {
			rc.Pathname = "/"
		}
	}

	if header != nil {
		if header.Get("Accept") == "application/json" {
			rc.WantsJSON = true
		}
		rc.Upgrade = headerHasToken(header, "Connection", "upgrade") &&
			strings.EqualFold(strings.TrimSpace(header.Get("Upgrade")), "websocket")
	}
	return rc
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
