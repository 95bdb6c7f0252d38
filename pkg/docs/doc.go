// Package docs describes gateway, a web server that maps a directory of Go
// page files to URL routes.
//
// # Usage
//
// A site is a Go main package that blank-imports its pages packages and
// hands control to the gateway command line:
//
//	// Create pages/index.go from the page template
//	gateway gen index
//
//	// Serve with live reload, rebuilding the site on restart
//	go run . dev --run "go run . serve"
//
//	// Serve in production
//	go run . serve
//
//	// Pre-render every reachable page into dist/
//	go run . build dist
//
// # Routes
//
// Each page file registers itself under its path relative to the pages
// directory:
//
//	pages/index.go         /
//	pages/about.go         /about
//	pages/blog/[slug].go   /blog/:slug
//	pages/docs/[...path].go /docs/* (one or more segments)
//	pages/404.go           rendered for unmatched requests
//
// Static segments outrank dynamic ones and dynamic ones outrank catch-alls.
// Appending .json to any URL, or sending Accept: application/json, returns
// the route's data instead of its page.
//
// A route implements any of route.DataLoader, route.Header, route.Bodier and
// route.WebSocketer. Wrapping the factory with route.Cache renders it once
// per process outside development.
//
// # Configuration
//
// Settings come from command-line flags, GATEWAY_* environment variables and
// an optional .gateway.yml, in that order of precedence:
//
//	hostname: 0.0.0.0
//	port: 3000
//	env: prod
//	cache_ttl: 3600
//	json_errors: true
//	max_body_size: 1048576
//	pages_dir: pages
//	public_dir: public
//	allowed_origins:
//	  - "app.example.com"
//	metrics_addr: ":9090"
//
// # Development
//
// In dev mode every page carries a live-reload script. Saving a page or a
// public file reloads connected browsers; adding or removing a page restarts
// the server through the exit status 8 handshake with "gateway dev".
package docs
