// Package internal contains the implementation packages of the gateway CLI.
//
// # Package Organization
//
//   - config: settings from flags, GATEWAY_ environment variables and .gateway.yml
//   - errors: typed gateway errors with codes and context
//   - logging: structured slog-based logging
//   - registry: loads page files into the route table
//   - router: matches request paths to route keys
//   - server: HTTP dispatch, WebSocket upgrades and dev live reload
//   - websocket: connections and topic pub/sub
//   - watcher: debounced file system notifications
//   - build: pre-renders a site into static files
//   - scaffolding: generates new page files
//   - monitoring: Prometheus metrics
//   - version: build information
//
// # Request Flow
//
// The registry walks the pages directory and instantiates each registered
// page. The server's dispatcher builds a request context, asks the router
// for the matching key and runs the route's Data, Head and Body callbacks.
// A request that no route answers falls through to the public directory and
// then to the 404 page.
//
// In development the watcher drives live reload. Changes to known pages are
// broadcast to connected browsers; a page appearing or disappearing ends the
// process with exit status 8 so that the dev supervisor restarts it.
package internal
