package server

import (
	"sync/atomic"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/monitoring"
	gws "github.com/redraskal/gateway/internal/websocket"
	"github.com/redraskal/gateway/pkg/html"
)

// ReloadTopic is the hub topic every dev-mode socket subscribes to.
const ReloadTopic = "reload"

// Runtime is the process-wide state shared by the dispatcher, the WebSocket
// coordinator and the reload loop.
type Runtime struct {
	env     config.Environment
	reloads atomic.Int64
	hub     *gws.Hub
	metrics *monitoring.Metrics
}

// NewRuntime creates the runtime for one process. reloads is the number of
// dev restarts that preceded this boot.
func NewRuntime(env config.Environment, reloads int64, metrics *monitoring.Metrics) *Runtime {
	rt := &Runtime{env: env, hub: gws.NewHub(), metrics: metrics}
	rt.reloads.Store(reloads)
	return rt
}

func (rt *Runtime) Env() config.Environment      { return rt.env }
func (rt *Runtime) IsDev() bool                  { return rt.env.IsDev() }
func (rt *Runtime) Hub() *gws.Hub                { return rt.hub }
func (rt *Runtime) Metrics() *monitoring.Metrics { return rt.metrics }

// Reloads returns the number of dev restarts before this boot.
func (rt *Runtime) Reloads() int64 { return rt.reloads.Load() }

// BroadcastReload asks every dev-mode page to reload and returns how many
// sockets the message was queued for.
func (rt *Runtime) BroadcastReload() int {
	rt.metrics.RecordReload()
	return rt.hub.Publish(ReloadTopic, html.ReloadMessage)
}
