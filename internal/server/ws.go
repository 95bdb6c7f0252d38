package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	gws "github.com/redraskal/gateway/internal/websocket"
	"github.com/redraskal/gateway/pkg/html"
	"github.com/redraskal/gateway/pkg/route"
)

// serveSocket upgrades the request and runs the connection until it closes.
// Callbacks run on this goroutine in order: Open, Message for each frame,
// then Close.
func (d *Dispatcher) serveSocket(w http.ResponseWriter, r *http.Request, req *request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{html.ReconnectProtocol},
		OriginPatterns: d.opts.AllowedOrigins,
	})
	if err != nil {
		req.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "path", req.rc.Pathname)
		return
	}

	var cb route.WebSocket
	if req.entry != nil && req.entry.Socket != nil {
		cb = *req.entry.Socket
	}

	ctx := r.Context()
	conn := gws.NewConn(c, d.rt.Hub(), gws.ConnOptions{
		Header:      r.Header.Clone(),
		Pathname:    req.rc.Pathname,
		Subprotocol: c.Subprotocol(),
	})
	conn.Start(ctx)

	d.metrics.SocketOpened()
	defer d.metrics.SocketClosed()

	d.open(ctx, req, conn, cb)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			code, reason := closeStatus(err)
			if cb.Close != nil {
				d.callback(ctx, req, func() { cb.Close(ctx, conn, code, reason) })
			}
			_ = conn.Close(code, reason)
			return
		}
		if cb.Message != nil {
			d.callback(ctx, req, func() { cb.Message(ctx, conn, typ, data) })
		}
	}
}

// open subscribes dev sockets to reloads. A reconnecting dev client after a
// restart is told to reload instead of being handed to the route.
func (d *Dispatcher) open(ctx context.Context, req *request, conn *gws.Conn, cb route.WebSocket) {
	if d.rt.IsDev() {
		conn.Subscribe(ReloadTopic)
		if d.rt.Reloads() > 0 && conn.Subprotocol() == html.ReconnectProtocol {
			_ = conn.Send(ctx, html.ReloadMessage)
			return
		}
	}
	if cb.Open != nil {
		d.callback(ctx, req, func() { cb.Open(ctx, conn) })
	}
}

// callback runs fn, logging a panic instead of dropping the connection.
func (d *Dispatcher) callback(ctx context.Context, req *request, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			d.metrics.RecordPanic()
			d.errs.classify(ctx, req.rc.Pathname, route.Recovered(p))
		}
	}()
	fn()
}

// closeStatus extracts the peer's close frame, or 1006 when there was none.
func closeStatus(err error) (int, string) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return int(ce.Code), ce.Reason
	}
	return int(websocket.StatusAbnormalClosure), ""
}
