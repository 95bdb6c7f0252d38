package html

import "strings"

// DefaultHead is prepended to every page head.
const DefaultHead HTML = `<meta charset="UTF-8" /><meta name="viewport" content="width=device-width, initial-scale=1">`

// ReloadMessage is the WebSocket payload that asks a page to reload.
const ReloadMessage = "reload"

// ReconnectProtocol is the WebSocket sub-protocol a page offers once it has
// been connected before, so the server can tell a reconnect from a first visit.
const ReconnectProtocol = "reconnect"

// reloadScript reconnects with exponential backoff and reloads on ReloadMessage.
// Listeners added by page scripts are replayed onto every new socket.
const reloadScript = `<script>(function(){` +
	`var delay=1000,again=false,listeners=[],ws;` +
	`function connect(){` +
	`ws=new WebSocket("ws"+location.href.slice(4),again?"` + ReconnectProtocol + `":undefined);again=true;` +
	`listeners.forEach(function(l){ws.addEventListener.apply(ws,l)});` +
	`ws.onopen=function(){delay=1000};` +
	`ws.onmessage=function(e){if(e.data=="` + ReloadMessage + `"){location.reload()}};` +
	`ws.onclose=function(){setTimeout(function(){delay*=2;connect()},delay)};` +
	`window.ws=ws}` +
	`connect();` +
	`window.gatewaySocket=function(type,fn,opts){listeners.push([type,fn,opts]);ws.addEventListener(type,fn,opts)}` +
	`})()</script>`

// Page wraps head and body in the document skeleton. DefaultHead is always
// emitted first inside <head>. When liveReload is set, the development
// reload client is injected at the top of <body>.
func Page(head, body HTML, liveReload bool) string {
	var b strings.Builder
	b.Grow(len(DefaultHead) + len(head) + len(body) + len(reloadScript) + 64)
	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(string(DefaultHead))
	b.WriteString(string(head))
	b.WriteString(`</head><body>`)
	if liveReload {
		b.WriteString(reloadScript)
	}
	b.WriteString(string(body))
	b.WriteString(`</body></html>`)
	return b.String()
}
