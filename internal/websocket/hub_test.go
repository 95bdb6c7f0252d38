package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraskal/gateway/pkg/route"
)

// testServer accepts connections, subscribes them to "news" and hands each
// Conn to the conns channel.
func testServer(t *testing.T, hub *Hub) (*httptest.Server, <-chan *Conn) {
	t.Helper()
	conns := make(chan *Conn, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"reconnect"}})
		if err != nil {
			return
		}
		conn := NewConn(c, hub, ConnOptions{
			Header:      r.Header,
			Pathname:    r.URL.Path,
			Subprotocol: c.Subprotocol(),
		})
		conn.Subscribe("news")
		conn.Start(r.Context())
		conns <- conn
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				conn.Close(int(websocket.StatusNormalClosure), "")
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func dial(t *testing.T, srv *httptest.Server, path string, protocols ...string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, &websocket.DialOptions{
		Subprotocols: protocols,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	return string(data)
}

func receive(t *testing.T, conns <-chan *Conn) *Conn {
	t.Helper()
	select {
	case c := <-conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	a := dial(t, srv, "/a")
	receive(t, conns)
	b := dial(t, srv, "/b")
	receive(t, conns)

	assert.Equal(t, 2, hub.Subscribers("news"))
	assert.Equal(t, 2, hub.Publish("news", "reload"))
	assert.Equal(t, "reload", readText(t, a))
	assert.Equal(t, "reload", readText(t, b))

	assert.Equal(t, 0, hub.Publish("other", "x"))
}

func TestConnPublishSkipsSender(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	a := dial(t, srv, "/a")
	sender := receive(t, conns)
	b := dial(t, srv, "/b")
	receive(t, conns)

	sender.Publish(context.Background(), "news", "hello")
	assert.Equal(t, "hello", readText(t, b))

	require.NoError(t, sender.Send(context.Background(), "direct"))
	assert.Equal(t, "direct", readText(t, a))
}

func TestConnMetadata(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	dial(t, srv, "/chat", "reconnect")
	conn := receive(t, conns)

	assert.Equal(t, "/chat", conn.Pathname())
	assert.Equal(t, "reconnect", conn.Subprotocol())
	assert.NotNil(t, conn.Header())

	assert.Nil(t, conn.Get("user"))
	conn.Set("user", "ada")
	assert.Equal(t, "ada", conn.Get("user"))
}

func TestConnCloseRemovesFromHub(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	client := dial(t, srv, "/")
	client.CloseRead(context.Background())
	conn := receive(t, conns)
	require.Equal(t, 1, hub.Connections())

	_ = conn.Close(int(websocket.StatusNormalClosure), "bye")
	assert.Equal(t, 0, hub.Connections())
	assert.Equal(t, 0, hub.Subscribers("news"))

	assert.ErrorIs(t, conn.Send(context.Background(), "late"), ErrClosed)
	assert.NoError(t, conn.Close(int(websocket.StatusNormalClosure), "again"))
}

func TestClientCloseUnsubscribes(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	client := dial(t, srv, "/")
	conn := receive(t, conns)
	require.NoError(t, client.Close(websocket.StatusNormalClosure, ""))

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed")
	}
	assert.Equal(t, 0, hub.Subscribers("news"))
}

func TestConnReadMessageTypes(t *testing.T) {
	received := make(chan route.MessageType, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConn(c, nil, ConnOptions{PingInterval: -1})
		conn.Start(r.Context())
		defer conn.Close(int(websocket.StatusNormalClosure), "")
		for i := 0; i < 2; i++ {
			typ, _, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			received <- typ
		}
	}))
	defer srv.Close()

	client := dial(t, srv, "/")
	ctx := context.Background()
	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("a")))
	require.NoError(t, client.Write(ctx, websocket.MessageBinary, []byte{1}))

	assert.Equal(t, route.MessageText, <-received)
	assert.Equal(t, route.MessageBinary, <-received)
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	c := &Conn{}

	hub.Subscribe(c, "a")
	hub.Subscribe(c, "b")
	assert.Equal(t, 1, hub.Connections())

	hub.Unsubscribe(c, "a")
	assert.Equal(t, 0, hub.Subscribers("a"))
	assert.Equal(t, 1, hub.Subscribers("b"))

	hub.Remove(c)
	assert.Equal(t, 0, hub.Connections())
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	srv, conns := testServer(t, hub)

	client := dial(t, srv, "/")
	client.CloseRead(context.Background())
	conn := receive(t, conns)

	require.NoError(t, hub.Shutdown(context.Background()))
	<-conn.Done()
	assert.Equal(t, 0, hub.Connections())
}
