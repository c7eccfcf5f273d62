package www

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stoppedHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	return h
}

func dial(t *testing.T, url string) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebsocketConnectAfterHubStopped(t *testing.T) {
	s := newTestServer(&stubCoordinator{snapshot: snapshot(), has: true}, &stubStore{})
	s.hub = stoppedHub(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv.URL+"/ws")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ne net.Error
	assert.False(t, errors.As(err, &ne) && ne.Timeout(), "connection is closed instead of left hanging")
}

func TestWritePumpReturnsAfterHubStopped(t *testing.T) {
	hub := stoppedHub(t)
	returned := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(hub, w, r, "test")
		if err != nil {
			return
		}
		close(client.send)
		client.WritePump()
		close(returned)
	}))
	defer srv.Close()

	dial(t, srv.URL)

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("write pump blocked on unregister")
	}
}
