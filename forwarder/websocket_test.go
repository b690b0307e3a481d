package forwarder

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/ecusim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialLiveStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketForwarder(t *testing.T) {
	ws := NewWebSocketForwarder(&WebSocketConfig{})
	assert.Equal(t, "/", ws.Config.Path)

	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	first := dialLiveStream(t, url)
	defer first.Close()
	second := dialLiveStream(t, url)
	defer second.Close()
	assert.Eventually(t, func() bool {
		return ws.ClientCount() == 2
	}, time.Second, time.Millisecond)

	data := sample()
	require.NoError(t, ws.Forward(&data, &ecusim.LiveData{}))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		msgType, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)

		received := ecusim.LiveData{}
		require.NoError(t, json.Unmarshal(msg, &received))
		assert.Equal(t, data, received)
	}

	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool {
		return ws.ClientCount() == 1
	}, time.Second, time.Millisecond)

	// forwarding with a departed client is fine
	assert.NoError(t, ws.Forward(&data, &data))
}

func TestWebSocketForwarderNoClients(t *testing.T) {
	ws := NewWebSocketForwarder(&WebSocketConfig{Path: "/live"})
	data := sample()
	assert.NoError(t, ws.Forward(&data, &ecusim.LiveData{}))
	assert.Equal(t, 0, ws.ClientCount())
}

func TestWebSocketForwarderStart(t *testing.T) {
	// reserve a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ws := NewWebSocketForwarder(&WebSocketConfig{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- ws.Start(ctx)
	}()

	var conn *websocket.Conn
	assert.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 10*time.Millisecond)
	require.NotNil(t, conn)
	defer conn.Close()
	assert.Eventually(t, func() bool {
		return ws.ClientCount() == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, context.Canceled, <-errChan)

	// server side closed the client
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
