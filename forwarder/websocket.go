package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/ecusim"
	"github.com/jd3nn1s/ecusim/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	clientBufferSize = 4
	writeWait        = 5 * time.Second
	shutdownWait     = 5 * time.Second
)

type WebSocketConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
	Path string `toml:"path" yaml:"path"`
}

// WebSocketForwarder streams every sample to connected live dashboard clients.
type WebSocketForwarder struct {
	Config *WebSocketConfig

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte
}

func NewWebSocketForwarder(config *WebSocketConfig) *WebSocketForwarder {
	if config.Path == "" {
		config.Path = "/"
	}
	return &WebSocketForwarder{
		Config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

func (ws *WebSocketForwarder) Name() string {
	return "websocket"
}

func (ws *WebSocketForwarder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.Config.Path, ws.serve)
	return mux
}

func (ws *WebSocketForwarder) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ws.Config.Addr,
		Handler: ws.Handler(),
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	log.WithField("addr", ws.Config.Addr).
		WithField("path", ws.Config.Path).
		Info("live stream listening")

	select {
	case err := <-errChan:
		return errors.Wrap(err, "live stream server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("unable to shut down live stream server")
	}
	// hijacked connections are not closed by Shutdown
	ws.closeClients()
	return ctx.Err()
}

func (ws *WebSocketForwarder) Forward(newData *ecusim.LiveData, prevData *ecusim.LiveData) error {
	msg, err := json.Marshal(newData)
	if err != nil {
		return errors.Wrap(err, "unable to encode telemetry")
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for conn, send := range ws.clients {
		select {
		case send <- msg:
		default:
			log.WithField("remote", conn.RemoteAddr()).Debug("live stream client too slow, dropping sample")
		}
	}
	return nil
}

func (ws *WebSocketForwarder) ClientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocketForwarder) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("unable to upgrade live stream connection")
		return
	}
	send := ws.add(conn)
	log.WithField("remote", conn.RemoteAddr()).Info("live stream client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.writeLoop(conn, send)
	}()

	// clients never send anything, reading only detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	ws.remove(conn)
	<-done
	_ = conn.Close()
	log.WithField("remote", conn.RemoteAddr()).Info("live stream client disconnected")
}

func (ws *WebSocketForwarder) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.WithField("err", err).Debug("unable to write to live stream client")
			// unblocks the reader in serve
			_ = conn.Close()
			return
		}
	}
}

func (ws *WebSocketForwarder) add(conn *websocket.Conn) chan []byte {
	send := make(chan []byte, clientBufferSize)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.clients[conn] = send
	metrics.WebSocketClients.Set(float64(len(ws.clients)))
	return send
}

func (ws *WebSocketForwarder) remove(conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if send, ok := ws.clients[conn]; ok {
		delete(ws.clients, conn)
		close(send)
	}
	metrics.WebSocketClients.Set(float64(len(ws.clients)))
}

func (ws *WebSocketForwarder) closeClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for conn := range ws.clients {
		_ = conn.Close()
	}
}
