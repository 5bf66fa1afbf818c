package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second // three missed pings
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 4 * 1024
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     checkLoopbackOrigin,
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// checkLoopbackOrigin accepts non-browser clients (no Origin header) and
// pages served from a loopback host, so a remote web page cannot read the
// feed through the user's browser.
func checkLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return isLoopbackHost(u.Hostname())
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address and must name a loopback host.
	// "127.0.0.1:0" picks a free port.
	Addr string
}

// Hub serves a single view client. A new connection replaces the current
// one, so a restarted view simply reconnects.
//
// Lock ordering: writeMu -> mu. gorilla/websocket writes are not
// concurrency-safe, so every WriteMessage holds writeMu.
type Hub struct {
	opts HubOptions

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed map[string]bool

	writeMu sync.Mutex
	seq     atomic.Uint64

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
)

type subscribeMsg struct {
	Action  string   `json:"action"`
	Domains []string `json:"domains"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts, subscribed: make(map[string]bool)}
}

// Start listens and serves in the background. Call it once; stop with Stop.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("wsserver: already started")
	}
	host, _, err := net.SplitHostPort(h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen address %q: %w", h.opts.Addr, err)
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("wsserver: listen address %q is not a loopback address", h.opts.Addr)
	}
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://%s/ws", ln.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[ERROR-WS] server error", "error", serveErr)
		}
	}()
	slog.Info("[INFO-WS] change feed started", "url", h.url)
	return nil
}

// Stop closes the client and shuts the server down. Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.subscribed = make(map[string]bool)
		h.mu.Unlock()
		if conn != nil {
			h.closeConn(conn, "hub stop")
		}
		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		slog.Debug("[DEBUG-WS] change feed stopped")
	})
	return stopErr
}

// URL is the client endpoint, empty before Start.
func (h *Hub) URL() string { return h.url }

func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// Broadcast sends a change notification to the client, filtered by its
// subscriptions. It returns the sequence number assigned, which increases on
// every call whether or not a frame was delivered, so clients can detect
// gaps after a reconnect.
func (h *Hub) Broadcast(source string, domains []string) uint64 {
	seq := h.seq.Add(1)
	if len(domains) == 0 {
		return seq
	}

	h.mu.RLock()
	conn := h.conn
	var deliver []string
	if len(h.subscribed) == 0 {
		deliver = domains
	} else {
		for _, d := range domains {
			if h.subscribed[d] {
				deliver = append(deliver, d)
			}
		}
	}
	h.mu.RUnlock()

	if conn == nil || len(deliver) == 0 {
		slog.Debug("[DEBUG-WS] change not delivered", "seq", seq, "connected", conn != nil)
		return seq
	}
	frame, err := EncodeChangeEvent(ChangeEvent{Seq: seq, Source: source, Domains: deliver})
	if err != nil {
		slog.Warn("[WARN-WS] failed to encode change event", "error", err)
		return seq
	}
	if err := h.write(conn, websocket.TextMessage, frame); err != nil {
		slog.Warn("[WARN-WS] write failed, closing connection", "seq", seq, "error", err)
	}
	return seq
}

// write serializes a frame write under a deadline. Any failure drops the
// connection; the client must reconnect.
func (h *Hub) write(conn *websocket.Conn, messageType int, payload []byte) error {
	h.writeMu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err == nil {
		err = conn.WriteMessage(messageType, payload)
		if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil {
			slog.Debug("[DEBUG-WS] clear write deadline failed", "error", clearErr)
		}
	}
	h.writeMu.Unlock()

	if err != nil {
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write failure")
	}
	return err
}

func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return false
	}
	h.conn = nil
	h.subscribed = make(map[string]bool)
	return true
}

// closeConn tolerates double close; gorilla returns an error and nothing else.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if err := conn.Close(); err != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[WARN-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		h.closeConn(conn, "initial read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.subscribed = make(map[string]bool)
	h.mu.Unlock()
	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}
	slog.Debug("[DEBUG-WS] view connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[ERROR-WS] connection handler panicked", "panic", rec, "stack", string(debug.Stack()))
		}
		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Debug("[DEBUG-WS] view disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[WARN-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var sub subscribeMsg
		if jsonErr := json.Unmarshal(msg, &sub); jsonErr != nil {
			h.sendError(conn, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		h.handleSubscription(conn, sub)
	}
}

func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				slog.Debug("[DEBUG-WS] ping failed, connection likely dead", "error", err)
				return
			}
		}
	}
}

func (h *Hub) handleSubscription(conn *websocket.Conn, msg subscribeMsg) {
	h.mu.Lock()
	if h.conn != conn {
		h.mu.Unlock()
		return
	}
	var unknownAction bool
	switch msg.Action {
	case subscribeAction:
		for _, d := range msg.Domains {
			if d != "" {
				h.subscribed[d] = true
			}
		}
	case unsubscribeAction:
		for _, d := range msg.Domains {
			delete(h.subscribed, d)
		}
	default:
		unknownAction = true
	}
	h.mu.Unlock()

	if unknownAction {
		h.sendError(conn, fmt.Sprintf("unknown action %q", msg.Action))
	}
}

func (h *Hub) sendError(conn *websocket.Conn, message string) {
	payload, err := json.Marshal(errorMsg{Type: "error", Message: message})
	if err != nil {
		return
	}
	if err := h.write(conn, websocket.TextMessage, payload); err != nil {
		slog.Debug("[DEBUG-WS] failed to send error to client", "error", err)
	}
}
