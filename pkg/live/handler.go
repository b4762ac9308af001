package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vango-dev/state/pkg/state"
)

const maxBodyBytes = 1 << 20

// Handler serves one store.
type Handler[T any] struct {
	name     string
	store    state.Store[T]
	opts     options
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewHandler creates a handler for store. name labels frames, logs and
// metrics.
func NewHandler[T any](name string, store state.Store[T], opts ...Option) *Handler[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler[T]{
		name:  name,
		store: store,
		opts:  o,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     o.checkOrigin,
		},
		conns: make(map[*conn]struct{}),
	}
}

// Routes returns a router for the handler, ready to be mounted:
//
//	r.Mount("/todo", todoHandler.Routes())
func (h *Handler[T]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.serveGet)
	r.Put("/", h.servePut)
	r.Post("/reset", h.serveReset)
	r.Get("/ws", h.serveWS)
	return r
}

// frame snapshots the store. The version is read first so a frame never
// claims a newer version than its value.
func (h *Handler[T]) frame() (Frame, error) {
	version := h.store.Version()
	value, ok := h.store.Value()
	return snapshot(h.name, value, ok, version)
}

func (h *Handler[T]) serveGet(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (h *Handler[T]) servePut(w http.ResponseWriter, r *http.Request) {
	if h.opts.readOnly {
		h.writeError(w, http.StatusMethodNotAllowed, errors.New("store is read-only"))
		return
	}

	var value T
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&value); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if err := h.store.Set(r.Context(), value); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.serveGet(w, r)
}

func (h *Handler[T]) serveReset(w http.ResponseWriter, r *http.Request) {
	if h.opts.readOnly {
		h.writeError(w, http.StatusMethodNotAllowed, errors.New("store is read-only"))
		return
	}
	if err := h.store.Reset(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.serveGet(w, r)
}

func (h *Handler[T]) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.opts.logger.Error("live request failed", "store", h.name, "error", err)
	}
	writeJSON(w, status, Frame{Store: h.name, Value: null, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// conn is one WebSocket client.
type conn struct {
	ws      *websocket.Conn
	timeout time.Duration

	writeMu sync.Mutex

	// renderCh holds at most one pending "store changed" signal. Signals
	// that arrive while one is pending coalesce into it.
	renderCh chan struct{}
	done     chan struct{}
}

func newConn(ws *websocket.Conn, timeout time.Duration) *conn {
	return &conn{
		ws:       ws,
		timeout:  timeout,
		renderCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (c *conn) send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.timeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.ws.WriteJSON(f)
}

// signal marks the store as changed without blocking the writer of the
// store.
func (c *conn) signal() {
	select {
	case c.renderCh <- struct{}{}:
	default:
	}
}

func (h *Handler[T]) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.opts.logger.Debug("websocket upgrade failed", "store", h.name, "error", err)
		return
	}
	c := newConn(ws, h.opts.writeTimeout)
	h.track(c)
	defer h.untrack(c)

	sub := h.store.Subscribe(func(T) error {
		c.signal()
		return nil
	}, state.WithEmpty(c.signal))
	defer sub.Detach()

	go h.writeLoop(c)
	defer close(c.done)

	h.readLoop(r, c)
}

// writeLoop sends the latest snapshot each time the store changes. A slow
// client only delays its own frames, and it skips straight to the newest
// value when it catches up.
func (h *Handler[T]) writeLoop(c *conn) {
	for {
		select {
		case <-c.done:
			return
		case <-c.renderCh:
		}

		frame, err := h.frame()
		if err != nil {
			h.opts.logger.Warn("live render failed, closing connection", "store", h.name, "error", err)
			if h.opts.metrics != nil {
				h.opts.metrics.RenderFailed(h.name)
			}
			_ = c.ws.Close()
			return
		}
		if err := c.send(frame); err != nil {
			h.opts.logger.Debug("live send failed, closing connection", "store", h.name, "error", err)
			_ = c.ws.Close()
			return
		}
	}
}

// readLoop applies inbound values until the connection closes.
func (h *Handler[T]) readLoop(r *http.Request, c *conn) {
	c.ws.SetReadLimit(maxBodyBytes)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if h.opts.readOnly {
			_ = c.send(Frame{Store: h.name, Value: null, Error: "store is read-only"})
			continue
		}

		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			_ = c.send(Frame{Store: h.name, Value: null, Error: fmt.Sprintf("decode message: %v", err)})
			continue
		}
		if err := h.store.Set(r.Context(), value); err != nil {
			h.opts.logger.Warn("live write failed", "store", h.name, "error", err)
			_ = c.send(Frame{Store: h.name, Value: null, Error: err.Error()})
		}
	}
}

func (h *Handler[T]) track(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	if h.opts.metrics != nil {
		h.opts.metrics.ConnectionOpened(h.name)
	}
}

func (h *Handler[T]) untrack(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.ws.Close()
	if ok && h.opts.metrics != nil {
		h.opts.metrics.ConnectionClosed(h.name)
	}
}

// Connections returns the number of open WebSocket connections.
func (h *Handler[T]) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close closes all WebSocket connections.
func (h *Handler[T]) Close() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	}
}
