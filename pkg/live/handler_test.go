package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/state/pkg/instrument"
	"github.com/vango-dev/state/pkg/state"
)

type todo struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/todo", h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/todo/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_Get(t *testing.T) {
	store := state.New([]todo{{Text: "buy milk"}})
	srv := newServer(t, NewHandler[[]todo]("todo", store).Routes())

	resp, err := http.Get(srv.URL + "/todo")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	var f Frame
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if f.Store != "todo" || f.Version != 1 || !f.Initialized {
		t.Fatalf("frame = %+v", f)
	}
	got, ok, err := Decode[[]todo](f)
	if err != nil || !ok || len(got) != 1 || got[0].Text != "buy milk" {
		t.Fatalf("Decode() = %+v, %v, %v", got, ok, err)
	}
}

func TestHandler_GetEmptyStore(t *testing.T) {
	empty := state.Define[int](nil)
	srv := newServer(t, NewHandler[int]("todo", empty).Routes())

	resp, err := http.Get(srv.URL + "/todo")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	var f Frame
	_ = json.NewDecoder(resp.Body).Decode(&f)
	if f.Initialized || string(f.Value) != "null" {
		t.Fatalf("frame = %+v, want uninitialized null value", f)
	}
}

func TestHandler_Put(t *testing.T) {
	store := state.New([]todo{})
	srv := newServer(t, NewHandler[[]todo]("todo", store).Routes())

	body := bytes.NewBufferString(`[{"text":"pay rent","checked":true}]`)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/todo", body)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got, _ := store.Value()
	if len(got) != 1 || !got[0].Checked {
		t.Fatalf("Value() = %+v", got)
	}
	if store.Version() != 2 {
		t.Fatalf("Version() = %d, want 2", store.Version())
	}
}

func TestHandler_PutErrors(t *testing.T) {
	fail := errors.New("storage offline")
	store := state.New(1)
	failing := state.New(1, state.WithPersist(func(ctx context.Context, v int) (int, error) {
		if v == 1 {
			return v, nil
		}
		return 0, fail
	}))

	tests := []struct {
		name   string
		store  state.Store[int]
		opts   []Option
		body   string
		status int
	}{
		{"bad json", store, nil, `{`, http.StatusBadRequest},
		{"read only", store, []Option{ReadOnly()}, `2`, http.StatusMethodNotAllowed},
		{"persist failure", failing, nil, `2`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, NewHandler[int]("n", tt.store, tt.opts...).Routes())
			req, _ := http.NewRequest(http.MethodPut, srv.URL+"/todo", strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("PUT error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var f Frame
			_ = json.NewDecoder(resp.Body).Decode(&f)
			if f.Error == "" {
				t.Fatal("expected error in frame")
			}
		})
	}
	if v, _ := failing.Value(); v != 1 {
		t.Fatalf("failing store value = %d, want 1", v)
	}
}

func TestHandler_Reset(t *testing.T) {
	store := state.New(5, state.WithInitializer(func(context.Context) (int, error) {
		return 0, nil
	}))
	srv := newServer(t, NewHandler[int]("n", store).Routes())

	resp, err := http.Post(srv.URL+"/todo/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if v, _ := store.Value(); v != 0 {
		t.Fatalf("Value() = %d, want 0", v)
	}
}

func TestHandler_WebSocketStream(t *testing.T) {
	store := state.New("hello")
	h := NewHandler[string]("greeting", store)
	srv := newServer(t, h.Routes())

	conn := dial(t, srv)
	first := readFrame(t, conn)
	if v, _, _ := Decode[string](first); v != "hello" || first.Version != 1 {
		t.Fatalf("first frame = %+v", first)
	}

	if err := store.Set(context.Background(), "goodbye"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	second := readFrame(t, conn)
	if v, _, _ := Decode[string](second); v != "goodbye" || second.Version != 2 {
		t.Fatalf("second frame = %+v", second)
	}

	if h.Connections() != 1 || store.Subscribers() != 1 {
		t.Fatalf("connections = %d, subscribers = %d", h.Connections(), store.Subscribers())
	}
	_ = conn.Close()
	waitFor(t, func() bool { return h.Connections() == 0 && store.Subscribers() == 0 })
}

func TestHandler_WebSocketWrites(t *testing.T) {
	store := state.New(0)
	srv := newServer(t, NewHandler[int]("n", store).Routes())

	conn := dial(t, srv)
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("42")); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
	f := readFrame(t, conn)
	if v, _, _ := Decode[int](f); v != 42 {
		t.Fatalf("frame after write = %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not a number")); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
	if f := readFrame(t, conn); f.Error == "" {
		t.Fatalf("expected error frame, got %+v", f)
	}
	if v, _ := store.Value(); v != 42 {
		t.Fatalf("Value() = %d, want 42", v)
	}
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := instrument.NewMetrics(instrument.WithRegistry(reg))
	store := state.New(1)
	h := NewHandler[int]("n", store, WithMetrics(m))
	srv := newServer(t, h.Routes())

	conn := dial(t, srv)
	readFrame(t, conn)
	waitFor(t, func() bool { return h.Connections() == 1 })
	if got := gaugeValue(t, reg, "state_live_connections"); got != 1 {
		t.Fatalf("live connections = %v, want 1", got)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return h.Connections() == 0 })
	if got := gaugeValue(t, reg, "state_live_connections"); got != 0 {
		t.Fatalf("live connections after close = %v, want 0", got)
	}
}

func TestHandler_StalledClientDoesNotBlockWriters(t *testing.T) {
	store := state.New("")
	h := NewHandler[string]("blob", store, WithWriteTimeout(5*time.Second))
	srv := newServer(t, h.Routes())

	// This client never reads, so the server's socket buffers fill up.
	dial(t, srv)
	waitFor(t, func() bool { return h.Connections() == 1 })

	blob := strings.Repeat("x", 1<<20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 32; i++ {
			_ = store.Set(context.Background(), blob+strconv.Itoa(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked behind a client that does not read")
	}
	if v, _ := store.Value(); v != blob+"31" {
		t.Fatalf("store holds %d bytes, want the last write", len(v))
	}
}

func TestHandler_CoalescedFramesEndOnLatest(t *testing.T) {
	store := state.New(0)
	srv := newServer(t, NewHandler[int]("n", store).Routes())

	conn := dial(t, srv)
	readFrame(t, conn)
	for i := 1; i <= 100; i++ {
		_ = store.Set(context.Background(), i)
	}

	last := 0
	for last != 100 {
		f := readFrame(t, conn)
		v, _, err := Decode[int](f)
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if v < last {
			t.Fatalf("frame %d after %d", v, last)
		}
		last = v
	}
}

func TestHandler_UnencodableValueClosesConnection(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := instrument.NewMetrics(instrument.WithRegistry(reg))
	store := state.New(make(chan int))
	h := NewHandler[chan int]("ch", store, WithMetrics(m))
	srv := newServer(t, h.Routes())

	conn := dial(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close")
	}
	waitFor(t, func() bool { return h.Connections() == 0 })
	if got := counterValue(t, reg, "state_render_failures_total"); got != 1 {
		t.Fatalf("render failures = %v, want 1", got)
	}
}

func TestHandler_CloseDisconnectsClients(t *testing.T) {
	store := state.New(1)
	h := NewHandler[int]("n", store)
	srv := newServer(t, h.Routes())

	conn := dial(t, srv)
	readFrame(t, conn)
	h.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("ReadMessage() error = %v, want going-away close", err)
	}
	waitFor(t, func() bool { return store.Subscribers() == 0 })
}

func TestWatch(t *testing.T) {
	store := state.New(1)
	srv := newServer(t, NewHandler[int]("n", store).Routes())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/todo/ws"

	var seen []int
	done := make(chan error, 1)
	go func() {
		done <- Watch(context.Background(), url, nil, func(f Frame) error {
			v, _, err := Decode[int](f)
			if err != nil {
				return err
			}
			seen = append(seen, v)
			if v == 3 {
				return ErrStop
			}
			return nil
		})
	}()

	waitFor(t, func() bool { return store.Subscribers() == 1 })
	_ = store.Set(context.Background(), 2)
	_ = store.Set(context.Background(), 3)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return")
	}
	// Frames coalesce, so 2 may be skipped, but they never go backwards.
	if len(seen) < 2 || seen[0] != 1 || seen[len(seen)-1] != 3 {
		t.Fatalf("seen = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("seen = %v, frames went backwards", seen)
		}
	}
}
