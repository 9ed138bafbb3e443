package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type frameLog struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameLog) handle(_ context.Context, frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, string(frame))
}

func (f *frameLog) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestClientDeliversFramesInOrderAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var authMu sync.Mutex
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authMu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		authMu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, frame := range []string{`{"action":"a"}`, `{"action":"b"}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	log := &frameLog{}
	client, err := New(Config{URL: wsURL(srv), Token: "secret", ReconnectMin: 10 * time.Millisecond, ReconnectMax: 20 * time.Millisecond}, log.handle)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitFor(t, func() bool { return client.Dials() >= 2 && len(log.snapshot()) >= 4 })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}

	frames := log.snapshot()
	if frames[0] != `{"action":"a"}` || frames[1] != `{"action":"b"}` {
		t.Fatalf("unexpected frame order: %v", frames)
	}
	authMu.Lock()
	defer authMu.Unlock()
	if auth[0] != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth[0])
	}
}

func TestNewValidatesConfig(t *testing.T) {
	noop := func(context.Context, []byte) {}
	cases := []struct {
		name    string
		cfg     Config
		handler Handler
	}{
		{"missing url", Config{}, noop},
		{"http url", Config{URL: "http://example.com"}, noop},
		{"missing handler", Config{URL: "ws://example.com"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, tc.handler); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRunStopsWhileBackingOff(t *testing.T) {
	client, err := New(Config{URL: "ws://127.0.0.1:1/unreachable", ReconnectMin: time.Hour}, func(context.Context, []byte) {})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
