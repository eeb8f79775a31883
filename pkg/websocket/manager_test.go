package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = Backoff{Min: 5 * time.Millisecond, Max: 20 * time.Millisecond, Factor: 2}

func newTestServer(t *testing.T, handle func(conn *websocket.Conn, session int)) *httptest.Server {
	t.Helper()
	var sessions atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, int(sessions.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{OnMessage: func([]byte) {}})
	assert.ErrorIs(t, err, ErrNoURL)

	_, err = NewManager(Config{URL: "ws://localhost"})
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = NewManager(Config{URL: "ws://localhost", OnMessage: func([]byte) {}, PingInterval: -1})
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestManagerReconnectsAndResubscribes(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn, session int) {
		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("%s-%d", sub, session)))
		if session == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	msgs := make(chan string, 8)
	var connects atomic.Int32
	m, err := NewManager(Config{
		URL:     wsURL(srv),
		Backoff: fastBackoff,
		OnConnect: func(ctx context.Context, w *Writer) error {
			connects.Add(1)
			return w.WriteText([]byte("sub"))
		},
		OnMessage: func(msg []byte) {
			msgs <- string(msg)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	for _, want := range []string{"sub-1", "sub-2"} {
		select {
		case got := <-msgs:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
	assert.GreaterOrEqual(t, connects.Load(), int32(2))
	assert.GreaterOrEqual(t, m.Reconnects(), uint64(1))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.False(t, m.Connected())
}

func TestManagerCloseIsIdempotent(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn, session int) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hi"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	got := make(chan struct{}, 1)
	m, err := NewManager(Config{
		URL:     wsURL(srv),
		Backoff: fastBackoff,
		OnMessage: func([]byte) {
			select {
			case got <- struct{}{}:
			default:
			}
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(t.Context()) }()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first frame")
	}

	m.Close()
	m.Close()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrClosed), "unexpected run error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after close")
	}
}

func TestManagerRetriesDialFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	var failures atomic.Int32
	m, err := NewManager(Config{
		URL:          url,
		Backoff:      fastBackoff,
		OnMessage:    func([]byte) {},
		OnDisconnect: func(error) { failures.Add(1) },
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(t.Context()) }()

	require.Eventually(t, func() bool { return failures.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after close")
	}
}
