package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Backoff defines exponential backoff with jitter.
type Backoff struct {
	// Min is the minimum backoff duration.
	Min time.Duration
	// Max is the maximum backoff duration.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
}

// Config defines the manager runtime configuration.
type Config struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	// PingInterval sends a ping control frame periodically. Zero disables it.
	PingInterval time.Duration
	// ReadTimeout drops the session when nothing (data or pong) arrives in
	// time. Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds every write, including pings.
	WriteTimeout time.Duration
	Backoff      Backoff

	// OnConnect runs after every successful dial, typically to subscribe.
	OnConnect func(ctx context.Context, w *Writer) error
	// OnMessage receives every text or binary frame.
	OnMessage func(msg []byte)
	// OnDisconnect receives dial errors and session end errors.
	OnDisconnect func(err error)
}
