package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrBadConfig = errors.New("websocket: invalid config")
	ErrNoURL     = errors.New("websocket: empty url")
	ErrNoHandler = errors.New("websocket: nil message handler")
	ErrClosed    = errors.New("websocket: manager closed")
)

// Manager owns one reconnecting WebSocket stream. Run retries forever with
// backoff until ctx is done or Close is called.
type Manager struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn

	connected  atomic.Bool
	reconnects atomic.Uint64
	done       chan struct{}
	closeOnce  sync.Once
}

// NewManager validates config and builds a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.OnMessage == nil {
		return nil, ErrNoHandler
	}
	if cfg.PingInterval < 0 || cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return nil, ErrBadConfig
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		}
	}
	if cfg.Backoff.Min == 0 && cfg.Backoff.Max == 0 && cfg.Backoff.Factor == 0 && cfg.Backoff.Jitter == 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Manager{cfg: cfg, done: make(chan struct{})}, nil
}

// Run starts the connection lifecycle and blocks until ctx is done or the
// manager is closed.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return ErrBadConfig
	}
	attempt := 0
	for {
		if err := m.alive(ctx); err != nil {
			return err
		}
		conn, _, err := m.cfg.Dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
		if err != nil {
			m.disconnected(err)
			attempt++
			m.sleepBackoff(ctx, attempt)
			continue
		}

		m.setConn(conn)
		received, err := m.runSession(ctx, conn)
		m.setConn(nil)
		_ = conn.Close()
		m.disconnected(err)

		if err := m.alive(ctx); err != nil {
			return err
		}
		if received {
			attempt = 0
		}
		attempt++
		m.reconnects.Add(1)
		m.sleepBackoff(ctx, attempt)
	}
}

// Close stops Run and drops the live connection. Safe to call many times.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		if m.conn != nil {
			_ = m.conn.Close()
		}
		m.mu.Unlock()
	})
}

// Connected reports whether a session is live.
func (m *Manager) Connected() bool {
	return m != nil && m.connected.Load()
}

// Reconnects returns how many sessions ended and were retried.
func (m *Manager) Reconnects() uint64 {
	if m == nil {
		return 0
	}
	return m.reconnects.Load()
}

func (m *Manager) alive(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	select {
	case <-m.done:
		return ErrClosed
	default:
		return nil
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
	m.connected.Store(conn != nil)
	select {
	case <-m.done:
		if conn != nil {
			_ = conn.Close()
		}
	default:
	}
}

func (m *Manager) disconnected(err error) {
	if m.cfg.OnDisconnect != nil && err != nil {
		m.cfg.OnDisconnect(err)
	}
}

func (m *Manager) runSession(ctx context.Context, conn *websocket.Conn) (received bool, err error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-sessionCtx.Done():
		case <-m.done:
		}
		_ = conn.Close()
	}()

	w := newWriter(conn, m.cfg.WriteTimeout)
	if m.cfg.OnConnect != nil {
		if err := m.cfg.OnConnect(sessionCtx, w); err != nil {
			return false, err
		}
	}

	if m.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		})
	}

	if m.cfg.PingInterval > 0 {
		go m.pingLoop(sessionCtx, w)
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return received, ctx.Err()
			}
			return received, err
		}
		if m.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		received = true
		m.cfg.OnMessage(msg)
	}
}

func (m *Manager) pingLoop(ctx context.Context, w *Writer) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return
			}
		}
	}
}

func (m *Manager) sleepBackoff(ctx context.Context, attempt int) {
	_ = m.cfg.Backoff.Sleep(ctx, m.done, attempt)
}
