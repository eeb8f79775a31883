package websocket

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
)

// Writer serializes writes onto one live connection.
type Writer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func newWriter(conn *websocket.Conn, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Writer{conn: conn, timeout: timeout}
}

// WriteJSON encodes v and sends it as a text frame.
func (w *Writer) WriteJSON(v any) error {
	payload, err := sonic.ConfigFastest.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	return w.WriteText(payload)
}

// WriteText sends payload as a text frame.
func (w *Writer) WriteText(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *Writer) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.timeout))
}
