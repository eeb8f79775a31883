package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crossarb/internal/book"
	"crossarb/internal/bus"
	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/obs"
	"crossarb/pkg/websocket"

	gorilla "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFrame struct {
	Bid     string `json:"bid,omitempty"`
	Ask     string `json:"ask,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}

type testCodec struct {
	url string
}

func (c testCodec) Venue() enum.Venue { return enum.VenueLighter }
func (c testCodec) URL() string       { return c.url }
func (c testCodec) Subscriptions() []any {
	return []any{map[string]string{"op": "subscribe"}}
}

func (c testCodec) Decode(msg []byte) (Update, error) {
	var f testFrame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Update{}, err
	}
	var up Update
	if f.Bid != "" || f.Ask != "" {
		up.Quote = &RawQuote{Bid: f.Bid, Ask: f.Ask}
	}
	if f.OrderID != "" {
		status, _ := enum.ParseOrderStatus(f.Status)
		up.Events = append(up.Events, model.OrderEvent{OrderID: f.OrderID, Status: status})
	}
	return up, nil
}

func startServer(t *testing.T, sessions [][]string) *httptest.Server {
	t.Helper()
	var n atomic.Int32
	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		idx := int(n.Add(1)) - 1
		if idx >= len(sessions) {
			idx = len(sessions) - 1
		}
		for _, frame := range sessions[idx] {
			_ = conn.WriteMessage(gorilla.TextMessage, []byte(frame))
		}
		if idx < len(sessions)-1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestorFeedsBookAndQueueAcrossReconnects(t *testing.T) {
	srv := startServer(t, [][]string{
		{`{"bid":"100","ask":"101"}`, `not json`, `{"orderId":"o-1","status":"FILLED"}`},
		{`{"bid":"","ask":"102"}`, `{"orderId":"o-1","status":"FILLED"}`, `{"bid":"100.5","ask":"101.5"}`},
	})

	qb := book.New()
	events := bus.NewQueue(8)
	metrics := obs.NewMetrics()
	in, err := New(
		testCodec{url: "ws" + strings.TrimPrefix(srv.URL, "http")},
		BookSink{Book: qb, Events: events, Metrics: metrics},
		Option{Backoff: websocket.Backoff{Min: 5 * time.Millisecond, Max: 10 * time.Millisecond}, Metrics: metrics},
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- in.Run(t.Context()) }()

	var got []model.OrderEvent
	for len(got) < 2 {
		select {
		case ev := <-events.C():
			got = append(got, ev)
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for order events, got %d", len(got))
		}
	}
	for _, ev := range got {
		assert.Equal(t, "o-1", ev.OrderID)
		assert.Equal(t, enum.OrderStatusFilled, ev.Status)
		assert.Equal(t, enum.VenueLighter, ev.Venue)
		assert.False(t, ev.ReceivedAt.IsZero())
	}

	require.Eventually(t, func() bool {
		q, ok := qb.Read(enum.VenueLighter)
		return ok && q.Bid.Equal(decimal.RequireFromString("100.5"))
	}, 3*time.Second, 5*time.Millisecond)

	in.Shutdown()
	in.Shutdown()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	_, err := New(nil, BookSink{}, Option{})
	assert.Error(t, err)
	_, err = New(testCodec{url: "ws://localhost"}, nil, Option{})
	assert.Error(t, err)
}
