package bus

import (
	"errors"
	"testing"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
)

func TestTryPublishFullAndClosed(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPublish(model.OrderEvent{OrderID: "a"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := q.TryPublish(model.OrderEvent{OrderID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("full publish error mismatch: got %v want %v", err, ErrQueueFull)
	}
	if q.Drops() != 1 {
		t.Fatalf("drops mismatch: got %d want 1", q.Drops())
	}

	q.Close()
	q.Close()
	if err := q.TryPublish(model.OrderEvent{OrderID: "c"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("closed publish error mismatch: got %v want %v", err, ErrQueueClosed)
	}
}

func TestDeliversInOrderAfterClose(t *testing.T) {
	q := NewQueue(4)
	for _, id := range []string{"1", "2", "3"} {
		if err := q.TryPublish(model.OrderEvent{OrderID: id, Status: enum.OrderStatusOpen}); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len mismatch: got %d want 3", q.Len())
	}
	q.Close()

	var got []string
	for e := range q.C() {
		got = append(got, e.OrderID)
	}
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Fatalf("delivery mismatch: got %v want [1 2 3]", got)
	}
}

func TestChannelReceive(t *testing.T) {
	q := NewQueue(2)
	_ = q.TryPublish(model.OrderEvent{OrderID: "x"})
	select {
	case e := <-q.C():
		if e.OrderID != "x" {
			t.Fatalf("order id mismatch: got %s want x", e.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	if q.Len() != 0 {
		t.Fatalf("len mismatch: got %d want 0", q.Len())
	}
}
