package ingest

import (
	"testing"

	"github.com/bytedance/sonic"
)

func TestLevelShapes(t *testing.T) {
	cases := []struct {
		in    string
		price string
		size  string
	}{
		{`["100.5","2"]`, "100.5", "2"},
		{`[100.25, 0.5]`, "100.25", "0.5"},
		{`{"price":"99.9","size":"1"}`, "99.9", "1"},
		{`{"p":"98","q":"3"}`, "98", "3"},
		{`"97.5"`, "97.5", ""},
	}
	for _, c := range cases {
		var l Level
		if err := sonic.Unmarshal([]byte(c.in), &l); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if l.Price != c.price || l.Size != c.size {
			t.Fatalf("level %s mismatch: got %+v want %s/%s", c.in, l, c.price, c.size)
		}
	}
}

func TestLevelWithoutPriceFails(t *testing.T) {
	for _, in := range []string{`[]`, `{"size":"1"}`, `true`} {
		var l Level
		if err := sonic.Unmarshal([]byte(in), &l); err == nil {
			t.Fatalf("unmarshal %s succeeded, want error", in)
		}
	}
}

func TestTop(t *testing.T) {
	if got := Top(nil); got != "" {
		t.Fatalf("top of empty side mismatch: got %q want empty", got)
	}
	if got := Top([]Level{{Price: "1"}, {Price: "2"}}); got != "1" {
		t.Fatalf("top mismatch: got %q want 1", got)
	}
}

func TestTextAcceptsStringsAndNumbers(t *testing.T) {
	var v struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
	}
	if err := sonic.Unmarshal([]byte(`{"a":"abc","b":12345678901234,"c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != "abc" || v.B != "12345678901234" || v.C != "" {
		t.Fatalf("text mismatch: got %+v", v)
	}
}
