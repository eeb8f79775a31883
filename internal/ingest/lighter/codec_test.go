package lighter

import (
	"testing"

	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptions(t *testing.T) {
	c := NewCodec(Config{})
	assert.Equal(t, BaseStreamURL, c.URL())
	assert.Equal(t, []any{subscribeRequest{Type: "subscribe", Channel: "order_book/1"}}, c.Subscriptions())

	c = NewCodec(Config{MarketIndex: 2, AccountIndex: 7, AuthToken: "tok"})
	subs := c.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, subscribeRequest{Type: "subscribe", Channel: "account_orders/2/7", Auth: "tok"}, subs[1])
}

func TestDecodeBookShapes(t *testing.T) {
	c := NewCodec(Config{})
	cases := []struct {
		name     string
		frame    string
		bid, ask string
	}{
		{"order_book", `{"type":"update/order_book","order_book":{"bids":[{"price":"110.5","size":"1"}],"asks":[{"price":"111","size":"2"}]}}`, "110.5", "111"},
		{"data", `{"data":{"bids":[["110","1"]],"asks":[["112","1"]]}}`, "110", "112"},
		{"top level", `{"bids":[{"p":"109"}],"asks":[{"p":"110"}]}`, "109", "110"},
	}
	for _, tc := range cases {
		up, err := c.Decode([]byte(tc.frame))
		require.NoError(t, err, tc.name)
		require.NotNil(t, up.Quote, tc.name)
		assert.Equal(t, tc.bid, up.Quote.Bid, tc.name)
		assert.Equal(t, tc.ask, up.Quote.Ask, tc.name)
	}

	up, err := c.Decode([]byte(`{"type":"connected","session_id":"x"}`))
	require.NoError(t, err)
	assert.Nil(t, up.Quote)
	assert.Empty(t, up.Events)
}

func TestDecodeOrders(t *testing.T) {
	c := NewCodec(Config{MarketIndex: 1})

	up, err := c.Decode([]byte(`{"orders":[{"order_index":991,"status":"filled","is_ask":true,"filled_base_amount":"0.25"}]}`))
	require.NoError(t, err)
	require.Len(t, up.Events, 1)
	ev := up.Events[0]
	assert.Equal(t, "991", ev.OrderID)
	assert.Equal(t, enum.OrderStatusFilled, ev.Status)
	assert.Equal(t, enum.SideSell, ev.Side)
	assert.True(t, ev.FilledQuantity.Equal(decimal.RequireFromString("0.25")))

	up, err = c.Decode([]byte(`{"type":"update/account_orders","orders":{"1":[{"order_id":"7","status":"canceled-post-only","is_ask":false}],"2":[{"order_id":"8","status":"filled"}]}}`))
	require.NoError(t, err)
	require.Len(t, up.Events, 1)
	assert.Equal(t, "7", up.Events[0].OrderID)
	assert.Equal(t, enum.OrderStatusCancelled, up.Events[0].Status)
	assert.Equal(t, enum.SideBuy, up.Events[0].Side)
}

func TestDecodeMalformed(t *testing.T) {
	c := NewCodec(Config{})
	for _, frame := range []string{
		`{"order_book":`,
		`{"orders":[{"status":"filled"}]}`,
		`{"orders":[{"id":"1","status":"mystery"}]}`,
		`{"orders":"nope"}`,
	} {
		_, err := c.Decode([]byte(frame))
		assert.ErrorIs(t, err, exception.ErrFeedMalformed, frame)
	}
}
