package lighter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/order"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDelegator(t *testing.T, h http.HandlerFunc) *Delegator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	d, err := NewDelegator(Config{
		BaseURL:      srv.URL,
		MarketIndex:  1,
		AccountIndex: 7,
		Client:       srv.Client(),
		Signer:       order.APIKeySigner{Key: "key"},
	})
	require.NoError(t, err)
	return d
}

func TestPlaceOrder(t *testing.T) {
	var got placeRequest
	d := newTestDelegator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathOrders, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.IsAsk {
			_, _ = w.Write([]byte(`{"code":21120,"message":"invalid price"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"order_index":281474976710657}`))
	})

	res := d.PlaceOrder(t.Context(), model.OrderRequest{
		Side:     enum.SideBuy,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("93.87"),
	})
	require.True(t, res.Success, "%+v", res.Err)
	assert.Equal(t, "281474976710657", res.OrderID)
	assert.Equal(t, 1, got.MarketIndex)
	assert.Equal(t, 7, got.AccountIndex)
	assert.Equal(t, "immediate_or_cancel", got.TimeInForce)
	assert.Equal(t, "93.87", got.Price)

	res = d.PlaceOrder(t.Context(), model.OrderRequest{
		Side:     enum.SideSell,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("100"),
		PostOnly: true,
	})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, exception.ErrOrderRejected)
	assert.Equal(t, "post_only", got.TimeInForce)
}

func TestCancelOrder(t *testing.T) {
	d := newTestDelegator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "1", r.URL.Query().Get("market_index"))
		switch r.URL.Path {
		case pathOrders + "/9":
			_, _ = w.Write([]byte(`{"code":200}`))
		case pathOrders + "/8":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	assert.True(t, d.CancelOrder(t.Context(), "9").Success)
	assert.True(t, d.CancelOrder(t.Context(), "8").Success)
	assert.False(t, d.CancelOrder(t.Context(), "7").Success)
}

func TestGetPosition(t *testing.T) {
	body := `{"accounts":[{"positions":[{"market_id":0,"position":"4","sign":1},{"market_id":1,"position":"0.3","sign":-1}]}]}`
	d := newTestDelegator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathAccount, r.URL.Path)
		require.Equal(t, "index", r.URL.Query().Get("by"))
		require.Equal(t, "7", r.URL.Query().Get("value"))
		_, _ = w.Write([]byte(body))
	})

	pos, err := d.GetPosition(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "-0.3", pos.String())

	body = `{"accounts":[{"positions":[]}]}`
	pos, err = d.GetPosition(t.Context())
	require.NoError(t, err)
	assert.True(t, pos.IsZero())

	body = `{"accounts":[]}`
	_, err = d.GetPosition(t.Context())
	assert.ErrorIs(t, err, exception.ErrGatewayNoPosition)
}
