package order

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	venue  enum.Venue
	placed []model.OrderRequest
}

func (g *stubGateway) Venue() enum.Venue { return g.venue }

func (g *stubGateway) PlaceOrder(_ context.Context, req model.OrderRequest) model.OrderResult {
	g.placed = append(g.placed, req)
	return model.Accepted("id-1")
}

func (g *stubGateway) CancelOrder(_ context.Context, id string) model.OrderResult {
	return model.Accepted(id)
}

func (g *stubGateway) GetPosition(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(2), nil
}

func TestRouterDispatch(t *testing.T) {
	lighter := &stubGateway{venue: enum.VenueLighter}
	r := NewRouter(lighter)

	res := r.PlaceOrder(t.Context(), enum.VenueLighter, model.OrderRequest{Side: enum.SideBuy})
	require.True(t, res.Success)
	require.Len(t, lighter.placed, 1)
	assert.Equal(t, enum.VenueLighter, lighter.placed[0].Venue)

	res = r.PlaceOrder(t.Context(), enum.VenueExtended, model.OrderRequest{})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, exception.ErrGatewayUnknownVenue)

	res = r.PlaceOrder(t.Context(), enum.VenueLighter, model.OrderRequest{Venue: enum.VenueExtended})
	assert.ErrorIs(t, res.Err, exception.ErrOrderMismatchVenue)

	pos, err := r.GetPosition(t.Context(), enum.VenueLighter)
	require.NoError(t, err)
	assert.True(t, pos.Equal(decimal.NewFromInt(2)))

	_, err = r.GetPosition(t.Context(), enum.VenueEdgeX)
	assert.ErrorIs(t, err, exception.ErrGatewayUnknownVenue)
}

func TestAPIKeySigner(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, APIKeySigner{Key: "k"}.Sign(r, nil))
	assert.Equal(t, "k", r.Header.Get("X-API-KEY"))

	require.NoError(t, APIKeySigner{Header: "X-Api-Token", Key: "t"}.Sign(r, nil))
	assert.Equal(t, "t", r.Header.Get("X-Api-Token"))

	assert.ErrorIs(t, APIKeySigner{}.Sign(r, nil), exception.ErrGatewayMissingCreds)
}

func TestRESTClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"orderId":12345}`))
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`order not found`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`boom`))
		}
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL+"/", srv.Client(), APIKeySigner{Key: "secret"})

	var out struct {
		OrderID ID `json:"orderId"`
	}
	require.NoError(t, c.Do(t.Context(), http.MethodPost, "/ok", map[string]string{"a": "b"}, &out))
	assert.Equal(t, ID("12345"), out.OrderID)

	err := c.Do(t.Context(), http.MethodDelete, "/gone", nil, nil)
	require.Error(t, err)
	assert.True(t, IsGone(err))
	assert.ErrorIs(t, err, exception.ErrUnexpectedHTTP)

	err = c.Do(t.Context(), http.MethodGet, "/fail", nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.False(t, IsGone(err))

	unsigned := NewRESTClient(srv.URL, srv.Client(), APIKeySigner{})
	assert.ErrorIs(t, unsigned.Do(t.Context(), http.MethodGet, "/ok", nil, nil), exception.ErrGatewayMissingCreds)
}

func TestIsGone(t *testing.T) {
	testCases := []struct {
		desc string
		err  error
		want bool
	}{
		{desc: "nil", err: nil, want: false},
		{desc: "plain error", err: errors.New("timeout"), want: false},
		{desc: "404", err: &StatusError{Code: 404}, want: true},
		{desc: "400 filled", err: &StatusError{Code: 400, Body: `{"error":"Order already FILLED"}`}, want: true},
		{desc: "409 cancelled", err: &StatusError{Code: 409, Body: "order cancelled"}, want: true},
		{desc: "400 other", err: &StatusError{Code: 400, Body: "bad price"}, want: false},
		{desc: "409 code field", err: &StatusError{Code: 409, Body: `{"code":"ORDER_NOT_FOUND","message":"no such order"}`}, want: true},
		{desc: "422 nested code", err: &StatusError{Code: 422, Body: `{"error":{"code":"order-already-cancelled"}}`}, want: true},
		{desc: "400 unfilled", err: &StatusError{Code: 400, Body: "order unfilled"}, want: false},
		{desc: "400 partially filled", err: &StatusError{Code: 400, Body: `{"error":"partially filled"}`}, want: false},
		{desc: "400 cannot cancel", err: &StatusError{Code: 400, Body: `{"message":"order cannot be cancelled: margin check"}`}, want: false},
		{desc: "400 not terminal", err: &StatusError{Code: 400, Body: `{"status":"non-terminal state"}`}, want: false},
		{desc: "500 not found text", err: &StatusError{Code: 500, Body: "not found"}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := IsGone(tc.err); got != tc.want {
				t.Fatalf("IsGone mismatch: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	one := decimal.NewFromInt(1)
	assert.NoError(t, ValidateRequest(model.OrderRequest{Side: enum.SideSell, Quantity: one, Price: one}))
	assert.ErrorIs(t, ValidateRequest(model.OrderRequest{Quantity: one, Price: one}), exception.ErrOrderUnsupportedSide)
	assert.ErrorIs(t, ValidateRequest(model.OrderRequest{Side: enum.SideBuy, Price: one}), exception.ErrOrderInvalidRequest)
	assert.ErrorIs(t, ValidateRequest(model.OrderRequest{Side: enum.SideBuy, Quantity: one}), exception.ErrOrderInvalidRequest)
}
