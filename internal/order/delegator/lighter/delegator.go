package lighter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/order"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	BaseURL = "https://mainnet.zklighter.elliot.ai"

	// DefaultTickSize is the price increment of the BTC perp market.
	DefaultTickSize = "0.01"

	pathOrders  = "/api/v1/orders"
	pathAccount = "/api/v1/account"
)

// Config defines how to reach one Lighter market.
type Config struct {
	BaseURL      string
	MarketIndex  int
	AccountIndex int
	Client       *http.Client
	Signer       order.Signer
}

// Delegator implements order.Gateway over the Lighter REST API. Transaction
// signing is delegated to the configured order.Signer.
type Delegator struct {
	rest         *order.RESTClient
	marketIndex  int
	accountIndex int
}

func NewDelegator(cfg Config) (*Delegator, error) {
	if cfg.Signer == nil {
		return nil, exception.ErrGatewayNilSigner
	}
	if cfg.MarketIndex < 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "lighter market index %d", cfg.MarketIndex)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	return &Delegator{
		rest:         order.NewRESTClient(cfg.BaseURL, cfg.Client, cfg.Signer),
		marketIndex:  cfg.MarketIndex,
		accountIndex: cfg.AccountIndex,
	}, nil
}

func (d *Delegator) Venue() enum.Venue {
	return enum.VenueLighter
}

type placeRequest struct {
	MarketIndex   int    `json:"market_index"`
	AccountIndex  int    `json:"account_index"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	BaseAmount    string `json:"base_amount"`
	Price         string `json:"price"`
	IsAsk         bool   `json:"is_ask"`
	OrderType     string `json:"order_type"`
	TimeInForce   string `json:"time_in_force"`
	ReduceOnly    bool   `json:"reduce_only"`
}

type placeResponse struct {
	Code       int      `json:"code"`
	Message    string   `json:"message"`
	OrderIndex order.ID `json:"order_index"`
	OrderID    order.ID `json:"order_id"`
	TxHash     string   `json:"tx_hash"`
}

func (r placeResponse) id() string {
	switch {
	case r.OrderIndex != "":
		return string(r.OrderIndex)
	case r.OrderID != "":
		return string(r.OrderID)
	default:
		return r.TxHash
	}
}

func (d *Delegator) PlaceOrder(ctx context.Context, req model.OrderRequest) model.OrderResult {
	if err := order.ValidateRequest(req); err != nil {
		return model.Rejected(err)
	}
	if req.Venue != 0 && req.Venue != enum.VenueLighter {
		return model.Rejected(exception.ErrOrderMismatchVenue)
	}
	tif := "post_only"
	if !req.PostOnly {
		tif = "immediate_or_cancel"
	}
	body := placeRequest{
		MarketIndex:   d.marketIndex,
		AccountIndex:  d.accountIndex,
		ClientOrderID: req.ClientOrderID,
		BaseAmount:    req.Quantity.String(),
		Price:         req.Price.String(),
		IsAsk:         req.Side == enum.SideSell,
		OrderType:     "limit",
		TimeInForce:   tif,
	}

	var resp placeResponse
	if err := d.rest.Do(ctx, http.MethodPost, pathOrders, body, &resp); err != nil {
		return model.Rejected(errors.Wrap(err, "place lighter order").With("request", body))
	}
	if resp.Code != 0 && resp.Code != http.StatusOK {
		return model.Rejected(errors.Wrapf(exception.ErrOrderRejected, "lighter code %d: %s", resp.Code, resp.Message))
	}
	id := resp.id()
	if id == "" {
		return model.Rejected(exception.ErrOrderEmptyResponseID)
	}
	return model.Accepted(id)
}

func (d *Delegator) CancelOrder(ctx context.Context, orderID string) model.OrderResult {
	if orderID == "" {
		return model.Rejected(exception.ErrOrderInvalidRequest)
	}
	q := url.Values{}
	q.Set("market_index", strconv.Itoa(d.marketIndex))
	q.Set("account_index", strconv.Itoa(d.accountIndex))
	path := pathOrders + "/" + url.PathEscape(orderID) + "?" + q.Encode()
	err := d.rest.Do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !order.IsGone(err) {
		return model.Rejected(errors.Wrapf(err, "cancel lighter order %s", orderID))
	}
	return model.Accepted(orderID)
}

type accountPosition struct {
	MarketID order.ID `json:"market_id"`
	Position order.ID `json:"position"`
	Sign     int      `json:"sign"`
}

type accountResponse struct {
	Accounts []struct {
		Positions []accountPosition `json:"positions"`
	} `json:"accounts"`
}

// GetPosition returns the signed base amount held in the configured market.
// Lighter reports an unsigned position plus a sign of 1 or -1.
func (d *Delegator) GetPosition(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("by", "index")
	q.Set("value", strconv.Itoa(d.accountIndex))

	var resp accountResponse
	if err := d.rest.Do(ctx, http.MethodGet, pathAccount+"?"+q.Encode(), nil, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "get lighter account")
	}
	if len(resp.Accounts) == 0 {
		return decimal.Zero, errors.Wrapf(exception.ErrGatewayNoPosition, "lighter account %d", d.accountIndex)
	}

	market := strconv.Itoa(d.marketIndex)
	for _, p := range resp.Accounts[0].Positions {
		if string(p.MarketID) != market {
			continue
		}
		size, err := decimal.NewFromString(string(p.Position))
		if err != nil {
			return decimal.Zero, errors.Wrapf(exception.ErrOrderDecodeResponseBody, "position %q", p.Position)
		}
		if p.Sign < 0 {
			size = size.Abs().Neg()
		}
		return size, nil
	}
	return decimal.Zero, nil
}
