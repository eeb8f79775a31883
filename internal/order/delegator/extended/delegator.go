package extended

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/order"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	BaseURL = "https://api.starknet.extended.exchange/v1"

	// DefaultTickSize is the price increment of the BTC-USD market.
	DefaultTickSize = "0.1"
)

// Config defines how to reach one Extended market.
type Config struct {
	BaseURL string
	Market  string
	Vault   string
	Client  *http.Client
	Signer  order.Signer
}

// Delegator implements order.Gateway over the Extended REST API.
type Delegator struct {
	rest   *order.RESTClient
	market string
	vault  string
	now    func() time.Time
}

func NewDelegator(cfg Config) (*Delegator, error) {
	if cfg.Market == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "extended market is empty")
	}
	if cfg.Signer == nil {
		return nil, exception.ErrGatewayNilSigner
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	return &Delegator{
		rest:   order.NewRESTClient(cfg.BaseURL, cfg.Client, cfg.Signer),
		market: cfg.Market,
		vault:  cfg.Vault,
		now:    time.Now,
	}, nil
}

func (d *Delegator) Venue() enum.Venue {
	return enum.VenueExtended
}

func extendedSide(side enum.Side) string {
	switch side {
	case enum.SideSell:
		return "SELL"
	default:
		return "BUY"
	}
}

type placeRequest struct {
	Market      string `json:"market"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	Price       string `json:"price"`
	Type        string `json:"type"`
	TimeInForce string `json:"timeInForce"`
	PostOnly    bool   `json:"postOnly"`
	Nonce       int64  `json:"nonce"`
	ClientID    string `json:"clientId,omitempty"`
}

type placeResponse struct {
	OrderID order.ID `json:"orderId"`
	Data    *struct {
		ID         order.ID `json:"id"`
		ExternalID string   `json:"externalId"`
	} `json:"data"`
}

func (r placeResponse) id() string {
	if r.OrderID != "" {
		return string(r.OrderID)
	}
	if r.Data != nil {
		if r.Data.ID != "" {
			return string(r.Data.ID)
		}
		return r.Data.ExternalID
	}
	return ""
}

func (d *Delegator) PlaceOrder(ctx context.Context, req model.OrderRequest) model.OrderResult {
	if err := order.ValidateRequest(req); err != nil {
		return model.Rejected(err)
	}
	if req.Venue != 0 && req.Venue != enum.VenueExtended {
		return model.Rejected(exception.ErrOrderMismatchVenue)
	}
	market := req.Market
	if market == "" {
		market = d.market
	}
	tif := "GTT"
	if !req.PostOnly {
		tif = "IOC"
	}
	body := placeRequest{
		Market:      market,
		Side:        extendedSide(req.Side),
		Size:        req.Quantity.String(),
		Price:       req.Price.String(),
		Type:        "LIMIT",
		TimeInForce: tif,
		PostOnly:    req.PostOnly,
		Nonce:       d.now().UnixMilli(),
		ClientID:    req.ClientOrderID,
	}

	var resp placeResponse
	if err := d.rest.Do(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return model.Rejected(errors.Wrap(err, "place extended order").With("request", body))
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
	err := d.rest.Do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(orderID), nil, nil)
	if err != nil && !order.IsGone(err) {
		return model.Rejected(errors.Wrapf(err, "cancel extended order %s", orderID))
	}
	return model.Accepted(orderID)
}

type position struct {
	Symbol string   `json:"symbol"`
	Market string   `json:"market"`
	Side   string   `json:"side"`
	Size   order.ID `json:"size"`
}

type positionsResponse struct {
	Positions []position `json:"positions"`
	Data      []position `json:"data"`
}

// GetPosition returns the signed size of the configured market. A missing
// market means flat.
func (d *Delegator) GetPosition(ctx context.Context) (decimal.Decimal, error) {
	if d.vault == "" {
		return decimal.Zero, errors.Wrap(exception.ErrGatewayMissingCreds, "extended vault is empty")
	}
	var resp positionsResponse
	if err := d.rest.Do(ctx, http.MethodGet, "/account/"+url.PathEscape(d.vault)+"/positions", nil, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "get extended positions")
	}

	for _, p := range append(resp.Positions, resp.Data...) {
		name := p.Market
		if name == "" {
			name = p.Symbol
		}
		if !strings.EqualFold(name, d.market) {
			continue
		}
		size, err := decimal.NewFromString(string(p.Size))
		if err != nil {
			return decimal.Zero, errors.Wrapf(exception.ErrOrderDecodeResponseBody, "position size %q", p.Size)
		}
		if strings.EqualFold(p.Side, "SHORT") && size.IsPositive() {
			size = size.Neg()
		}
		return size, nil
	}
	return decimal.Zero, nil
}
