package extended

import (
	"strings"

	"crossarb/internal/ingest"
	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	BaseStreamURL = "wss://api.starknet.extended.exchange/v1/stream"

	frameTypeDelta       = "DELTA"
	frameTypeOrderUpdate = "ORDER_UPDATE"
)

// Market returns the Extended market name of a ticker, e.g. BTC-USD.
func Market(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker)) + "-USD"
}

type subscribeRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Market  string `json:"market"`
}

type bookPayload struct {
	Market string         `json:"market"`
	Bids   []ingest.Level `json:"bids"`
	Asks   []ingest.Level `json:"asks"`
	B      []ingest.Level `json:"b"`
	A      []ingest.Level `json:"a"`
}

func (p bookPayload) top() (string, string, bool) {
	bids, asks := p.Bids, p.Asks
	if len(bids) == 0 && len(asks) == 0 {
		bids, asks = p.B, p.A
	}
	if len(bids) == 0 && len(asks) == 0 {
		return "", "", false
	}
	return ingest.Top(bids), ingest.Top(asks), true
}

type bookFrame struct {
	Type string `json:"type"`
	bookPayload
	Data *bookPayload `json:"data"`
}

// MarketCodec reads the public order book stream of one market.
type MarketCodec struct {
	baseURL string
	market  string
}

// NewMarketCodec uses BaseStreamURL when baseURL is empty.
func NewMarketCodec(baseURL, market string) MarketCodec {
	if baseURL == "" {
		baseURL = BaseStreamURL
	}
	return MarketCodec{baseURL: strings.TrimRight(baseURL, "/"), market: market}
}

func (c MarketCodec) Venue() enum.Venue { return enum.VenueExtended }

func (c MarketCodec) URL() string {
	return c.baseURL + "/market/" + c.market
}

func (c MarketCodec) Subscriptions() []any {
	return []any{subscribeRequest{Type: "subscribe", Channel: "orderbook", Market: c.market}}
}

// Decode keeps the first level of each side. Delta frames are skipped since
// their first level is a change, not the touch.
func (c MarketCodec) Decode(msg []byte) (ingest.Update, error) {
	var f bookFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return ingest.Update{}, errors.Wrap(exception.ErrFeedMalformed, err.Error())
	}
	if strings.EqualFold(f.Type, frameTypeDelta) {
		return ingest.Update{}, nil
	}
	payload := f.bookPayload
	if f.Data != nil {
		payload = *f.Data
	}
	bid, ask, ok := payload.top()
	if !ok {
		return ingest.Update{}, nil
	}
	return ingest.Update{Quote: &ingest.RawQuote{Bid: bid, Ask: ask}}, nil
}

type orderUpdate struct {
	Type       string      `json:"type"`
	OrderID    ingest.Text `json:"orderId"`
	ID         ingest.Text `json:"id"`
	Status     string      `json:"status"`
	Side       string      `json:"side"`
	FilledSize ingest.Text `json:"filledSize"`
	FilledQty  ingest.Text `json:"filledQty"`
}

type accountFrame struct {
	orderUpdate
	Data *struct {
		Orders []orderUpdate `json:"orders"`
	} `json:"data"`
}

// AccountCodec reads order updates of one vault.
type AccountCodec struct {
	baseURL string
	vault   string
}

// NewAccountCodec uses BaseStreamURL when baseURL is empty.
func NewAccountCodec(baseURL, vault string) AccountCodec {
	if baseURL == "" {
		baseURL = BaseStreamURL
	}
	return AccountCodec{baseURL: strings.TrimRight(baseURL, "/"), vault: vault}
}

func (c AccountCodec) Venue() enum.Venue { return enum.VenueExtended }

func (c AccountCodec) URL() string {
	return c.baseURL + "/account/" + c.vault
}

func (c AccountCodec) Subscriptions() []any { return nil }

func (c AccountCodec) Decode(msg []byte) (ingest.Update, error) {
	var f accountFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return ingest.Update{}, errors.Wrap(exception.ErrFeedMalformed, err.Error())
	}

	var raw []orderUpdate
	if strings.EqualFold(f.Type, frameTypeOrderUpdate) {
		raw = append(raw, f.orderUpdate)
	}
	if f.Data != nil {
		raw = append(raw, f.Data.Orders...)
	}

	var up ingest.Update
	for _, o := range raw {
		ev, err := o.event()
		if err != nil {
			return ingest.Update{}, err
		}
		up.Events = append(up.Events, ev)
	}
	return up, nil
}

func (o orderUpdate) event() (model.OrderEvent, error) {
	id := o.OrderID
	if id == "" {
		id = o.ID
	}
	if id == "" {
		return model.OrderEvent{}, errors.Wrap(exception.ErrFeedMalformed, "order update without id")
	}
	status, ok := enum.ParseOrderStatus(o.Status)
	if !ok {
		return model.OrderEvent{}, errors.Wrapf(exception.ErrFeedMalformed, "order %s status %q", id, o.Status)
	}
	side, _ := enum.ParseSide(o.Side)

	filled := o.FilledSize
	if filled == "" {
		filled = o.FilledQty
	}
	qty := decimal.Zero
	if filled != "" {
		var err error
		qty, err = decimal.NewFromString(filled.String())
		if err != nil {
			return model.OrderEvent{}, errors.Wrapf(exception.ErrFeedMalformed, "order %s filled size %q", id, filled)
		}
	}

	return model.OrderEvent{
		Venue:          enum.VenueExtended,
		OrderID:        id.String(),
		Status:         status,
		Side:           side,
		FilledQuantity: qty,
	}, nil
}
