package lighter

import (
	"encoding/json"
	"strconv"
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
	BaseStreamURL      = "wss://mainnet.zklighter.elliot.ai/stream"
	DefaultMarketIndex = 1
)

type subscribeRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type bookPayload struct {
	Bids []ingest.Level `json:"bids"`
	Asks []ingest.Level `json:"asks"`
}

type order struct {
	OrderIndex ingest.Text `json:"order_index"`
	OrderID    ingest.Text `json:"order_id"`
	ID         ingest.Text `json:"id"`
	Status     string      `json:"status"`
	Side       string      `json:"side"`
	IsAsk      *bool       `json:"is_ask"`
	Filled     ingest.Text `json:"filled_base_amount"`
	FilledSize ingest.Text `json:"filled_size"`
}

type frame struct {
	Type      string       `json:"type"`
	OrderBook *bookPayload `json:"order_book"`
	Data      *bookPayload `json:"data"`
	bookPayload
	// Orders arrive either as a list or as a map keyed by market index.
	Orders json.RawMessage `json:"orders"`
}

// Config selects the market and, optionally, the account order channel.
type Config struct {
	URL          string
	MarketIndex  int
	AccountIndex int
	// AuthToken enables the account_orders subscription when set.
	AuthToken string
}

// Codec reads the Lighter stream: one order book plus optional account orders.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) Codec {
	if cfg.URL == "" {
		cfg.URL = BaseStreamURL
	}
	if cfg.MarketIndex <= 0 {
		cfg.MarketIndex = DefaultMarketIndex
	}
	return Codec{cfg: cfg}
}

func (c Codec) Venue() enum.Venue { return enum.VenueLighter }

func (c Codec) URL() string { return c.cfg.URL }

func (c Codec) Subscriptions() []any {
	market := strconv.Itoa(c.cfg.MarketIndex)
	subs := []any{subscribeRequest{Type: "subscribe", Channel: "order_book/" + market}}
	if c.cfg.AuthToken != "" {
		subs = append(subs, subscribeRequest{
			Type:    "subscribe",
			Channel: "account_orders/" + market + "/" + strconv.Itoa(c.cfg.AccountIndex),
			Auth:    c.cfg.AuthToken,
		})
	}
	return subs
}

func (c Codec) Decode(msg []byte) (ingest.Update, error) {
	var f frame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return ingest.Update{}, errors.Wrap(exception.ErrFeedMalformed, err.Error())
	}

	var up ingest.Update
	payload := f.bookPayload
	switch {
	case f.OrderBook != nil:
		payload = *f.OrderBook
	case f.Data != nil:
		payload = *f.Data
	}
	if len(payload.Bids) != 0 || len(payload.Asks) != 0 {
		up.Quote = &ingest.RawQuote{Bid: ingest.Top(payload.Bids), Ask: ingest.Top(payload.Asks)}
	}

	orders, err := c.orders(f.Orders)
	if err != nil {
		return ingest.Update{}, err
	}
	for _, o := range orders {
		ev, err := o.event()
		if err != nil {
			return ingest.Update{}, err
		}
		up.Events = append(up.Events, ev)
	}
	return up, nil
}

func (c Codec) orders(raw json.RawMessage) ([]order, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []order
	if err := sonic.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var byMarket map[string][]order
	if err := sonic.Unmarshal(raw, &byMarket); err != nil {
		return nil, errors.Wrap(exception.ErrFeedMalformed, err.Error())
	}
	return byMarket[strconv.Itoa(c.cfg.MarketIndex)], nil
}

func (o order) event() (model.OrderEvent, error) {
	id := o.OrderIndex
	if id == "" {
		id = o.OrderID
	}
	if id == "" {
		id = o.ID
	}
	if id == "" {
		return model.OrderEvent{}, errors.Wrap(exception.ErrFeedMalformed, "order without id")
	}

	status, ok := parseStatus(o.Status)
	if !ok {
		return model.OrderEvent{}, errors.Wrapf(exception.ErrFeedMalformed, "order %s status %q", id, o.Status)
	}

	side, _ := enum.ParseSide(o.Side)
	if o.IsAsk != nil {
		side = enum.SideBuy
		if *o.IsAsk {
			side = enum.SideSell
		}
	}

	filled := o.Filled
	if filled == "" {
		filled = o.FilledSize
	}
	qty := decimal.Zero
	if filled != "" {
		var err error
		if qty, err = decimal.NewFromString(filled.String()); err != nil {
			return model.OrderEvent{}, errors.Wrapf(exception.ErrFeedMalformed, "order %s filled %q", id, filled)
		}
	}

	return model.OrderEvent{
		Venue:          enum.VenueLighter,
		OrderID:        id.String(),
		Status:         status,
		Side:           side,
		FilledQuantity: qty,
	}, nil
}

// parseStatus also folds the canceled-<reason> family into cancelled.
func parseStatus(s string) (enum.OrderStatus, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(lower, "cancel") {
		return enum.OrderStatusCancelled, true
	}
	return enum.ParseOrderStatus(lower)
}
