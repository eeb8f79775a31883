package enum

import "strings"

// Side buy, sell
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

// Opposite returns the hedging side. Unknown sides stay unknown.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid", "long":
		return SideBuy, true
	case "sell", "ask", "short":
		return SideSell, true
	default:
		return _side_beg, false
	}
}

// OrderStatus open, filled, cancelled
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCancelled
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further fills can follow.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderStatus normalizes venue status strings.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "NEW", "PARTIALLY_FILLED", "PARTIAL_FILLED", "UNTRIGGERED":
		return OrderStatusOpen, true
	case "FILLED":
		return OrderStatusFilled, true
	case "CANCELLED", "CANCELED", "EXPIRED", "REJECTED":
		return OrderStatusCancelled, true
	default:
		return _order_status_beg, false
	}
}
