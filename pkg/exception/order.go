package exception

import "errors"

var (
	ErrOrderInvalidRequest     = errors.New("order: invalid request")
	ErrOrderMismatchVenue      = errors.New("order: mismatch venue")
	ErrOrderUnsupportedSide    = errors.New("order: unsupported side")
	ErrOrderDecodeResponseBody = errors.New("order: decode response body")
	ErrOrderEmptyResponseID    = errors.New("order: empty response order id")
	ErrOrderRejected           = errors.New("order: rejected by venue")
)

var (
	ErrHedgeFailed    = errors.New("hedge: placement failed after maker fill")
	ErrHedgeNoQuote   = errors.New("hedge: counter venue quote unavailable")
	ErrHedgeZeroQty   = errors.New("hedge: zero quantity")
	ErrInvariantBreak = errors.New("coordinator: placement while maker order is live")
	ErrMakerUnsettled = errors.New("coordinator: maker cancel not confirmed")
)
