package exception

import "errors"

var (
	ErrQuotePartial     = errors.New("quote: partial update")
	ErrQuoteInvalid     = errors.New("quote: invalid decimal")
	ErrQuoteNonPositive = errors.New("quote: non-positive price")
	ErrQuoteCrossed     = errors.New("quote: bid above ask")
	ErrQuoteNotReady    = errors.New("quote: book not ready")
	ErrUnknownVenue     = errors.New("quote: unknown venue")
)

var (
	ErrFeedMalformed = errors.New("feed: malformed message")
	ErrFeedNilCodec  = errors.New("feed: nil codec")
	ErrFeedNilSink   = errors.New("feed: nil sink")
)
