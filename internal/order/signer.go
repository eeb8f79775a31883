package order

import (
	"net/http"

	"crossarb/pkg/exception"
)

// Signer authenticates an outgoing REST request. body is the exact payload
// that will be sent.
type Signer interface {
	Sign(r *http.Request, body []byte) error
}

// APIKeySigner only attaches an API key header. Venues that need payload
// signatures plug a different Signer in.
type APIKeySigner struct {
	Header string
	Key    string
}

func (s APIKeySigner) Sign(r *http.Request, _ []byte) error {
	if s.Key == "" {
		return exception.ErrGatewayMissingCreds
	}
	header := s.Header
	if header == "" {
		header = "X-API-KEY"
	}
	r.Header.Set(header, s.Key)
	return nil
}
