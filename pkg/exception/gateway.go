package exception

import "errors"

var (
	ErrGatewayUnknownVenue = errors.New("gateway: unknown venue")
	ErrGatewayNilSigner    = errors.New("gateway: nil signer")
	ErrGatewayMissingCreds = errors.New("gateway: missing credentials")
	ErrGatewayNoPosition   = errors.New("gateway: position not found")
)
