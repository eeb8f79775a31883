package order

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"crossarb/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxErrorBody          = 4 << 10
)

// RESTClient is the JSON-over-HTTP plumbing shared by venue delegators.
type RESTClient struct {
	baseURL string
	client  *http.Client
	signer  Signer
	timeout time.Duration
}

// NewRESTClient builds a client. A nil http client uses http.DefaultClient.
func NewRESTClient(baseURL string, client *http.Client, signer Signer) *RESTClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		signer:  signer,
		timeout: defaultRequestTimeout,
	}
}

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "http status " + http.StatusText(e.Code) + ": " + e.Body
}

func (e *StatusError) Unwrap() error {
	return exception.ErrUnexpectedHTTP
}

// Do sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil). Non-2xx responses return a *StatusError.
func (c *RESTClient) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.ConfigFastest.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	if c.signer != nil {
		if err := c.signer.Sign(r, payload); err != nil {
			return errors.Wrap(err, "sign request")
		}
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(exception.ErrOrderDecodeResponseBody, err.Error())
	}
	return nil
}

// NewClientOrderID returns a random client order id.
func NewClientOrderID() string {
	return uuid.NewString()
}
