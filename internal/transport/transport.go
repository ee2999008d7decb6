// Package transport carries encoded RPC bodies to a note service endpoint
// over HTTP(S).
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultHttpTimeout        = 60 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second

	// DefaultMaxBytes bounds request and response bodies unless configured otherwise.
	DefaultMaxBytes = 64 << 20

	contentType = "application/x-thrift"
)

// Version is reported in the User-Agent header.
var Version = "0.1.0"

// Transport delivers one encoded request and returns the encoded response.
type Transport interface {
	Send(ctx context.Context, url string, body []byte, authToken string) ([]byte, error)
}

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// sharedClient serves every HTTPTransport built without a Client.
var sharedClient = sync.OnceValue(defaultClient)

// HTTPTransport posts request bodies with the binary content type.
type HTTPTransport struct {
	Client           *http.Client
	MaxRequestBytes  int
	MaxResponseBytes int
	UserAgent        string
}

// NewHTTPTransport returns an HTTPTransport with default timeouts and size bounds.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		Client:           defaultClient(),
		MaxRequestBytes:  DefaultMaxBytes,
		MaxResponseBytes: DefaultMaxBytes,
		UserAgent:        "gophnote/" + Version,
	}
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return sharedClient()
}

// Send posts body to url. A cancelled ctx yields ctx.Err() and the partial
// response, if any, is dropped.
func (t *HTTPTransport) Send(ctx context.Context, url string, body []byte, authToken string) ([]byte, error) {
	if limit := t.MaxRequestBytes; limit > 0 && len(body) > limit {
		return nil, &TransportError{
			Op:        "send",
			URL:       url,
			Oversized: true,
			Err:       fmt.Errorf("request of %d bytes exceeds limit of %d", len(body), limit),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "send", URL: url, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if authToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", authToken))
	}

	r, err := t.client().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: "send", URL: url, Err: err}
	}
	defer r.Body.Close()

	if r.StatusCode < 200 || r.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
		return nil, &TransportError{Op: "read", URL: url, StatusCode: r.StatusCode}
	}

	limit := t.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if r.ContentLength > int64(limit) {
		return nil, &TransportError{
			Op:        "read",
			URL:       url,
			Oversized: true,
			Err:       fmt.Errorf("response of %d bytes exceeds limit of %d", r.ContentLength, limit),
		}
	}
	// Read one byte past the limit to tell "exactly at limit" from "over".
	resp, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: "read", URL: url, Err: err}
	}
	if len(resp) > limit {
		return nil, &TransportError{
			Op:        "read",
			URL:       url,
			Oversized: true,
			Err:       fmt.Errorf("response exceeds limit of %d bytes", limit),
		}
	}
	if len(resp) == 0 {
		return nil, &TransportError{Op: "read", URL: url, Err: ErrEmptyResponse}
	}
	return resp, nil
}
