package longpoll

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport performs one long poll request and returns the raw JSON body.
// A caller-supplied Transport is shared with the caller and is never
// closed by the poller; implementations must tolerate concurrent use.
type Transport interface {
	Fetch(ctx context.Context, server string, params url.Values) ([]byte, error)
	Close()
}

// HTTPTransport is the default Transport over net/http
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport whose requests time out after the
// given duration. The timeout must exceed the session wait, otherwise
// every held request would be cut short.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	transport := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Fetch implements Transport
func (t *HTTPTransport) Fetch(ctx context.Context, server string, params url.Values) ([]byte, error) {
	reqURL := server + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// Close implements Transport
func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}
