package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the VK API endpoint prefix
const DefaultBaseURL = "https://api.vk.com/method/"

// APIError is an error returned by the VK API
type APIError struct {
	Method  string
	Code    int
	Message string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("vk api %s: error %d: %s", e.Method, e.Code, e.Message)
}

// Client calls VK API methods over HTTP.
// Token and version are appended to every request.
type Client struct {
	baseURL string
	token   string
	version string

	httpClient *http.Client
	ownsClient bool
	logger     zerolog.Logger
}

// Config for creating a new Client
type Config struct {
	Token          string
	Version        string
	BaseURL        string
	RequestTimeout time.Duration
	// HTTPClient is the underlying client. When nil, the Client creates and
	// owns one; a caller-supplied client is never closed by Close.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// New creates a new Client
func New(cfg Config) *Client {
	if cfg.Version == "" {
		cfg.Version = "5.131"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	ownsClient := false
	if httpClient == nil {
		transport := &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		}
		ownsClient = true
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		version:    cfg.Version,
		httpClient: httpClient,
		ownsClient: ownsClient,
		logger:     cfg.Logger.With().Str("component", "vkapi").Logger(),
	}
}

// Call invokes the named API method and returns the raw "response" payload.
// An error body is returned as *APIError.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.token)
	params.Set("v", c.version)

	reqURL := c.baseURL + method + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api http error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse api response: %w", err)
	}

	if parsed.Error != nil {
		return nil, &APIError{Method: method, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if parsed.Response == nil {
		return nil, fmt.Errorf("api response for %s has neither response nor error", method)
	}

	c.logger.Debug().Str("method", method).Msg("api call succeeded")
	return parsed.Response, nil
}

// Close releases the HTTP client if it was created by this Client.
// A borrowed client is left untouched.
func (c *Client) Close() {
	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
}

// FlexInt64 decodes an integer that the API may send either as a JSON
// number or as a quoted string (getLongPollServer sends ts as a string).
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(data), err)
	}
	*f = FlexInt64(v)
	return nil
}
