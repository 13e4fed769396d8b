package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCallsPerMinute = 60
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "forexsync/1.0"

	maxBody = 32 << 20
)

// Client is an HTTP client whose outbound calls share one wall-clock
// throttle. Calls are never retried.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// New returns a client allowing callsPerMinute requests, spaced evenly.
func New(callsPerMinute int, timeout time.Duration) *Client {
	if callsPerMinute <= 0 {
		callsPerMinute = DefaultCallsPerMinute
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Limiter:   NewLimiter(callsPerMinute),
		UserAgent: DefaultUserAgent,
	}
}

// NewLimiter spaces calls by one minute divided by callsPerMinute, with no burst.
func NewLimiter(callsPerMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMinute)), 1)
}

// Wait blocks until the throttle admits one more call.
func (c *Client) Wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d", e.Code) }

// Get waits for the throttle, issues GET base?query and returns the body.
func (c *Client) Get(ctx context.Context, base string, query url.Values) ([]byte, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}
