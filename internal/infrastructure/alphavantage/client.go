package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/httpx"
	"forexsync/internal/infrastructure/logx"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://www.alphavantage.co/query"

const (
	fnSpot    = "CURRENCY_EXCHANGE_RATE"
	fnDaily   = "FX_DAILY"
	fnMonthly = "FX_MONTHLY"
)

// Client talks to the market data API. Clients derived with WithAPIKey share
// the parent's throttle.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func New(hc *httpx.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: baseURL}
}

// WithAPIKey returns a copy of c bound to key.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.apiKey = key
	return &cp
}

// Factory adapts c to the application's per-key constructor.
func (c *Client) Factory() application.MarketDataFactory {
	return func(key string) application.MarketData { return c.WithAPIKey(key) }
}

var _ application.MarketData = (*Client)(nil)

func (c *Client) FetchSpot(ctx context.Context, from, to string) (domain.Quote, error) {
	root, body, err := c.call(ctx, fnSpot, url.Values{
		"from_currency": {from},
		"to_currency":   {to},
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return parseSpot(root, body)
}

func (c *Client) FetchDailySeries(ctx context.Context, from, to string, size domain.OutputSize) (domain.Series, error) {
	if size == "" {
		size = domain.OutputSizeCompact
	}
	root, body, err := c.call(ctx, fnDaily, url.Values{
		"from_symbol": {from},
		"to_symbol":   {to},
		"outputsize":  {string(size)},
	})
	if err != nil {
		return domain.Series{}, err
	}
	return parseSeries(fnDaily, dailyKey, from, to, root, body)
}

func (c *Client) FetchMonthlySeries(ctx context.Context, from, to string) (domain.Series, error) {
	root, body, err := c.call(ctx, fnMonthly, url.Values{
		"from_symbol": {from},
		"to_symbol":   {to},
	})
	if err != nil {
		return domain.Series{}, err
	}
	return parseSeries(fnMonthly, monthlyKey, from, to, root, body)
}

// call performs one throttled request and classifies failures in order:
// transport, malformed body, then the upstream error keys.
func (c *Client) call(ctx context.Context, fn string, q url.Values) (map[string]json.RawMessage, json.RawMessage, error) {
	q.Set("function", fn)
	q.Set("apikey", c.apiKey)

	start := time.Now()
	body, err := c.http.Get(ctx, c.baseURL, q)
	logx.Named("alphavantage").Debug("request",
		zap.String("function", fn),
		zap.String("from", q.Get("from_currency")+q.Get("from_symbol")),
		zap.String("to", q.Get("to_currency")+q.Get("to_symbol")),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		te := &domain.TransportError{Op: fn, Err: err}
		var se *httpx.StatusError
		if errors.As(err, &se) {
			te.Raw = rawJSON(se.Body)
		}
		return nil, nil, te
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, nil, &domain.MalformedResponseError{Op: fn, Err: err, Raw: rawJSON(body)}
	}
	if root == nil {
		return nil, nil, &domain.MalformedResponseError{Op: fn, Err: errors.New("empty body"), Raw: rawJSON(body)}
	}
	for _, k := range []struct {
		key  string
		kind domain.APIErrorKind
	}{
		{"Error Message", domain.APIErrorHard},
		{"Note", domain.APIErrorRateLimit},
		{"Information", domain.APIErrorInformation},
	} {
		if v, ok := root[k.key]; ok {
			return nil, nil, &domain.APIError{Kind: k.kind, Message: text(v), Raw: body}
		}
	}
	return root, body, nil
}

// rawJSON returns b as a JSON value, quoting it as a string when it is not JSON.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return b
	}
	const limit = 4096
	if len(b) > limit {
		b = b[:limit]
	}
	out, _ := json.Marshal(string(b))
	return out
}

func text(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}
