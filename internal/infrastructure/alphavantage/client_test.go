package alphavantage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/alphavantage"
	"forexsync/internal/infrastructure/httpx"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func client(t *testing.T, code int, body string) (*alphavantage.Client, *[]*http.Request) {
	t.Helper()
	var reqs []*http.Request
	hc := httpx.New(6000, 2*time.Second)
	hc.HTTP.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		reqs = append(reqs, r)
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})
	return alphavantage.New(hc, "https://av.example/query").WithAPIKey("demo"), &reqs
}

const spotOK = `{
  "Realtime Currency Exchange Rate": {
    "1. From_Currency Code": "USD",
    "2. From_Currency Name": "United States Dollar",
    "3. To_Currency Code": "UGX",
    "4. To_Currency Name": "Ugandan Shilling",
    "5. Exchange Rate": "3750.50000000",
    "6. Last Refreshed": "2025-01-15 06:00:01",
    "7. Time Zone": "UTC",
    "8. Bid Price": "3750.40000000",
    "9. Ask Price": "3750.60000000"
  }
}`

func TestFetchSpot_OK(t *testing.T) {
	c, reqs := client(t, 200, spotOK)

	q, err := c.FetchSpot(context.Background(), "USD", "UGX")
	require.NoError(t, err)
	require.Equal(t, "USD", q.From)
	require.Equal(t, "UGX", q.To)
	require.True(t, q.ExchangeRate.Equal(decimal.RequireFromString("3750.5")))
	require.True(t, q.BidPrice.Equal(decimal.RequireFromString("3750.4")))
	require.True(t, q.AskPrice.Equal(decimal.RequireFromString("3750.6")))
	require.Equal(t, "2025-01-15 06:00:01", q.LastRefreshed)
	require.JSONEq(t, spotOK, string(q.Raw))

	require.Len(t, *reqs, 1)
	query := (*reqs)[0].URL.Query()
	require.Equal(t, "CURRENCY_EXCHANGE_RATE", query.Get("function"))
	require.Equal(t, "USD", query.Get("from_currency"))
	require.Equal(t, "UGX", query.Get("to_currency"))
	require.Equal(t, "demo", query.Get("apikey"))
}

func TestFetchSpot_AbsentQuotesAreZero(t *testing.T) {
	c, _ := client(t, 200, `{"Realtime Currency Exchange Rate": {"1. From_Currency Code": "USD", "5. Exchange Rate": "3750.5", "8. Bid Price": "-"}}`)

	q, err := c.FetchSpot(context.Background(), "USD", "UGX")
	require.NoError(t, err)
	require.True(t, q.ExchangeRate.Equal(decimal.RequireFromString("3750.5")))
	require.True(t, q.BidPrice.IsZero())
	require.True(t, q.AskPrice.IsZero())
}

func TestFetchSpot_MissingExchangeRate(t *testing.T) {
	for name, body := range map[string]string{
		"absent": `{"Realtime Currency Exchange Rate": {"1. From_Currency Code": "USD", "3. To_Currency Code": "EUR"}}`,
		"empty":  `{"Realtime Currency Exchange Rate": {"5. Exchange Rate": ""}}`,
		"bare":   `{"Realtime Currency Exchange Rate": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := client(t, 200, body)

			_, err := c.FetchSpot(context.Background(), "USD", "EUR")
			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, "5. Exchange Rate", pe.Field)
			require.JSONEq(t, body, string(pe.Raw))
		})
	}
}

func TestFetchSpot_ErrorClassification(t *testing.T) {
	cases := []struct {
		name  string
		code  int
		body  string
		check func(t *testing.T, err error)
	}{
		{
			name: "hard error",
			code: 200,
			body: `{"Error Message": "Invalid API call."}`,
			check: func(t *testing.T, err error) {
				var ae *domain.APIError
				require.ErrorAs(t, err, &ae)
				require.Equal(t, domain.APIErrorHard, ae.Kind)
				require.False(t, ae.RateLimited())
				require.Equal(t, "Invalid API call.", ae.Error())
			},
		},
		{
			name: "rate limit note",
			code: 200,
			body: `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			check: func(t *testing.T, err error) {
				var ae *domain.APIError
				require.ErrorAs(t, err, &ae)
				require.True(t, ae.RateLimited())
				require.Contains(t, ae.Message, "call frequency")
				require.NotEmpty(t, domain.RawPayload(err))
			},
		},
		{
			name: "information",
			code: 200,
			body: `{"Information": "Please subscribe to a premium plan."}`,
			check: func(t *testing.T, err error) {
				var ae *domain.APIError
				require.ErrorAs(t, err, &ae)
				require.Equal(t, domain.APIErrorInformation, ae.Kind)
				require.False(t, ae.RateLimited())
			},
		},
		{
			name: "error wins over note",
			code: 200,
			body: `{"Note": "slow down", "Error Message": "bad symbol"}`,
			check: func(t *testing.T, err error) {
				var ae *domain.APIError
				require.ErrorAs(t, err, &ae)
				require.Equal(t, domain.APIErrorHard, ae.Kind)
			},
		},
		{
			name: "malformed",
			code: 200,
			body: `<html>maintenance</html>`,
			check: func(t *testing.T, err error) {
				var me *domain.MalformedResponseError
				require.ErrorAs(t, err, &me)
				require.JSONEq(t, `"<html>maintenance</html>"`, string(me.Raw))
			},
		},
		{
			name: "non object",
			code: 200,
			body: `[1,2]`,
			check: func(t *testing.T, err error) {
				var me *domain.MalformedResponseError
				require.ErrorAs(t, err, &me)
			},
		},
		{
			name: "non 2xx",
			code: 502,
			body: `bad gateway`,
			check: func(t *testing.T, err error) {
				var te *domain.TransportError
				require.ErrorAs(t, err, &te)
				var se *httpx.StatusError
				require.ErrorAs(t, err, &se)
				require.Equal(t, 502, se.Code)
			},
		},
		{
			name: "missing root",
			code: 200,
			body: `{"Meta Data": {}}`,
			check: func(t *testing.T, err error) {
				var pe *domain.ParseError
				require.ErrorAs(t, err, &pe)
				require.Equal(t, "Realtime Currency Exchange Rate", pe.Field)
			},
		},
		{
			name: "unparsable rate",
			code: 200,
			body: `{"Realtime Currency Exchange Rate": {"5. Exchange Rate": "abc"}}`,
			check: func(t *testing.T, err error) {
				var pe *domain.ParseError
				require.ErrorAs(t, err, &pe)
				require.Equal(t, "5. Exchange Rate", pe.Field)
			},
		},
		{
			name: "numeric field",
			code: 200,
			body: `{"Realtime Currency Exchange Rate": {"5. Exchange Rate": 1.5}}`,
			check: func(t *testing.T, err error) {
				var pe *domain.ParseError
				require.ErrorAs(t, err, &pe)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := client(t, tc.code, tc.body)
			_, err := c.FetchSpot(context.Background(), "USD", "UGX")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestFetchSpot_TransportFailure(t *testing.T) {
	hc := httpx.New(6000, time.Second)
	hc.HTTP.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	c := alphavantage.New(hc, "https://av.example/query").WithAPIKey("demo")

	_, err := c.FetchSpot(context.Background(), "USD", "UGX")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	require.Contains(t, err.Error(), "connection refused")
	require.Nil(t, domain.RawPayload(err))
}

const dailyOK = `{
  "Meta Data": {"1. Information": "Forex Daily Prices (open, high, low, close)"},
  "Time Series FX (Daily)": {
    "2025-01-14": {"1. open": "3748.0", "2. high": "3752.5", "3. low": "3745.1", "4. close": "3750.5"},
    "2025-01-13": {"1. open": "3740.0", "2. high": "3749.0", "3. low": "3739.0", "4. close": "3748.0"}
  }
}`

func TestFetchDailySeries_OK(t *testing.T) {
	c, reqs := client(t, 200, dailyOK)

	s, err := c.FetchDailySeries(context.Background(), "USD", "UGX", domain.OutputSizeFull)
	require.NoError(t, err)
	require.Equal(t, []civil.Date{{Year: 2025, Month: 1, Day: 13}, {Year: 2025, Month: 1, Day: 14}}, s.Dates())
	p := s.Points[civil.Date{Year: 2025, Month: 1, Day: 14}]
	require.True(t, p.Close.Equal(decimal.RequireFromString("3750.5")))
	require.True(t, p.High.Equal(decimal.RequireFromString("3752.5")))
	require.True(t, p.Low.Equal(decimal.RequireFromString("3745.1")))

	query := (*reqs)[0].URL.Query()
	require.Equal(t, "FX_DAILY", query.Get("function"))
	require.Equal(t, "USD", query.Get("from_symbol"))
	require.Equal(t, "UGX", query.Get("to_symbol"))
	require.Equal(t, "full", query.Get("outputsize"))
}

func TestFetchDailySeries_BadDateKey(t *testing.T) {
	c, _ := client(t, 200, `{"Time Series FX (Daily)": {"yesterday": {"4. close": "1"}}}`)

	_, err := c.FetchDailySeries(context.Background(), "USD", "UGX", domain.OutputSizeCompact)
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "yesterday", pe.Field)
}

func TestFetchDailySeries_EmptySeries(t *testing.T) {
	c, _ := client(t, 200, `{"Time Series FX (Daily)": {}}`)

	s, err := c.FetchDailySeries(context.Background(), "USD", "UGX", domain.OutputSizeCompact)
	require.NoError(t, err)
	require.Empty(t, s.Points)
}

func TestFetchMonthlySeries_OK(t *testing.T) {
	c, reqs := client(t, 200, `{"Time Series FX (Monthly)": {
		"2024-12-31": {"1. open": "1.20", "2. high": "1.30", "3. low": "1.18", "4. close": "1.25"}
	}}`)

	s, err := c.FetchMonthlySeries(context.Background(), "GBP", "USD")
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	require.Equal(t, "FX_MONTHLY", (*reqs)[0].URL.Query().Get("function"))
	require.Empty(t, (*reqs)[0].URL.Query().Get("outputsize"))
}

func TestWithAPIKey_SharesThrottle(t *testing.T) {
	hc := httpx.New(60, time.Second)
	hc.HTTP.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(spotOK)), Header: make(http.Header), Request: r}, nil
	})
	base := alphavantage.New(hc, "")

	start := time.Now()
	_, err := base.WithAPIKey("a").FetchSpot(context.Background(), "USD", "UGX")
	require.NoError(t, err)
	_, err = base.WithAPIKey("b").FetchSpot(context.Background(), "USD", "UGX")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), time.Second)
}
