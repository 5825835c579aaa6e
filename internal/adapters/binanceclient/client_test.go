package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// klinesHandler serves a two-row klines payload and records the query it saw.
func klinesHandler(t *testing.T, path string, seen *http.Request, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		*seen = *r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

const twoHourlyRows = `[
	[1704067200000,"100.5","110.0","99.0","105.0","12.5",1704070799999,"1300.0",42,"6.0","600.0","0"],
	[1704070800000,"105.0","120.0","104.0","118.0","20.0",1704074399999,"2300.0",57,"9.0","900.0","0"]
]`

func TestFetchKlines(t *testing.T) {
	tests := []struct {
		market string
		path   string
	}{
		{market: MarketSpot, path: "/api/v3/klines"},
		{market: MarketFutures, path: "/fapi/v1/klines"},
	}

	for _, tt := range tests {
		t.Run(tt.market, func(t *testing.T) {
			var seen http.Request
			srv := httptest.NewServer(klinesHandler(t, tt.path, &seen, twoHourlyRows))
			defer srv.Close()

			c, err := New(Config{Market: tt.market, BaseURL: srv.URL, Logger: &mockLogger{}})
			require.NoError(t, err)

			klines, err := c.FetchKlines(context.Background(), "BTCUSDT", domain.Interval1h, t0, 2)
			require.NoError(t, err)

			q := seen.URL.Query()
			assert.Equal(t, "BTCUSDT", q.Get("symbol"))
			assert.Equal(t, "1h", q.Get("interval"))
			assert.Equal(t, "1704067200000", q.Get("startTime"))
			assert.Equal(t, "2", q.Get("limit"))

			require.Len(t, klines, 2)
			assert.Equal(t, t0, klines[0].OpenTime)
			assert.Equal(t, t0.Add(time.Hour-time.Millisecond), klines[0].CloseTime)
			assert.Equal(t, "BTCUSDT", klines[0].Symbol)
			assert.Equal(t, domain.Interval1h, klines[0].Interval)
			assert.Equal(t, 100.5, klines[0].Open)
			assert.Equal(t, 110.0, klines[0].High)
			assert.Equal(t, 99.0, klines[0].Low)
			assert.Equal(t, 105.0, klines[0].Close)
			assert.Equal(t, 12.5, klines[0].Volume)
			assert.Equal(t, 120.0, klines[1].High)
		})
	}
}

func TestFetchKlines_MalformedNumber(t *testing.T) {
	var seen http.Request
	body := `[[1704067200000,"abc","110.0","99.0","105.0","12.5",1704070799999,"1300.0",42,"6.0","600.0","0"]]`
	srv := httptest.NewServer(klinesHandler(t, "/api/v3/klines", &seen, body))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = c.FetchKlines(context.Background(), "BTCUSDT", domain.Interval1h, t0, 1)
	assert.ErrorIs(t, err, ports.ErrMalformedResponse)
}

func TestFetchKlines_InvalidArguments(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:0", Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = c.FetchKlines(context.Background(), "", domain.Interval1h, t0, 10)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = c.FetchKlines(context.Background(), "BTCUSDT", domain.Interval1h, t0, 0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = c.FetchKlines(context.Background(), "BTCUSDT", domain.Interval("1M"), t0, 10)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestHandleError(t *testing.T) {
	c, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limit", err: &common.APIError{Code: -1003, Message: "Too many requests"}, want: ports.ErrRateLimited},
		{name: "invalid symbol", err: &common.APIError{Code: -1121, Message: "Invalid symbol."}, want: ports.ErrUnknownSymbol},
		{name: "bad parameter", err: &common.APIError{Code: -1100, Message: "Illegal characters"}, want: ports.ErrInvalidRequest},
		{name: "backend timeout", err: &common.APIError{Code: -1007, Message: "Timeout waiting for response"}, want: ports.ErrExchangeUnavailable},
		{name: "unmapped api code", err: &common.APIError{Code: -9999, Message: "???"}, want: ports.ErrUnknown},
		{name: "canceled", err: context.Canceled, want: ports.ErrContextCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: ports.ErrTimeout},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), want: ports.ErrConnectionFailed},
		{name: "other", err: errors.New("weird"), want: ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(context.Background(), tt.err, "FetchKlines")
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error stays in the chain")
		})
	}

	assert.NoError(t, c.handleError(context.Background(), nil, "FetchKlines"))
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is required")

	_, err = New(Config{Market: "options", Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	c, err := New(Config{UseTestnet: true, Market: MarketFutures, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, futuresURLTestnet, c.futuresClient.BaseURL)

	c, err = New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, spotURLProduction, c.spotClient.BaseURL)
}
