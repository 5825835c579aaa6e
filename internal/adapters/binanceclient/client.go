package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	spotURLProduction    = "https://api.binance.com"
	spotURLTestnet       = "https://testnet.binance.vision"
	futuresURLProduction = "https://fapi.binance.com"
	futuresURLTestnet    = "https://testnet.binancefuture.com"

	MarketSpot    = "spot"
	MarketFutures = "futures"

	symbolStatusTrading = "TRADING"
)

// Client implements ports.KlineFetcher and ports.SymbolLister using the go-binance library.
type Client struct {
	market        string
	spotClient    *binance.Client
	futuresClient *futures.Client
	logger        ports.Logger
}

var (
	_ ports.KlineFetcher = (*Client)(nil)
	_ ports.SymbolLister = (*Client)(nil)
)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Market     string // MarketSpot or MarketFutures
	BaseURL    string // Overrides the market's default endpoint when set
	Logger     ports.Logger
}

// klineRow is the subset of a spot or futures kline that the adapter translates.
type klineRow struct {
	OpenTime  int64
	CloseTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	market := strings.ToLower(cfg.Market)
	if market == "" {
		market = MarketSpot
	}

	c := &Client{market: market, logger: cfg.Logger}
	var baseURL string
	switch market {
	case MarketSpot:
		c.spotClient = binance.NewClient(cfg.APIKey, cfg.SecretKey)
		baseURL = pickURL(cfg, spotURLProduction, spotURLTestnet)
		// Set BaseURL directly instead of using global binance.UseTestnet
		c.spotClient.BaseURL = baseURL
	case MarketFutures:
		c.futuresClient = futures.NewClient(cfg.APIKey, cfg.SecretKey)
		baseURL = pickURL(cfg, futuresURLProduction, futuresURLTestnet)
		c.futuresClient.BaseURL = baseURL
	default:
		return nil, fmt.Errorf("unsupported market %q: %w", cfg.Market, ports.ErrConfigurationError)
	}

	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"market": market, "baseURL": baseURL, "testnet": cfg.UseTestnet})
	return c, nil
}

func pickURL(cfg Config, production, testnet string) string {
	switch {
	case cfg.BaseURL != "":
		return cfg.BaseURL
	case cfg.UseTestnet:
		return testnet
	default:
		return production
	}
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "market": c.market, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1001, -1006, -1007: // Disconnected, unexpected response, timeout waiting for backend
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrUnknownSymbol
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			// General classification for unmapped API errors
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, context.Canceled):
		// Abandoned episodes cancel their fetch; not worth an error line.
		c.logger.Debug(ctx, fmt.Sprintf("%s canceled", operation), fields)
		return fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, ports.ErrMalformedResponse), errors.Is(err, ports.ErrInvalidRequest):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	case strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	var err error
	if c.market == MarketFutures {
		err = c.futuresClient.NewPingService().Do(ctx)
	} else {
		err = c.spotClient.NewPingService().Do(ctx)
	}
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// FetchKlines retrieves up to limit klines opening at or after from.
func (c *Client) FetchKlines(ctx context.Context, symbol string, interval domain.Interval, from time.Time, limit int) ([]*domain.Kline, error) {
	op := "FetchKlines"
	if symbol == "" || limit <= 0 || !interval.Valid() {
		err := fmt.Errorf("symbol=%q interval=%q limit=%d: %w", symbol, interval, limit, ports.ErrInvalidRequest)
		return nil, c.handleError(ctx, err, op)
	}

	var rows []klineRow
	var err error
	if c.market == MarketFutures {
		rows, err = c.futuresKlines(ctx, symbol, interval, from, limit)
	} else {
		rows, err = c.spotKlines(ctx, symbol, interval, from, limit)
	}
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(rows))
	for _, row := range rows {
		dk, err := translateKline(row, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w: %w", ports.ErrMalformedResponse, err), op)
		}
		domainKlines = append(domainKlines, dk)
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"from":     from.UTC().Format(time.RFC3339),
		"limit":    limit,
		"received": len(domainKlines),
	})
	return domainKlines, nil
}

func (c *Client) spotKlines(ctx context.Context, symbol string, interval domain.Interval, from time.Time, limit int) ([]klineRow, error) {
	klines, err := c.spotClient.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		StartTime(from.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]klineRow, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			return nil, fmt.Errorf("received nil historical kline: %w", ports.ErrMalformedResponse)
		}
		rows = append(rows, klineRow{OpenTime: k.OpenTime, CloseTime: k.CloseTime, Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume})
	}
	return rows, nil
}

func (c *Client) futuresKlines(ctx context.Context, symbol string, interval domain.Interval, from time.Time, limit int) ([]klineRow, error) {
	klines, err := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		StartTime(from.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]klineRow, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			return nil, fmt.Errorf("received nil historical kline: %w", ports.ErrMalformedResponse)
		}
		rows = append(rows, klineRow{OpenTime: k.OpenTime, CloseTime: k.CloseTime, Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume})
	}
	return rows, nil
}

// ListSymbols returns the symbols currently trading on the configured market.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	op := "ListSymbols"
	var symbols []string
	if c.market == MarketFutures {
		info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		for _, s := range info.Symbols {
			if s.Status == symbolStatusTrading {
				symbols = append(symbols, s.Symbol)
			}
		}
	} else {
		info, err := c.spotClient.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		for _, s := range info.Symbols {
			if s.Status == symbolStatusTrading {
				symbols = append(symbols, s.Symbol)
			}
		}
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"count": len(symbols)})
	return symbols, nil
}

// --- Translation Helpers ---

func translateKline(row klineRow, symbol string, interval domain.Interval) (*domain.Kline, error) {
	open, err := strconv.ParseFloat(row.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", row.Open, err)
	}
	high, err := strconv.ParseFloat(row.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", row.High, err)
	}
	low, err := strconv.ParseFloat(row.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", row.Low, err)
	}
	cls, err := strconv.ParseFloat(row.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", row.Close, err)
	}
	vol, err := strconv.ParseFloat(row.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", row.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(row.OpenTime).UTC(),
		CloseTime: time.UnixMilli(row.CloseTime).UTC(),
		Symbol:    symbol,   // Use passed symbol as it's not in the kline payload
		Interval:  interval, // Use passed interval
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
