package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "hedgegraph-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func hourly(symbol string, from time.Time, n int, close float64) []*domain.Kline {
	klines := make([]*domain.Kline, n)
	for i := range klines {
		open := from.Add(time.Duration(i) * time.Hour)
		klines[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour - time.Millisecond),
			Symbol:    symbol,
			Interval:  domain.Interval1h,
			Open:      close - 1,
			High:      close + 1,
			Low:       close - 2,
			Close:     close,
			Volume:    float64(10 * (i + 1)),
		}
	}
	return klines
}

func TestRepository_SaveAndFindRange(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	n, err := repo.SaveKlines(ctx, hourly("BTCUSDT", t0, 5, 100))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = repo.SaveKlines(ctx, hourly("ETHUSDT", t0, 5, 50))
	require.NoError(t, err)

	tests := []struct {
		name      string
		symbol    string
		interval  domain.Interval
		from, to  time.Time
		wantCount int
	}{
		{name: "whole range", symbol: "BTCUSDT", interval: domain.Interval1h, from: t0, to: t0.Add(5 * time.Hour), wantCount: 5},
		{name: "end is exclusive", symbol: "BTCUSDT", interval: domain.Interval1h, from: t0.Add(time.Hour), to: t0.Add(3 * time.Hour), wantCount: 2},
		{name: "other symbol", symbol: "ETHUSDT", interval: domain.Interval1h, from: t0, to: t0.Add(2 * time.Hour), wantCount: 2},
		{name: "other interval", symbol: "BTCUSDT", interval: domain.Interval1m, from: t0, to: t0.Add(5 * time.Hour), wantCount: 0},
		{name: "outside", symbol: "BTCUSDT", interval: domain.Interval1h, from: t0.Add(-5 * time.Hour), to: t0, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindRange(ctx, tt.symbol, tt.interval, tt.from, tt.to)
			require.NoError(t, err)
			require.Len(t, got, tt.wantCount)
			for i, k := range got {
				assert.Equal(t, tt.symbol, k.Symbol)
				assert.False(t, k.OpenTime.Before(tt.from))
				assert.True(t, k.OpenTime.Before(tt.to))
				if i > 0 {
					assert.True(t, got[i-1].OpenTime.Before(k.OpenTime), "ordered by open time")
				}
			}
		})
	}
}

func TestRepository_SaveKlinesRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	in := hourly("BTCUSDT", t0, 1, 42.5)[0]
	_, err := repo.SaveKlines(ctx, []*domain.Kline{in})
	require.NoError(t, err)

	got, err := repo.FindRange(ctx, "BTCUSDT", domain.Interval1h, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *in, *got[0])
}

func TestRepository_SaveKlinesUpserts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.SaveKlines(ctx, hourly("BTCUSDT", t0, 3, 100))
	require.NoError(t, err)
	_, err = repo.SaveKlines(ctx, hourly("BTCUSDT", t0.Add(time.Hour), 3, 200))
	require.NoError(t, err)

	got, err := repo.FindRange(ctx, "BTCUSDT", domain.Interval1h, t0, t0.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 4, "overlapping buckets are replaced, not duplicated")
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 200.0, got[1].Close)
	assert.Equal(t, 200.0, got[3].Close)
}

func TestRepository_SaveKlinesRejectsIncomplete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	klines := hourly("BTCUSDT", t0, 3, 100)
	klines[2].Symbol = ""

	_, err := repo.SaveKlines(ctx, klines)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	got, err := repo.FindRange(ctx, "BTCUSDT", domain.Interval1h, t0, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch is rolled back")
}

func TestRepository_FetchKlines(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.SaveKlines(ctx, hourly("BTCUSDT", t0, 5, 100))
	require.NoError(t, err)

	page, err := repo.FetchKlines(ctx, "BTCUSDT", domain.Interval1h, t0.Add(time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, t0.Add(time.Hour), page[0].OpenTime)
	assert.Equal(t, t0.Add(2*time.Hour), page[1].OpenTime)

	page, err = repo.FetchKlines(ctx, "BTCUSDT", domain.Interval1h, t0.Add(5*time.Hour), 2)
	require.NoError(t, err)
	assert.Empty(t, page, "past the archived data the page is empty")

	_, err = repo.FetchKlines(ctx, "BTCUSDT", domain.Interval1h, t0, 0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestRepository_Export(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	window, err := domain.NewTimeWindow(t0, t0.Add(4*time.Hour), domain.Interval1h)
	require.NoError(t, err)

	require.NoError(t, repo.Export(ctx, chart.NewDataset("BTCUSDT", window, nil)))

	ds := chart.NewDataset("BTCUSDT", window, hourly("BTCUSDT", t0, 4, 100))
	require.NoError(t, repo.Export(ctx, ds))

	got, err := repo.FindRange(ctx, "BTCUSDT", domain.Interval1h, window.Start(), window.End())
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}
