package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository archives klines in SQLite. It implements ports.KlineRepository,
// ports.Exporter and, for offline replay, ports.KlineFetcher.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var (
	_ ports.KlineRepository = (*Repository)(nil)
	_ ports.KlineFetcher    = (*Repository)(nil)
	_ ports.Exporter        = (*Repository)(nil)
)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/klines.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection keeps writers from tripping over each other.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Kline archive ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS klines (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		open_time INTEGER NOT NULL,  -- unix milliseconds
		close_time INTEGER NOT NULL, -- unix milliseconds
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- KlineRepository Implementation ---

// SaveKlines upserts klines in one transaction and returns how many were written.
func (r *Repository) SaveKlines(ctx context.Context, klines []*domain.Kline) (int, error) {
	const query = `
	INSERT OR REPLACE INTO klines (symbol, interval, open_time, close_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin kline transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare kline insert: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, k := range klines {
		if k == nil {
			continue
		}
		if k.Symbol == "" || !k.Interval.Valid() {
			return 0, fmt.Errorf("kline at %s lacks symbol or interval: %w", k.OpenTime.Format(time.RFC3339), ports.ErrInvalidRequest)
		}
		_, err := stmt.ExecContext(ctx,
			k.Symbol, string(k.Interval), k.OpenTime.UnixMilli(), k.CloseTime.UnixMilli(),
			k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to insert kline %s %s at %s: %w: %w", k.Symbol, k.Interval, k.OpenTime.Format(time.RFC3339), ports.ErrUpdateFailed, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit klines: %w: %w", ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Klines archived", map[string]interface{}{"count": saved})
	return saved, nil
}

// FindRange returns stored klines with OpenTime in [from, to), ordered by open time.
func (r *Repository) FindRange(ctx context.Context, symbol string, interval domain.Interval, from, to time.Time) ([]*domain.Kline, error) {
	const query = `
	SELECT symbol, interval, open_time, close_time, open, high, low, close, volume
	FROM klines
	WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time < ?
	ORDER BY open_time ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol, string(interval), from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query klines for %s %s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	return collectKlines(rows)
}

// --- KlineFetcher Implementation ---

// FetchKlines serves a page from the archive the same way the exchange would:
// up to limit klines opening at or after from, oldest first.
func (r *Repository) FetchKlines(ctx context.Context, symbol string, interval domain.Interval, from time.Time, limit int) ([]*domain.Kline, error) {
	const query = `
	SELECT symbol, interval, open_time, close_time, open, high, low, close, volume
	FROM klines
	WHERE symbol = ? AND interval = ? AND open_time >= ?
	ORDER BY open_time ASC
	LIMIT ?`

	if limit <= 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ports.ErrInvalidRequest)
	}
	rows, err := r.db.QueryContext(ctx, query, symbol, string(interval), from.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived page for %s %s: %w: %w", symbol, interval, ports.ErrQueryFailed, err)
	}
	return collectKlines(rows)
}

// --- Exporter Implementation ---

// Export archives the dataset's klines.
func (r *Repository) Export(ctx context.Context, ds chart.Dataset) error {
	if ds.Empty() {
		r.logger.Debug(ctx, "Nothing to archive", map[string]interface{}{"symbol": ds.Symbol})
		return nil
	}
	n, err := r.SaveKlines(ctx, ds.Klines)
	if err != nil {
		return fmt.Errorf("archiving %s: %w: %w", ds.Symbol, ports.ErrExportFailed, err)
	}
	r.logger.Info(ctx, "Dataset archived", map[string]interface{}{"symbol": ds.Symbol, "window": ds.Window.String(), "klines": n})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanKline scans a row into a domain.Kline struct.
func scanKline(s scanner) (*domain.Kline, error) {
	k := &domain.Kline{}
	var interval string
	var openMs, closeMs int64
	err := s.Scan(&k.Symbol, &interval, &openMs, &closeMs, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume)
	if err != nil {
		return nil, err
	}
	k.Interval = domain.Interval(interval)
	k.OpenTime = time.UnixMilli(openMs).UTC()
	k.CloseTime = time.UnixMilli(closeMs).UTC()
	return k, nil
}

func collectKlines(rows *sql.Rows) ([]*domain.Kline, error) {
	defer rows.Close()

	klines := make([]*domain.Kline, 0)
	for rows.Next() {
		k, err := scanKline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kline: %w", err)
		}
		klines = append(klines, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kline rows: %w", err)
	}
	return klines, nil
}
