package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hedgegraph/internal/chart"
	"hedgegraph/internal/ports"
	"hedgegraph/internal/utils"
)

// CSVExporter writes each exported dataset to its own CSV file.
type CSVExporter struct {
	dir    string
	logger ports.Logger
}

var (
	_ ports.Exporter = (*CSVExporter)(nil)
	_ ports.Exporter = Multi(nil)
)

// Config holds configuration for the CSV exporter.
type Config struct {
	Dir    string
	Logger ports.Logger
}

// NewCSVExporter creates the export directory if needed.
func NewCSVExporter(cfg Config) (*CSVExporter, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV exporter")
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory '%s': %w", dir, err)
	}
	return &CSVExporter{dir: dir, logger: cfg.Logger}, nil
}

// FileName is <SYMBOL>-<startMs>-<endMs>-<interval>.csv.
func FileName(ds chart.Dataset) string {
	return fmt.Sprintf("%s-%d-%d-%s.csv",
		ds.Symbol, ds.Window.Start().UnixMilli(), ds.Window.End().UnixMilli(), ds.Window.Interval())
}

// Export writes the dataset, including an empty one, which yields a header-only file.
func (e *CSVExporter) Export(ctx context.Context, ds chart.Dataset) error {
	path := filepath.Join(e.dir, FileName(ds))
	if err := utils.WriteKlinesToCSV(ds.Klines, path); err != nil {
		return fmt.Errorf("writing %s: %w: %w", path, ports.ErrExportFailed, err)
	}
	e.logger.Info(ctx, "Exported to file", map[string]interface{}{"path": path, "klines": len(ds.Klines)})
	return nil
}

// Multi hands a dataset to every exporter in order. All exporters run even
// when an earlier one fails; the failures are joined.
type Multi []ports.Exporter

func (m Multi) Export(ctx context.Context, ds chart.Dataset) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, ds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
