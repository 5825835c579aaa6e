package ports

import (
	"context"

	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
)

// Listener receives episode output for display.
// Calls are made from the session goroutine and should return quickly.
type Listener interface {
	// OnProgress is called when an episode starts and after every page outcome.
	OnProgress(ctx context.Context, p domain.Progress)
	// OnComplete delivers the full dataset once the whole window is loaded.
	OnComplete(ctx context.Context, ds chart.Dataset)
	// OnError reports the failure that halted an episode.
	OnError(ctx context.Context, err *domain.FetchError)
}

// Exporter persists the dataset of an episode that was tagged for export.
type Exporter interface {
	Export(ctx context.Context, ds chart.Dataset) error
}
