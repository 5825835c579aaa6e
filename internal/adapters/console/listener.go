package console

import (
	"context"
	"fmt"
	"time"

	"hedgegraph/internal/chart"
	"hedgegraph/internal/domain"
	"hedgegraph/internal/ports"
)

// Listener reports episode output through the logger.
type Listener struct {
	logger ports.Logger
}

var _ ports.Listener = (*Listener)(nil)

func NewListener(logger ports.Logger) *Listener {
	return &Listener{logger: logger}
}

func (l *Listener) OnProgress(ctx context.Context, p domain.Progress) {
	l.logger.Info(ctx, "Loading", map[string]interface{}{
		"symbol":   p.Symbol,
		"progress": fmt.Sprintf("%.0f%%", p.Fraction*100),
		"pages":    fmt.Sprintf("%d/%d", p.PagesDone, p.PageCount),
		"failed":   p.Failed,
	})
}

func (l *Listener) OnComplete(ctx context.Context, ds chart.Dataset) {
	fields := map[string]interface{}{
		"symbol": ds.Symbol,
		"window": ds.Window.String(),
		"klines": len(ds.Klines),
	}
	if ds.Empty() {
		l.logger.Info(ctx, "No data in window", fields)
		return
	}
	fields["maxPrice"] = ds.Summary.MaxPrice
	fields["minPrice"] = ds.Summary.MinPrice
	fields["maxVolume"] = ds.Summary.MaxVolume
	fields["leftEdge"] = ds.Summary.LeftEdge.Format(time.RFC3339)
	fields["rightEdge"] = ds.Summary.RightEdge.Format(time.RFC3339)
	fields["gaps"] = ds.Gaps
	l.logger.Info(ctx, "Chart ready", fields)
}

func (l *Listener) OnError(ctx context.Context, err *domain.FetchError) {
	l.logger.Error(ctx, err, "Loading failed, use reload to retry", map[string]interface{}{
		"symbol": err.Symbol,
		"page":   err.Page,
	})
}
