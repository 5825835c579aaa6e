// Package loader splits a time window into row-limited page requests and
// tracks their execution.
package loader

import (
	"fmt"
	"time"

	"hedgegraph/internal/domain"
)

// PageRequest asks the fetch capability for up to Limit klines starting at From.
type PageRequest struct {
	From  time.Time
	Limit int
}

// Plan is the page layout for one window.
type Plan struct {
	window    domain.TimeWindow
	pageSize  int
	pageCount int
}

// NewPlan computes how many pages of pageSize klines cover the window.
func NewPlan(window domain.TimeWindow, pageSize int) (Plan, error) {
	if pageSize <= 0 {
		return Plan{}, &domain.ValidationError{Field: "page_size", Reason: fmt.Sprintf("must be positive, got %d", pageSize)}
	}
	step := window.Interval().Duration()
	if step <= 0 {
		return Plan{}, &domain.ValidationError{Field: "interval", Reason: fmt.Sprintf("unsupported interval %q", window.Interval())}
	}
	if !window.Start().Before(window.End()) {
		return Plan{}, &domain.ValidationError{Field: "window", Reason: "start must be before end"}
	}

	// Milliseconds, not time.Duration: spans past ~292 years overflow Sub.
	span := window.End().UnixMilli() - window.Start().UnixMilli()
	pageSpan := step.Milliseconds() * int64(pageSize)
	pageCount := span / pageSpan
	if span%pageSpan != 0 {
		pageCount++
	}
	if pageCount < 1 {
		pageCount = 1
	}

	return Plan{window: window, pageSize: pageSize, pageCount: int(pageCount)}, nil
}

func (p Plan) Window() domain.TimeWindow { return p.window }
func (p Plan) PageSize() int             { return p.pageSize }
func (p Plan) PageCount() int            { return p.pageCount }

// First is the request that opens the episode: the window's left edge.
func (p Plan) First() PageRequest {
	return PageRequest{From: p.window.Start(), Limit: p.pageSize}
}
