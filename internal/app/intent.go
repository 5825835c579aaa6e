package app

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hedgegraph/internal/domain"
)

// Intent is a user request delivered to a Session. The set is closed:
// SelectSymbol, ChooseRange, Drag and Reload.
type Intent interface {
	intent()
}

// SelectSymbol switches the active symbol and loads its default window.
type SelectSymbol struct {
	Symbol string
}

// ChooseRange loads an explicit window. Export additionally hands the
// completed dataset to the exporter. A non-empty Symbol switches symbols in
// the same step.
type ChooseRange struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval domain.Interval
	Export   bool
}

// Drag zooms to a selection made on the chart's time axis.
type Drag struct {
	Bounds Bounds
}

// Reload restarts the active window from scratch, e.g. after a failure.
type Reload struct{}

func (SelectSymbol) intent() {}
func (ChooseRange) intent()  {}
func (Drag) intent()         {}
func (Reload) intent()       {}

// maxBoundMs keeps the float-to-int64 conversion exact.
const maxBoundMs = 1 << 53

// Bounds are time-axis values in Unix milliseconds, as plotted.
type Bounds struct {
	From float64
	To   float64
}

// Window converts the bounds to a window at the given interval.
func (b Bounds) Window(interval domain.Interval) (domain.TimeWindow, error) {
	for _, v := range []float64{b.From, b.To} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxBoundMs {
			return domain.TimeWindow{}, &domain.ValidationError{Field: "bounds", Reason: fmt.Sprintf("%v is not a usable time", v)}
		}
	}
	return domain.NewTimeWindow(time.UnixMilli(int64(b.From)), time.UnixMilli(int64(b.To)), interval)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
