package domain

import (
	"fmt"
	"time"
)

// TimeWindow is the half-open range [Start, End) to load at a given interval.
// Values are immutable; build a new one with NewTimeWindow for every change.
type TimeWindow struct {
	start    time.Time
	end      time.Time
	interval Interval
}

// NewTimeWindow validates and builds a window. It is the only place where
// user-provided bounds are checked before loading starts.
func NewTimeWindow(start, end time.Time, interval Interval) (TimeWindow, error) {
	if !interval.Valid() {
		return TimeWindow{}, &ValidationError{Field: "interval", Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}
	if start.IsZero() || end.IsZero() {
		return TimeWindow{}, &ValidationError{Field: "window", Reason: "start and end must be set"}
	}
	if !start.Before(end) {
		return TimeWindow{}, &ValidationError{
			Field:  "window",
			Reason: fmt.Sprintf("start %s must be before end %s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
		}
	}
	return TimeWindow{start: start.UTC(), end: end.UTC(), interval: interval}, nil
}

// LookbackWindow builds the window of the given length ending at the last
// interval boundary at or before now.
func LookbackWindow(now time.Time, lookback time.Duration, interval Interval) (TimeWindow, error) {
	d := interval.Duration()
	if d <= 0 {
		return TimeWindow{}, &ValidationError{Field: "interval", Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}
	end := now.UTC().Truncate(d)
	return NewTimeWindow(end.Add(-lookback), end, interval)
}

func (w TimeWindow) Start() time.Time    { return w.start }
func (w TimeWindow) End() time.Time      { return w.end }
func (w TimeWindow) Interval() Interval  { return w.interval }
func (w TimeWindow) Span() time.Duration { return w.end.Sub(w.start) }
func (w TimeWindow) IsZero() bool        { return w.start.IsZero() && w.end.IsZero() }
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// WithInterval returns a copy of the window at another granularity.
func (w TimeWindow) WithInterval(interval Interval) (TimeWindow, error) {
	return NewTimeWindow(w.start, w.end, interval)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s) %s", w.start.Format(time.RFC3339), w.end.Format(time.RFC3339), w.interval)
}
