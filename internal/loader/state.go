package loader

import (
	"time"

	"hedgegraph/internal/domain"
)

// Status is the lifecycle position of a State.
type Status int

const (
	StatusPending Status = iota
	StatusComplete
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusComplete:
		return "complete"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// State drives a Plan to completion one page at a time.
//
// It is not safe for concurrent use; the owning session applies outcomes
// from a single goroutine. Complete and Errored are terminal: once reached,
// RecordSuccess and RecordFailure are no-ops and a new State must replace
// this one.
type State struct {
	plan      Plan
	cursor    time.Time
	pagesDone int
	hasError  bool
	err       error
	klines    []*domain.Kline
}

// NewState starts a pending state at the plan's first request.
func NewState(plan Plan) *State {
	return &State{
		plan:   plan,
		cursor: plan.First().From,
	}
}

// NextRequest returns the page to fetch, or false when nothing remains.
func (s *State) NextRequest() (PageRequest, bool) {
	if s.Status() != StatusPending {
		return PageRequest{}, false
	}
	return PageRequest{From: s.cursor, Limit: s.plan.PageSize()}, true
}

// RecordSuccess applies a fetched batch. Klines outside [cursor, end) are
// discarded; a batch with nothing left means the source has no more data in
// the window and completes the state early.
func (s *State) RecordSuccess(batch []*domain.Kline) {
	if s.Status() != StatusPending {
		return
	}

	window := s.plan.Window()
	kept := 0
	var last *domain.Kline
	for _, k := range batch {
		if k == nil {
			continue
		}
		if open := k.BucketStart(window.Interval(), window.Start()); open.Before(s.cursor) || !open.Before(window.End()) {
			continue
		}
		s.klines = append(s.klines, k)
		last = k
		kept++
	}

	if kept == 0 {
		s.pagesDone = s.plan.PageCount()
		return
	}

	s.cursor = last.BucketStart(window.Interval(), window.Start()).Add(window.Interval().Duration())
	s.pagesDone++
	if !s.cursor.Before(window.End()) {
		s.pagesDone = s.plan.PageCount()
	}
}

// RecordFailure halts the state. The buffer is kept for diagnostics.
func (s *State) RecordFailure(err error) {
	if s.Status() != StatusPending {
		return
	}
	s.hasError = true
	s.err = err
}

// Progress is pagesDone/pageCount capped at 1.
func (s *State) Progress() float64 {
	count := s.plan.PageCount()
	if count <= 0 {
		return 0
	}
	p := float64(s.pagesDone) / float64(count)
	if p > 1 {
		return 1
	}
	return p
}

func (s *State) Status() Status {
	switch {
	case s.hasError:
		return StatusErrored
	case s.pagesDone >= s.plan.PageCount():
		return StatusComplete
	default:
		return StatusPending
	}
}

func (s *State) Plan() Plan        { return s.plan }
func (s *State) Cursor() time.Time { return s.cursor }
func (s *State) PagesDone() int    { return s.pagesDone }
func (s *State) HasError() bool    { return s.hasError }
func (s *State) Err() error        { return s.err }
func (s *State) Len() int          { return len(s.klines) }

// Klines returns the accumulated buffer in fetch order. Callers must not
// modify it while the state is pending.
func (s *State) Klines() []*domain.Kline {
	return s.klines
}
