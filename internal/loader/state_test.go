package loader

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegraph/internal/domain"
)

// hourly builds n consecutive hourly klines opening at from, closing on the
// next bucket boundary.
func hourly(from time.Time, n int) []*domain.Kline {
	out := make([]*domain.Kline, 0, n)
	for i := 0; i < n; i++ {
		open := from.Add(time.Duration(i) * time.Hour)
		out = append(out, &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour),
			Interval:  domain.Interval1h,
			High:      float64(10 + i),
			Volume:    float64(100 * (i + 1)),
		})
	}
	return out
}

func newState(t *testing.T, span time.Duration, pageSize int) *State {
	t.Helper()
	plan, err := NewPlan(mustWindow(t, t0, t0.Add(span), domain.Interval1h), pageSize)
	require.NoError(t, err)
	return NewState(plan)
}

func TestState_ConcreteScenario(t *testing.T) {
	s := newState(t, 4*time.Hour, 2)
	require.Equal(t, 2, s.Plan().PageCount())
	assert.Equal(t, StatusPending, s.Status())
	assert.Equal(t, 0.0, s.Progress())

	req, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, t0, req.From)
	assert.Equal(t, 2, req.Limit)

	s.RecordSuccess(hourly(t0, 2))
	assert.Equal(t, 0.5, s.Progress())

	req, ok = s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Hour), req.From)

	s.RecordSuccess(hourly(t0.Add(2*time.Hour), 2))
	assert.Equal(t, 1.0, s.Progress())
	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 4, s.Len())

	_, ok = s.NextRequest()
	assert.False(t, ok)
}

func TestState_CompletesOnLastPageOnly(t *testing.T) {
	s := newState(t, 6*time.Hour, 2)
	require.Equal(t, 3, s.Plan().PageCount())

	prev := s.Progress()
	for page := 0; page < 3; page++ {
		req, ok := s.NextRequest()
		require.True(t, ok, "page %d", page)
		assert.Equal(t, StatusPending, s.Status(), "page %d", page)

		s.RecordSuccess(hourly(req.From, 2))
		assert.GreaterOrEqual(t, s.Progress(), prev)
		prev = s.Progress()

		if page < 2 {
			assert.Less(t, s.Progress(), 1.0)
			assert.Equal(t, StatusPending, s.Status())
		}
	}

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 1.0, s.Progress())
}

func TestState_EmptyBatchForcesCompletion(t *testing.T) {
	s := newState(t, 10*time.Hour, 2)
	require.Equal(t, 5, s.Plan().PageCount())

	s.RecordSuccess(hourly(t0, 2))
	s.RecordSuccess(nil)

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 1.0, s.Progress())
	assert.False(t, s.HasError())
	assert.Equal(t, 2, s.Len())

	_, ok := s.NextRequest()
	assert.False(t, ok)
}

func TestState_EmptyFirstBatch(t *testing.T) {
	s := newState(t, 10*time.Hour, 2)

	s.RecordSuccess([]*domain.Kline{})

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 0, s.Len())
}

func TestState_FailureIsSticky(t *testing.T) {
	s := newState(t, 6*time.Hour, 2)
	s.RecordSuccess(hourly(t0, 2))
	before := s.Progress()

	fetchErr := errors.New("rate limited")
	s.RecordFailure(fetchErr)

	assert.Equal(t, StatusErrored, s.Status())
	assert.ErrorIs(t, s.Err(), fetchErr)
	_, ok := s.NextRequest()
	assert.False(t, ok)

	s.RecordSuccess(hourly(t0.Add(2*time.Hour), 2))
	assert.Equal(t, before, s.Progress())
	assert.Equal(t, 2, s.Len(), "partial buffer kept for diagnostics")
	_, ok = s.NextRequest()
	assert.False(t, ok)

	s.RecordFailure(errors.New("second failure"))
	assert.ErrorIs(t, s.Err(), fetchErr)
}

func TestState_TrimsOutsideWindow(t *testing.T) {
	s := newState(t, 3*time.Hour, 5)
	require.Equal(t, 1, s.Plan().PageCount())

	// The source pages by row count and may overshoot the window end.
	s.RecordSuccess(hourly(t0, 5))

	assert.Equal(t, StatusComplete, s.Status())
	require.Equal(t, 3, s.Len())
	assert.Equal(t, t0.Add(2*time.Hour), s.Klines()[2].OpenTime)
}

func TestState_DropsRepeatedKlines(t *testing.T) {
	s := newState(t, 6*time.Hour, 3)
	require.Equal(t, 2, s.Plan().PageCount())

	s.RecordSuccess(hourly(t0, 3))
	// Second page repeats the last kline of the first.
	s.RecordSuccess(hourly(t0.Add(2*time.Hour), 4))

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 6, s.Len())
}

func TestState_ReachingWindowEndCompletes(t *testing.T) {
	s := newState(t, 4*time.Hour, 3)
	require.Equal(t, 2, s.Plan().PageCount())

	// A short first page followed by a page that reaches the end.
	s.RecordSuccess(hourly(t0, 1))
	assert.Equal(t, StatusPending, s.Status())
	s.RecordSuccess(hourly(t0.Add(time.Hour), 3))

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, 4, s.Len())
}

func TestState_CursorFromCloseTimeOnly(t *testing.T) {
	s := newState(t, 4*time.Hour, 2)

	// Exchange convention: close is the last millisecond of the bucket.
	batch := []*domain.Kline{
		{CloseTime: t0.Add(time.Hour - time.Millisecond)},
		{CloseTime: t0.Add(2*time.Hour - time.Millisecond)},
	}
	s.RecordSuccess(batch)

	req, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Hour), req.From)
}

func TestState_CursorFromCloseTimeOnly_NextOpenConvention(t *testing.T) {
	s := newState(t, 4*time.Hour, 2)

	// Close equals the next bucket's open.
	batch := []*domain.Kline{
		{CloseTime: t0.Add(time.Hour)},
		{CloseTime: t0.Add(2 * time.Hour)},
	}
	s.RecordSuccess(batch)

	req, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Hour), req.From)
	assert.Equal(t, 2, s.Len())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "complete", StatusComplete.String())
	assert.Equal(t, "errored", StatusErrored.String())
}
