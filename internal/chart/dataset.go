package chart

import (
	"sort"
	"time"

	"hedgegraph/internal/domain"
)

// Dataset is the rendering-ready result of a completed episode.
type Dataset struct {
	Symbol  string
	Window  domain.TimeWindow
	Klines  []*domain.Kline
	Summary Summary
	Gaps    int // missing buckets between consecutive klines
}

// Empty reports whether the window held no data at all.
func (d Dataset) Empty() bool {
	return len(d.Klines) == 0
}

// NewDataset orders the buffer by bucket start, drops repeated buckets and
// computes the summary. An empty buffer yields an empty dataset rather than
// an error: a window with no trading is a valid result.
func NewDataset(symbol string, window domain.TimeWindow, buffer []*domain.Kline) Dataset {
	klines := make([]*domain.Kline, 0, len(buffer))
	for _, k := range buffer {
		if k != nil {
			klines = append(klines, k)
		}
	}
	interval, origin := window.Interval(), window.Start()
	sort.SliceStable(klines, func(i, j int) bool {
		return klines[i].BucketStart(interval, origin).Before(klines[j].BucketStart(interval, origin))
	})

	deduped := klines[:0]
	for _, k := range klines {
		if n := len(deduped); n > 0 && deduped[n-1].BucketStart(interval, origin).Equal(k.BucketStart(interval, origin)) {
			deduped[n-1] = k
			continue
		}
		deduped = append(deduped, k)
	}

	ds := Dataset{Symbol: symbol, Window: window, Klines: deduped}
	if len(deduped) == 0 {
		return ds
	}

	// Non-empty, so Aggregate cannot fail.
	ds.Summary, _ = Aggregate(deduped)
	ds.Summary.LeftEdge = deduped[0].BucketStart(interval, origin)
	ds.Gaps = countGaps(deduped, interval, origin)
	return ds
}

func countGaps(klines []*domain.Kline, interval domain.Interval, origin time.Time) int {
	step := interval.Duration()
	if step <= 0 {
		return 0
	}
	gaps := 0
	for i := 1; i < len(klines); i++ {
		delta := klines[i].BucketStart(interval, origin).Sub(klines[i-1].BucketStart(interval, origin))
		if delta > step {
			gaps += int(delta/step) - 1
		}
	}
	return gaps
}
