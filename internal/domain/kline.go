package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval (last millisecond of the bucket)
	Symbol    string    // Trading symbol
	Interval  Interval  // Kline interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
}

// BucketStart is the open time of k's bucket. Without an open time it is
// derived from the close time and floored to the interval grid anchored at
// origin, so a close on the bucket's last millisecond and a close on the
// next bucket's open both map to the same start.
func (k *Kline) BucketStart(interval Interval, origin time.Time) time.Time {
	if !k.OpenTime.IsZero() {
		return k.OpenTime
	}
	step := interval.Duration().Milliseconds()
	if step <= 0 {
		return k.CloseTime
	}
	offset := k.CloseTime.UnixMilli() + 1 - step - origin.UnixMilli()
	n := offset / step
	if offset%step < 0 {
		n--
	}
	return time.UnixMilli(origin.UnixMilli() + n*step).UTC()
}
