// Package chart folds a completed kline buffer into what the renderer needs.
package chart

import (
	"errors"
	"time"

	"hedgegraph/internal/domain"
)

// ErrEmptyDataset is returned by Aggregate for an empty buffer.
var ErrEmptyDataset = errors.New("cannot aggregate an empty kline buffer")

// Summary carries the axis extents for a loaded window.
type Summary struct {
	MaxPrice  float64   // highest High
	MinPrice  float64   // lowest Low
	MaxVolume float64   // highest Volume
	LeftEdge  time.Time // OpenTime of the first kline
	RightEdge time.Time // CloseTime of the last kline
	Count     int
}

// Aggregate computes the summary in a single pass. Klines are expected in
// chronological order; nil entries are skipped.
func Aggregate(klines []*domain.Kline) (Summary, error) {
	var s Summary
	for _, k := range klines {
		if k == nil {
			continue
		}
		if s.Count == 0 {
			s.MaxPrice, s.MinPrice, s.MaxVolume = k.High, k.Low, k.Volume
			s.LeftEdge = k.OpenTime
		}
		if k.High > s.MaxPrice {
			s.MaxPrice = k.High
		}
		if k.Low < s.MinPrice {
			s.MinPrice = k.Low
		}
		if k.Volume > s.MaxVolume {
			s.MaxVolume = k.Volume
		}
		s.RightEdge = k.CloseTime
		s.Count++
	}
	if s.Count == 0 {
		return Summary{}, ErrEmptyDataset
	}
	return s, nil
}
