package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKline_BucketStart(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		kline  Kline
		origin time.Time
		want   time.Time
	}{
		{name: "open time wins", kline: Kline{OpenTime: origin.Add(3 * time.Hour), CloseTime: origin}, origin: origin, want: origin.Add(3 * time.Hour)},
		{name: "close on last millisecond", kline: Kline{CloseTime: origin.Add(2*time.Hour - time.Millisecond)}, origin: origin, want: origin.Add(time.Hour)},
		{name: "close on next open", kline: Kline{CloseTime: origin.Add(2 * time.Hour)}, origin: origin, want: origin.Add(time.Hour)},
		{name: "before origin", kline: Kline{CloseTime: origin.Add(-time.Millisecond)}, origin: origin, want: origin.Add(-time.Hour)},
		{name: "before origin, close on next open", kline: Kline{CloseTime: origin}, origin: origin, want: origin.Add(-time.Hour)},
		{name: "origin off the hour", kline: Kline{CloseTime: origin.Add(150 * time.Minute)}, origin: origin.Add(30 * time.Minute), want: origin.Add(90 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kline.BucketStart(Interval1h, tt.origin)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}
