package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"i4.energy/across/loragw/airtime"
)

func TestDutyCycleLimiter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Fresh limiter allows immediately", func(t *testing.T) {
		limiter := NewDutyCycleLimiter(0.01, airtime.DefaultParams())
		assert.Zero(t, limiter.Delay(now))
	})

	t.Run("Transmission opens a silence window", func(t *testing.T) {
		limiter := NewDutyCycleLimiter(0.01, airtime.DefaultParams())

		// 8 application bytes ride in a 21 byte frame: 185.344 ms on
		// air at DR3, so 1% duty cycle demands ~18.5 s of silence.
		silence := limiter.Record(now, 8)
		assert.InDelta(t, 18.5344, silence.Seconds(), 1e-6)

		assert.InDelta(t, 18.5344, limiter.Delay(now).Seconds(), 1e-6)
		assert.Zero(t, limiter.Delay(now.Add(19*time.Second)))
	})

	t.Run("Halfway through the window", func(t *testing.T) {
		limiter := NewDutyCycleLimiter(0.01, airtime.DefaultParams())
		limiter.Record(now, 8)

		remaining := limiter.Delay(now.Add(10 * time.Second))
		assert.InDelta(t, 8.5344, remaining.Seconds(), 1e-6)
	})

	t.Run("Looser duty cycle shortens the window", func(t *testing.T) {
		strict := NewDutyCycleLimiter(0.01, airtime.DefaultParams())
		loose := NewDutyCycleLimiter(0.1, airtime.DefaultParams())

		assert.Greater(t, strict.Record(now, 8), loose.Record(now, 8))
	})
}

func TestParamsForDataRate(t *testing.T) {
	tests := []struct {
		dr         int
		sf         int
		lowDR      bool
	}{
		{dr: 0, sf: 12, lowDR: true},
		{dr: 1, sf: 11, lowDR: true},
		{dr: 2, sf: 10},
		{dr: 3, sf: 9},
		{dr: 4, sf: 8},
		{dr: 5, sf: 7},
	}

	for _, tt := range tests {
		p := paramsForDataRate(tt.dr)
		assert.Equal(t, tt.sf, p.SpreadingFactor, "DR%d", tt.dr)
		assert.Equal(t, 125, p.BandwidthKHz, "DR%d", tt.dr)
		assert.Equal(t, tt.lowDR, p.LowDataRateOptimize, "DR%d", tt.dr)
	}

	// anything unknown falls back to the DR3 defaults
	assert.Equal(t, airtime.DefaultParams(), paramsForDataRate(42))
}
