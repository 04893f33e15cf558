package main

import (
	"time"

	"i4.energy/across/loragw/airtime"
)

// macOverhead is the fixed LoRaWAN uplink framing around the
// application payload: MHDR(1)+DevAddr(4)+FCtrl(1)+FCnt(2)+FPort(1)+MIC(4).
const macOverhead = 13

// drParams maps the EU868 data rates the module accepts to their radio
// parameters.
var drParams = map[int]airtime.Params{
	0: {SpreadingFactor: 12, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1, LowDataRateOptimize: true},
	1: {SpreadingFactor: 11, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1, LowDataRateOptimize: true},
	2: {SpreadingFactor: 10, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1},
	3: {SpreadingFactor: 9, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1},
	4: {SpreadingFactor: 8, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1},
	5: {SpreadingFactor: 7, BandwidthKHz: 125, PreambleSymbols: 8, CodingRate: 1},
}

// paramsForDataRate resolves a data rate to airtime parameters,
// falling back to the DR3 defaults for anything unknown.
func paramsForDataRate(dr int) airtime.Params {
	if p, ok := drParams[dr]; ok {
		return p
	}
	return airtime.DefaultParams()
}

// DutyCycleLimiter paces uplinks so the transmitter stays inside a
// regulatory on-air fraction: after a frame of airtime T the channel
// is not used again for T/dutyCycle.
//
// It is not safe for concurrent use; the gateway worker owns it.
type DutyCycleLimiter struct {
	dutyCycle float64
	params    airtime.Params
	next      time.Time
}

// NewDutyCycleLimiter creates a limiter for the given on-air fraction
// and radio parameters.
func NewDutyCycleLimiter(dutyCycle float64, params airtime.Params) *DutyCycleLimiter {
	return &DutyCycleLimiter{dutyCycle: dutyCycle, params: params}
}

// Delay reports how long from now the channel must stay quiet before
// the next transmission. Zero means transmit now.
func (l *DutyCycleLimiter) Delay(now time.Time) time.Duration {
	if wait := l.next.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Record books the transmission of payloadLen application bytes
// starting at now and pushes the next allowed transmission out by
// airtime divided by the duty cycle.
func (l *DutyCycleLimiter) Record(now time.Time, payloadLen int) time.Duration {
	airMs := airtime.Milliseconds(payloadLen+macOverhead, l.params)
	silence := time.Duration(airMs / l.dutyCycle * float64(time.Millisecond))
	l.next = now.Add(silence)
	return silence
}
