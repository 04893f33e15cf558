// Package airtime computes LoRa time on air. The module's AT command
// set gives no airtime feedback, so applications that have to respect
// regional duty cycle limits or the TTN fair use policy compute it
// themselves from the radio parameters in use.
//
// The calculation follows the closed form from the Semtech LoRa modem
// design guide and matches the published online calculators, e.g.
// https://avbentem.github.io/airtime-calculator/ttn/eu868.
package airtime

import "math"

// Params are the radio parameters a frame is transmitted with.
type Params struct {
	// SpreadingFactor, 7 to 12.
	SpreadingFactor int
	// BandwidthKHz is the channel bandwidth in kHz (125, 250 or 500).
	BandwidthKHz int
	// PreambleSymbols is the programmed preamble length; LoRaWAN uses 8.
	PreambleSymbols int
	// HeaderDisabled selects the implicit header mode. LoRaWAN always
	// transmits an explicit header.
	HeaderDisabled bool
	// LowDataRateOptimize is mandatory at SF11/SF12 on 125 kHz.
	LowDataRateOptimize bool
	// CodingRate is the cyclic coding rate 4/(4+CR); LoRaWAN uses 1.
	CodingRate int
}

// DefaultParams are EU868 DR3 with the LoRaWAN defaults, matching the
// module's factory configuration.
func DefaultParams() Params {
	return Params{
		SpreadingFactor: 9,
		BandwidthKHz:    125,
		PreambleSymbols: 8,
		CodingRate:      1,
	}
}

// Milliseconds returns the time on air of a frame with a physical
// payload of payloadLen bytes. payloadLen counts everything between
// header and CRC, so for a LoRaWAN uplink it includes the 13 bytes of
// MAC overhead around the application data.
func Milliseconds(payloadLen int, p Params) float64 {
	he := 0
	if p.HeaderDisabled {
		he = 1
	}
	de := 0
	if p.LowDataRateOptimize {
		de = 1
	}

	symbolMs := math.Pow(2, float64(p.SpreadingFactor)) / float64(p.BandwidthKHz)
	preambleMs := (float64(p.PreambleSymbols) + 4.25) * symbolMs

	numerator := 8*payloadLen - 4*p.SpreadingFactor + 28 + 16 - 20*he
	denominator := 4 * (p.SpreadingFactor - 2*de)
	payloadSymbols := 8.0 + math.Max(
		math.Ceil(float64(numerator)/float64(denominator))*float64(p.CodingRate+4), 0)

	return preambleMs + payloadSymbols*symbolMs
}
