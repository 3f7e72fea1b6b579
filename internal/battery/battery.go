// Package battery turns a single-cell LiPo voltage reading into the
// percentage, power mode and icon index shown on the status panel.
package battery

import (
	"math"

	"tdisplay-ng/internal/mathx"
)

const (
	// Above this (after a 30mV margin) the rail is USB with no cell attached.
	NoBatteryMillivolts = 4500
	// Above this the cell is being charged.
	ChargeMillivolts = 4350
)

type PowerMode int

const (
	Discharging PowerMode = iota
	Charging
	NoBattery
)

func (m PowerMode) String() string {
	switch m {
	case NoBattery:
		return "No battery"
	case Charging:
		return "Battery Charging"
	default:
		return "Battery Discharging"
	}
}

// VoltsToPercent is an asymmetric sigmoid fitted to a LiPo discharge curve.
func VoltsToPercent(v float64) float64 {
	return 123 - 123/math.Pow(1+math.Pow(v/3.7, 80), 0.165)
}

// Percent is VoltsToPercent for a millivolt reading, rounded up and
// clamped to [0,100].
func Percent(mv int) int {
	p := int(math.Ceil(VoltsToPercent(float64(mv) / 1000)))
	return mathx.Clamp(p, 0, 100)
}

// USBPowered reports a reading that sits at the 5V rail.
func USBPowered(mv int) bool {
	return math.Ceil(float64(mv-100)/1000) == 5
}

func Classify(mv int) PowerMode {
	switch {
	case mv-30 > NoBatteryMillivolts:
		return NoBattery
	case mv > ChargeMillivolts:
		return Charging
	default:
		return Discharging
	}
}

// SymbolIndex buckets a percentage into the five battery icons
// (0 empty .. 4 full).
func SymbolIndex(pct int) int {
	switch {
	case pct > 75:
		return 4
	case pct > 50:
		return 3
	case pct > 25:
		return 2
	case pct > 10:
		return 1
	default:
		return 0
	}
}
