// Package ledc models an LED PWM controller: timers that set frequency and
// duty resolution, channels bound to a timer and a GPIO, immediate duty
// writes and a fade unit that ramps a channel to a target duty over time.
//
// The fade unit is emulated in software so the same Peripheral contract
// holds on every backend (in-memory, /sys/class/pwm, /sys/class/backlight).
package ledc

import (
	"errors"
	"fmt"
	"time"
)

// SourceClockHz bounds FreqHz * 2^ResolutionBits, as on the ESP32 APB clock.
const SourceClockHz = 80_000_000

const (
	MinResolutionBits = 1
	MaxResolutionBits = 20
)

var (
	ErrInvalidConfig    = errors.New("ledc: invalid config")
	ErrUnknownTimer     = errors.New("ledc: timer not configured")
	ErrUnknownChannel   = errors.New("ledc: channel not configured")
	ErrDutyRange        = errors.New("ledc: duty out of range")
	ErrFadeInstalled    = errors.New("ledc: fade already installed")
	ErrFadeNotInstalled = errors.New("ledc: fade not installed")
	ErrUnsupported      = errors.New("ledc: unsupported on this platform")
)

type TimerConfig struct {
	Timer          int
	ResolutionBits uint8
	FreqHz         int
}

// MaxDuty is 2^ResolutionBits - 1.
func (t TimerConfig) MaxDuty() uint32 {
	return (uint32(1) << t.ResolutionBits) - 1
}

// Period is the PWM period implied by FreqHz.
func (t TimerConfig) Period() time.Duration {
	if t.FreqHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.FreqHz)
}

func (t TimerConfig) validate() error {
	if t.Timer < 0 {
		return fmt.Errorf("%w: timer %d", ErrInvalidConfig, t.Timer)
	}
	if t.ResolutionBits < MinResolutionBits || t.ResolutionBits > MaxResolutionBits {
		return fmt.Errorf("%w: resolution %d bits", ErrInvalidConfig, t.ResolutionBits)
	}
	if t.FreqHz <= 0 {
		return fmt.Errorf("%w: frequency %d Hz", ErrInvalidConfig, t.FreqHz)
	}
	if uint64(t.FreqHz)<<t.ResolutionBits > SourceClockHz {
		return fmt.Errorf("%w: %d Hz too high for %d-bit resolution", ErrInvalidConfig, t.FreqHz, t.ResolutionBits)
	}
	return nil
}

type ChannelConfig struct {
	Channel int
	Timer   int
	// GPIO is informational for the sysfs backends; the kernel owns pinmux.
	GPIO int
	Duty uint32
}

// Peripheral is the PWM surface a brightness driver needs.
//
// Fades are fire-and-forget: StartFade returns once the ramp is armed.
// A later StartFade, SetDuty or StopFade on the same channel supersedes it.
type Peripheral interface {
	ConfigureTimer(cfg TimerConfig) error
	ConfigureChannel(cfg ChannelConfig) error
	// InstallFade enables the fade unit. A second call returns ErrFadeInstalled.
	InstallFade() error
	SetDuty(channel int, duty uint32) error
	// UpdateDuty latches the duty staged by SetDuty onto the output.
	UpdateDuty(channel int) error
	StartFade(channel int, duty uint32, d time.Duration) error
	StopFade(channel int) error
	PauseTimer(timer int) error
	// ResetTimer deconfigures the timer and every channel bound to it.
	ResetTimer(timer int) error
}
