// Package aw9364 drives an AW9364 LED backlight driver through a PWM
// channel. Brightness is a step in [0, MaxStep]; a percentage view is
// layered on top with truncating integer conversion in both directions.
//
// A Device is not safe for concurrent use; callers serialize access.
package aw9364

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tdisplay-ng/internal/ledc"
	"tdisplay-ng/internal/mathx"
)

const (
	MaxStep = 16

	// Fades at or below MinFadeTime are applied as an immediate write.
	MinFadeTime = 50 * time.Millisecond
	MaxFadeTime = 10000 * time.Millisecond
)

var (
	ErrInvalidArgument = errors.New("aw9364: invalid argument")
	ErrHardwareConfig  = errors.New("aw9364: pwm configuration failed")
	ErrHardwareWrite   = errors.New("aw9364: pwm write failed")
)

var logf = log.Printf

type Device struct {
	pwm     ledc.Peripheral
	channel int
	timer   int
	maxDuty uint32
	step    uint8
	fading  bool
}

// Init configures timer and channel on p, enables its fade unit and
// returns a Device at step 0.
func Init(p ledc.Peripheral, ch *ledc.ChannelConfig, tm *ledc.TimerConfig) (*Device, error) {
	if p == nil || ch == nil || tm == nil {
		return nil, ErrInvalidArgument
	}
	if err := p.ConfigureTimer(*tm); err != nil {
		logf("aw9364: timer config error: %v", err)
		return nil, fmt.Errorf("%w: timer: %w", ErrHardwareConfig, err)
	}
	if err := p.ConfigureChannel(*ch); err != nil {
		logf("aw9364: channel config error: %v", err)
		_ = p.ResetTimer(tm.Timer)
		return nil, fmt.Errorf("%w: channel: %w", ErrHardwareConfig, err)
	}
	if err := p.InstallFade(); err != nil && !errors.Is(err, ledc.ErrFadeInstalled) {
		logf("aw9364: fade install error: %v", err)
		_ = p.ResetTimer(tm.Timer)
		return nil, fmt.Errorf("%w: fade: %w", ErrHardwareConfig, err)
	}
	return &Device{
		pwm:     p,
		channel: ch.Channel,
		timer:   tm.Timer,
		maxDuty: tm.MaxDuty(),
	}, nil
}

func (d *Device) stepToDuty(step uint8) uint32 {
	return mathx.ScaleDiv(uint32(step), d.maxDuty, MaxStep)
}

func stepToPct(step uint8) uint8 {
	return uint8(uint32(step) * 100 / MaxStep)
}

func pctToStep(pct uint8) uint8 {
	return uint8(uint32(pct) * MaxStep / 100)
}

// apply picks between a hardware fade and an immediate write.
func (d *Device) apply(duty uint32, fade time.Duration) error {
	fade = mathx.Min(fade, MaxFadeTime)
	if fade > MinFadeTime {
		if err := d.pwm.StartFade(d.channel, duty, fade); err != nil {
			logf("aw9364: fade start error: %v", err)
			return fmt.Errorf("%w: %w", ErrHardwareWrite, err)
		}
		d.fading = true
		return nil
	}
	d.fading = false
	if err := d.pwm.SetDuty(d.channel, duty); err != nil {
		logf("aw9364: set duty error: %v", err)
		return fmt.Errorf("%w: %w", ErrHardwareWrite, err)
	}
	if err := d.pwm.UpdateDuty(d.channel); err != nil {
		logf("aw9364: update duty error: %v", err)
		return fmt.Errorf("%w: %w", ErrHardwareWrite, err)
	}
	return nil
}

// SetBrightnessStep saturates step at MaxStep. On a write failure the
// stored step is left at its previous value.
func (d *Device) SetBrightnessStep(step uint8, fade time.Duration) error {
	if d == nil || d.pwm == nil {
		return ErrInvalidArgument
	}
	step = mathx.Min(step, MaxStep)
	if err := d.apply(d.stepToDuty(step), fade); err != nil {
		return err
	}
	d.step = step
	return nil
}

// SetBrightnessPct saturates pct at 100 and converts it to a step
// (pct*16/100, truncated).
func (d *Device) SetBrightnessPct(pct uint8, fade time.Duration) error {
	if d == nil {
		return ErrInvalidArgument
	}
	return d.SetBrightnessStep(pctToStep(mathx.Min(pct, 100)), fade)
}

func (d *Device) IncrementBrightnessStep(fade time.Duration) error {
	if d == nil {
		return ErrInvalidArgument
	}
	return d.SetBrightnessStep(mathx.Min(d.step+1, MaxStep), fade)
}

func (d *Device) DecrementBrightnessStep(fade time.Duration) error {
	if d == nil {
		return ErrInvalidArgument
	}
	step := d.step
	if step > 0 {
		step--
	}
	return d.SetBrightnessStep(step, fade)
}

// BrightnessStep returns 0 for a nil Device.
func (d *Device) BrightnessStep() uint8 {
	if d == nil {
		return 0
	}
	return d.step
}

// BrightnessPct returns 0 for a nil Device.
func (d *Device) BrightnessPct() uint8 {
	if d == nil {
		return 0
	}
	return stepToPct(d.step)
}

// Fading reports whether the last command armed a fade rather than
// writing the duty directly. It does not track fade completion.
func (d *Device) Fading() bool {
	if d == nil {
		return false
	}
	return d.fading
}

// Duty is the duty value the current step maps to.
func (d *Device) Duty() uint32 {
	if d == nil {
		return 0
	}
	return d.stepToDuty(d.step)
}

func (d *Device) Channel() int {
	if d == nil {
		return 0
	}
	return d.channel
}

// Deinit stops any fade, pauses and deconfigures the timer. The Device
// must not be used afterwards.
func (d *Device) Deinit() error {
	if d == nil || d.pwm == nil {
		return nil
	}
	var errs []error
	if err := d.pwm.StopFade(d.channel); err != nil {
		errs = append(errs, err)
	}
	if err := d.pwm.PauseTimer(d.timer); err != nil {
		errs = append(errs, err)
	}
	if err := d.pwm.ResetTimer(d.timer); err != nil {
		errs = append(errs, err)
	}
	d.fading = false
	d.pwm = nil
	return errors.Join(errs...)
}
