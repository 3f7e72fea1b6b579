package ledc

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tdisplay-ng/internal/ramp"
)

var afterFn = time.After
var logf = log.Printf

// FadeTick is the interval between duty updates of a running fade.
var FadeTick = 10 * time.Millisecond

var errSuperseded = errors.New("ledc: fade superseded")

// output is what a backend must provide; controller owns all bookkeeping.
type output interface {
	configure(t TimerConfig, c ChannelConfig) error
	write(channel int, duty uint32) error
	pause(channel int) error
	release(channel int) error
}

type channelState struct {
	cfg     ChannelConfig
	maxDuty uint32
	staged  uint32
	duty    uint32

	gen    uint64
	cancel chan struct{}
	done   chan struct{}
}

// controller implements Peripheral on top of an output.
// It is safe for concurrent use.
type controller struct {
	out output

	mu            sync.Mutex
	timers        map[int]TimerConfig
	paused        map[int]bool
	channels      map[int]*channelState
	fadeInstalled bool
}

func newController(out output) *controller {
	return &controller{
		out:      out,
		timers:   make(map[int]TimerConfig),
		paused:   make(map[int]bool),
		channels: make(map[int]*channelState),
	}
}

func (c *controller) ConfigureTimer(cfg TimerConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[cfg.Timer] = cfg
	c.paused[cfg.Timer] = false
	return nil
}

func (c *controller) ConfigureChannel(cfg ChannelConfig) error {
	if cfg.Channel < 0 {
		return fmt.Errorf("%w: channel %d", ErrInvalidConfig, cfg.Channel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.timers[cfg.Timer]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTimer, cfg.Timer)
	}
	if cfg.Duty > t.MaxDuty() {
		return fmt.Errorf("%w: %d > %d", ErrDutyRange, cfg.Duty, t.MaxDuty())
	}
	if prev, ok := c.channels[cfg.Channel]; ok {
		c.stopFadeLocked(prev)
	}
	if err := c.out.configure(t, cfg); err != nil {
		return err
	}
	if err := c.out.write(cfg.Channel, cfg.Duty); err != nil {
		return err
	}
	c.channels[cfg.Channel] = &channelState{
		cfg:     cfg,
		maxDuty: t.MaxDuty(),
		staged:  cfg.Duty,
		duty:    cfg.Duty,
	}
	return nil
}

func (c *controller) InstallFade() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fadeInstalled {
		return ErrFadeInstalled
	}
	c.fadeInstalled = true
	return nil
}

func (c *controller) channel(ch int) (*channelState, error) {
	st, ok := c.channels[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	return st, nil
}

func (c *controller) SetDuty(ch int, duty uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	if duty > st.maxDuty {
		return fmt.Errorf("%w: %d > %d", ErrDutyRange, duty, st.maxDuty)
	}
	c.stopFadeLocked(st)
	st.staged = duty
	return nil
}

func (c *controller) UpdateDuty(ch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	if err := c.out.write(ch, st.staged); err != nil {
		return err
	}
	st.duty = st.staged
	return nil
}

func (c *controller) StartFade(ch int, duty uint32, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fadeInstalled {
		return ErrFadeNotInstalled
	}
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	if duty > st.maxDuty {
		return fmt.Errorf("%w: %d > %d", ErrDutyRange, duty, st.maxDuty)
	}
	c.stopFadeLocked(st)

	st.gen++
	gen := st.gen
	cancel := make(chan struct{})
	done := make(chan struct{})
	st.cancel = cancel
	st.done = done
	st.staged = duty
	from := st.duty

	go func() {
		defer close(done)
		tick := func(wait time.Duration) bool {
			select {
			case <-cancel:
				return false
			case <-afterFn(wait):
				return true
			}
		}
		_, err := ramp.Linear(from, duty, d, FadeTick, tick, func(v uint32) error {
			return c.writeIfCurrent(ch, gen, v)
		})
		if err != nil && !errors.Is(err, errSuperseded) {
			logf("ledc: fade on channel %d failed: %v", ch, err)
		}
	}()
	return nil
}

func (c *controller) writeIfCurrent(ch int, gen uint64, duty uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.channels[ch]
	if !ok || st.gen != gen {
		return errSuperseded
	}
	if err := c.out.write(ch, duty); err != nil {
		return err
	}
	st.duty = duty
	return nil
}

func (c *controller) StopFade(ch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	c.stopFadeLocked(st)
	return nil
}

func (c *controller) stopFadeLocked(st *channelState) {
	st.gen++
	if st.cancel != nil {
		close(st.cancel)
		st.cancel = nil
	}
}

func (c *controller) PauseTimer(timer int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[timer]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTimer, timer)
	}
	var errs []error
	for ch, st := range c.channels {
		if st.cfg.Timer != timer {
			continue
		}
		c.stopFadeLocked(st)
		if err := c.out.pause(ch); err != nil {
			errs = append(errs, err)
		}
	}
	c.paused[timer] = true
	return errors.Join(errs...)
}

func (c *controller) ResetTimer(timer int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[timer]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTimer, timer)
	}
	var errs []error
	for ch, st := range c.channels {
		if st.cfg.Timer != timer {
			continue
		}
		c.stopFadeLocked(st)
		if err := c.out.release(ch); err != nil {
			errs = append(errs, err)
		}
		delete(c.channels, ch)
	}
	delete(c.timers, timer)
	delete(c.paused, timer)
	return errors.Join(errs...)
}

// Duty reports the duty currently applied to the output.
func (c *controller) Duty(ch int) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.channels[ch]
	if !ok {
		return 0, false
	}
	return st.duty, true
}

// Paused reports whether PauseTimer was called since the last ConfigureTimer.
func (c *controller) Paused(timer int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused[timer]
}

// WaitFade blocks until the fade most recently started on ch has finished
// or been superseded. It returns immediately if no fade was started.
func (c *controller) WaitFade(ch int) {
	c.mu.Lock()
	st, ok := c.channels[ch]
	var done chan struct{}
	if ok {
		done = st.done
	}
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}
