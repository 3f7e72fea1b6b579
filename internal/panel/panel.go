// Package panel holds the status-board state shared between the button
// callbacks, the hardware poll and the UI refresh.
package panel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tdisplay-ng/internal/aw9364"
	"tdisplay-ng/internal/battery"
)

var afterFn = time.After
var logf = log.Printf

// Button ids as wired on the board.
const (
	ButtonUp   = 1
	ButtonDown = 2
)

// Icons for the power indicator, indexed by battery.SymbolIndex.
var batteryIcons = [...]string{"battery_empty", "battery_1", "battery_2", "battery_3", "battery_full"}

const (
	IconUSB      = "usb"
	pressedLabel = "<"
	noBattery    = "----------"
)

// Brightness is the part of *aw9364.Device the panel drives.
type Brightness interface {
	SetBrightnessStep(step uint8, fade time.Duration) error
	SetBrightnessPct(pct uint8, fade time.Duration) error
	BrightnessStep() uint8
	BrightnessPct() uint8
	Fading() bool
}

var _ Brightness = (*aw9364.Device)(nil)

// View is what the display shows after one refresh.
type View struct {
	Button1    string `json:"button1"`
	Button2    string `json:"button2"`
	Slider     uint8  `json:"slider"`
	PowerMode  string `json:"power_mode"`
	Battery    string `json:"battery"`
	Voltage    string `json:"voltage"`
	Icon       string `json:"icon"`
	Millivolts int    `json:"millivolts"`
	Percent    int    `json:"percent"`
	USB        bool   `json:"usb"`
}

// Snapshot is the raw state behind the view.
type Snapshot struct {
	Step          uint8     `json:"step"`
	BrightnessPct uint8     `json:"brightness_pct"`
	Fading        bool      `json:"fading"`
	Button1       bool      `json:"button1_pressed"`
	Button2       bool      `json:"button2_pressed"`
	Millivolts    int       `json:"millivolts"`
	Percent       int       `json:"percent"`
	Mode          string    `json:"power_mode"`
	USB           bool      `json:"usb"`
	LastUpdateAt  time.Time `json:"last_update_utc,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// State is safe for concurrent use; every method takes the one lock.
type State struct {
	bl  Brightness
	bat battery.Reader

	mu        sync.Mutex
	btn1      bool
	btn2      bool
	step      uint8
	lastStep  uint8
	mv        int
	pct       int
	symbolIdx int
	updated   time.Time
	lastErr   string
	last      View
}

func New(bl Brightness, bat battery.Reader) *State {
	s := &State{bl: bl, bat: bat}
	if bl != nil {
		s.step = bl.BrightnessStep()
		s.lastStep = s.step
	}
	return s
}

// Press records a button edge. It is the callback target for the GPIO
// buttons and may be called from any goroutine.
func (s *State) Press(id int, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch id {
	case ButtonUp:
		s.btn1 = down
	case ButtonDown:
		s.btn2 = down
	}
}

// HWTick steps the brightness while a button is held, pushes changes to
// the backlight and samples the battery.
func (s *State) HWTick() {
	var (
		mv     int
		batErr error
	)
	if s.bat != nil {
		mv, batErr = s.bat.ReadMillivolts()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if s.btn1 && s.step < aw9364.MaxStep {
		s.step++
	}
	if s.btn2 && s.step > 0 {
		s.step--
	}
	if s.step != s.lastStep && s.bl != nil {
		if err := s.bl.SetBrightnessStep(s.step, 0); err != nil {
			logf("panel: set brightness: %v", err)
			errs = append(errs, err.Error())
			s.step = s.lastStep
		}
	}
	s.lastStep = s.step

	if batErr != nil {
		errs = append(errs, fmt.Sprintf("battery: %v", batErr))
	} else if s.bat != nil {
		s.mv = mv
		s.pct = int(battery.VoltsToPercent(float64(mv) / 1000))
	}
	s.lastErr = strings.Join(errs, "; ")
	s.updated = time.Now().UTC()
}

// View renders the labels. The icon uses the symbol index computed by the
// previous call, so a level change shows up one refresh later.
func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Slider:     s.step,
		Voltage:    fmt.Sprintf("%d mV", s.mv),
		Millivolts: s.mv,
		USB:        battery.USBPowered(s.mv),
	}
	if s.btn1 {
		v.Button1 = pressedLabel
	}
	if s.btn2 {
		v.Button2 = pressedLabel
	}

	pct := min(max(s.pct, 0), 100)
	mode := battery.Classify(s.mv)
	v.PowerMode = mode.String()
	switch mode {
	case battery.NoBattery:
		v.Icon = IconUSB
		v.Battery = noBattery
	default:
		v.Icon = batteryIcons[s.symbolIdx]
		v.Battery = fmt.Sprintf("Charge Level: %d %%", pct)
	}
	v.Percent = pct
	s.symbolIdx = battery.SymbolIndex(pct)
	s.last = v
	return v
}

// LastView returns what the most recent View call rendered.
func (s *State) LastView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := Snapshot{
		Step:         s.step,
		Button1:      s.btn1,
		Button2:      s.btn2,
		Millivolts:   s.mv,
		Percent:      min(max(s.pct, 0), 100),
		Mode:         battery.Classify(s.mv).String(),
		USB:          battery.USBPowered(s.mv),
		LastUpdateAt: s.updated,
		LastError:    s.lastErr,
	}
	if s.bl != nil {
		sn.BrightnessPct = s.bl.BrightnessPct()
		sn.Fading = s.bl.Fading()
	}
	return sn
}

// SetStep applies step through the backlight and moves the slider with it.
func (s *State) SetStep(step uint8, fade time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bl == nil {
		return aw9364.ErrInvalidArgument
	}
	if err := s.bl.SetBrightnessStep(step, fade); err != nil {
		return err
	}
	s.step = s.bl.BrightnessStep()
	s.lastStep = s.step
	return nil
}

// SetPct is SetStep for a percentage.
func (s *State) SetPct(pct uint8, fade time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bl == nil {
		return aw9364.ErrInvalidArgument
	}
	if err := s.bl.SetBrightnessPct(pct, fade); err != nil {
		return err
	}
	s.step = s.bl.BrightnessStep()
	s.lastStep = s.step
	return nil
}

// BootFadeIn raises the backlight from off to full one step per delay.
func (s *State) BootFadeIn(ctx context.Context, delay time.Duration) error {
	for step := uint8(0); step <= aw9364.MaxStep; step++ {
		if err := s.SetStep(step, 0); err != nil {
			return err
		}
		if step == aw9364.MaxStep {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-afterFn(delay):
		}
	}
	return nil
}

// Run polls the hardware every hwEvery and refreshes the view every
// refreshEvery, passing each View to render (which may be nil). It
// returns when ctx is done.
func (s *State) Run(ctx context.Context, hwEvery, refreshEvery time.Duration, render func(View)) error {
	if hwEvery <= 0 || refreshEvery <= 0 {
		return fmt.Errorf("panel: intervals must be > 0")
	}
	hw := time.NewTicker(hwEvery)
	defer hw.Stop()
	ui := time.NewTicker(refreshEvery)
	defer ui.Stop()

	s.HWTick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hw.C:
			s.HWTick()
		case <-ui.C:
			v := s.View()
			if render != nil {
				render(v)
			}
		}
	}
}
