package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"tdisplay-ng/internal/ads1x15"
	"tdisplay-ng/internal/aw9364"
	"tdisplay-ng/internal/battery"
	"tdisplay-ng/internal/button"
	"tdisplay-ng/internal/config"
	"tdisplay-ng/internal/i2c"
	"tdisplay-ng/internal/ledc"
	"tdisplay-ng/internal/panel"
	"tdisplay-ng/internal/telemetry"
	"tdisplay-ng/internal/web"

	"tinygo.org/x/drivers"
)

var (
	openSysfsFn     = func(chip string) (ledc.Peripheral, error) { return ledc.OpenSysfs(chip) }
	openBacklightFn = func(name string) (ledc.Peripheral, error) { return ledc.OpenBacklight(name) }
	openButtonsFn   = button.Open
	openI2CFn       = openI2C
	openIIOFn       = func(dev string, ch, div int) (battery.Reader, error) { return battery.OpenIIO(dev, ch, div) }
)

// openI2C returns the bus as an interface without wrapping a nil *i2c.Bus.
func openI2C(path string) (i2cBus, error) {
	b, err := i2c.Open(path)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// i2cBus is *i2c.Bus as seen by the ADC driver.
type i2cBus interface {
	drivers.I2C
	Close() error
}

type app struct {
	bl      *aw9364.Device
	panel   *panel.State
	status  *web.Status
	buttons *button.Set
	bus     i2cBus
}

func openPeripheral(cfg config.BacklightConfig) (ledc.Peripheral, error) {
	switch cfg.Backend {
	case "sim":
		return ledc.NewSim(), nil
	case "sysfs":
		return openSysfsFn(cfg.Chip)
	case "backlight":
		return openBacklightFn(cfg.Chip)
	default:
		return nil, fmt.Errorf("unknown backlight backend %q", cfg.Backend)
	}
}

func (rt *app) openBattery(cfg config.BatteryConfig) (battery.Reader, error) {
	switch cfg.Source {
	case "fixed":
		return battery.NewFixed(cfg.FixedMillivolts), nil
	case "iio":
		return openIIOFn(cfg.Device, cfg.Channel, cfg.Divider)
	case "ads1115":
		bus, err := openI2CFn(cfg.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.I2CBus, err)
		}
		rt.bus = bus
		return battery.NewADS(ads1x15.New(bus, cfg.I2CAddr), cfg.Channel, cfg.Divider), nil
	default:
		return nil, fmt.Errorf("unknown battery source %q", cfg.Source)
	}
}

func newApp(cfg config.Config) (*app, error) {
	rt := &app{status: web.NewStatus()}

	p, err := openPeripheral(cfg.Backlight)
	if err != nil {
		return nil, fmt.Errorf("backlight: %w", err)
	}
	bl, err := aw9364.Init(p,
		&ledc.ChannelConfig{Channel: cfg.Backlight.Channel, Timer: cfg.Backlight.Timer, GPIO: cfg.Backlight.GPIO},
		&ledc.TimerConfig{Timer: cfg.Backlight.Timer, ResolutionBits: uint8(cfg.Backlight.ResolutionBits), FreqHz: cfg.Backlight.FreqHz},
	)
	if err != nil {
		return nil, fmt.Errorf("backlight: %w", err)
	}
	rt.bl = bl

	bat, err := rt.openBattery(cfg.Battery)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("battery: %w", err)
	}
	rt.panel = panel.New(bl, bat)
	rt.status.SetStatic(cfg.Backlight.Backend, cfg.Battery.Source)

	if !cfg.UI.BootFadeIn {
		if err := rt.panel.SetStep(aw9364.MaxStep, 0); err != nil {
			rt.Close()
			return nil, fmt.Errorf("backlight on: %w", err)
		}
	}

	if cfg.Buttons.Enable {
		set, err := openButtonsFn(cfg.Buttons.Chip, []button.Button{
			{ID: panel.ButtonUp, Name: "up", Line: cfg.Buttons.Up},
			{ID: panel.ButtonDown, Name: "down", Line: cfg.Buttons.Down},
		}, cfg.Buttons.Debounce, button.Callbacks{
			OnPressDown: func(id int) { rt.panel.Press(id, true) },
			OnPressUp:   func(id int) { rt.panel.Press(id, false) },
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("buttons: %w", err)
		}
		rt.buttons = set
	}
	return rt, nil
}

func (rt *app) publisher(cfg config.MQTTConfig) *telemetry.Publisher {
	if !cfg.Enable {
		return nil
	}
	return &telemetry.Publisher{
		Broker:    cfg.Broker,
		ClientID:  cfg.ClientID,
		Topic:     cfg.Topic,
		Interval:  cfg.Interval,
		Logger:    slog.Default().With(slog.String("component", "mqtt")),
		Snapshot:  func() any { return rt.panel.Snapshot() },
		OnPublish: rt.status.MarkPublish,
	}
}

// Close releases the buttons and bus, then turns the backlight off.
func (rt *app) Close() {
	var errs []error
	if rt.buttons != nil {
		errs = append(errs, rt.buttons.Close())
		rt.buttons = nil
	}
	if rt.bus != nil {
		errs = append(errs, rt.bus.Close())
		rt.bus = nil
	}
	if rt.bl != nil {
		errs = append(errs, rt.bl.Deinit())
		rt.bl = nil
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
