package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backlight BacklightConfig `yaml:"backlight"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Battery   BatteryConfig   `yaml:"battery"`
	UI        UIConfig        `yaml:"ui"`
	Web       WebConfig       `yaml:"web"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

type BacklightConfig struct {
	// Backend selects the PWM peripheral: sim, sysfs or backlight.
	Backend string `yaml:"backend"`
	// Chip is the pwmchip (sysfs) or backlight device name (backlight).
	Chip           string `yaml:"chip"`
	GPIO           int    `yaml:"gpio"`
	Channel        int    `yaml:"channel"`
	Timer          int    `yaml:"timer"`
	ResolutionBits int    `yaml:"resolution_bits"`
	FreqHz         int    `yaml:"freq_hz"`
}

type ButtonsConfig struct {
	Enable   bool          `yaml:"enable"`
	Chip     string        `yaml:"chip"`
	Up       int           `yaml:"up_line"`
	Down     int           `yaml:"down_line"`
	Debounce time.Duration `yaml:"debounce"`
}

type BatteryConfig struct {
	// Source selects the voltage reader: fixed, iio or ads1115.
	Source  string `yaml:"source"`
	Device  string `yaml:"device"`
	Channel int    `yaml:"channel"`
	Divider int    `yaml:"divider"`
	// I2CBus and I2CAddr apply to ads1115.
	I2CBus  string `yaml:"i2c_bus"`
	I2CAddr uint16 `yaml:"i2c_addr"`
	// FixedMillivolts is reported by the fixed source.
	FixedMillivolts int `yaml:"fixed_mv"`
}

type UIConfig struct {
	HWInterval      time.Duration `yaml:"hw_interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	BootFadeIn      bool          `yaml:"boot_fade_in"`
	BootStepDelay   time.Duration `yaml:"boot_step_delay"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: simulated
// backlight and battery, web UI on.
func Default() Config {
	cfg := Config{Web: WebConfig{Enable: true}}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	bl := &cfg.Backlight
	if bl.Backend == "" {
		bl.Backend = "sim"
	}
	switch bl.Backend {
	case "sim", "sysfs", "backlight":
	default:
		return fmt.Errorf("backlight.backend must be one of sim, sysfs, backlight")
	}
	if bl.GPIO == 0 {
		bl.GPIO = 38
	}
	if bl.ResolutionBits == 0 {
		bl.ResolutionBits = 10
	}
	if bl.ResolutionBits < 1 || bl.ResolutionBits > 20 {
		return fmt.Errorf("backlight.resolution_bits must be in [1,20]")
	}
	if bl.FreqHz == 0 {
		bl.FreqHz = 5000
	}
	if bl.FreqHz < 0 {
		return fmt.Errorf("backlight.freq_hz must be > 0")
	}
	if bl.Channel < 0 || bl.Timer < 0 {
		return fmt.Errorf("backlight.channel and backlight.timer must be >= 0")
	}

	btn := &cfg.Buttons
	if btn.Chip == "" {
		btn.Chip = "gpiochip0"
	}
	if btn.Up == 0 && btn.Down == 0 {
		// BOOT (GPIO0) raises, KEY (GPIO14) lowers.
		btn.Down = 14
	}
	if btn.Debounce <= 0 {
		btn.Debounce = 20 * time.Millisecond
	}
	if btn.Enable && btn.Up == btn.Down {
		return fmt.Errorf("buttons.up_line and buttons.down_line must differ")
	}

	bat := &cfg.Battery
	if bat.Source == "" {
		bat.Source = "fixed"
	}
	if bat.Divider <= 0 {
		bat.Divider = 2
	}
	switch bat.Source {
	case "fixed":
		if bat.FixedMillivolts == 0 {
			bat.FixedMillivolts = 3900
		}
	case "iio":
		if bat.Device == "" {
			bat.Device = "iio:device0"
		}
	case "ads1115":
		if bat.I2CBus == "" {
			bat.I2CBus = "/dev/i2c-1"
		}
		if bat.I2CAddr == 0 {
			bat.I2CAddr = 0x48
		}
		if bat.Channel < 0 || bat.Channel > 3 {
			return fmt.Errorf("battery.channel must be in [0,3] for ads1115")
		}
	default:
		return fmt.Errorf("battery.source must be one of fixed, iio, ads1115")
	}

	ui := &cfg.UI
	if ui.HWInterval <= 0 {
		ui.HWInterval = 250 * time.Millisecond
	}
	if ui.RefreshInterval <= 0 {
		ui.RefreshInterval = 50 * time.Millisecond
	}
	if ui.BootStepDelay <= 0 {
		ui.BootStepDelay = 70 * time.Millisecond
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	m := &cfg.MQTT
	if m.Enable && m.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if m.ClientID == "" {
		m.ClientID = "tdisplay-ng"
	}
	if m.Topic == "" {
		m.Topic = "tdisplay-ng/status"
	}
	if m.Interval <= 0 {
		m.Interval = 5 * time.Second
	}
	return nil
}
