package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "{}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	bl := cfg.Backlight
	if bl.Backend != "sim" || bl.GPIO != 38 || bl.ResolutionBits != 10 || bl.FreqHz != 5000 {
		t.Fatalf("backlight defaults=%+v", bl)
	}
	if cfg.Buttons.Chip != "gpiochip0" || cfg.Buttons.Up != 0 || cfg.Buttons.Down != 14 {
		t.Fatalf("button defaults=%+v", cfg.Buttons)
	}
	if cfg.Buttons.Debounce != 20*time.Millisecond {
		t.Fatalf("debounce=%s want 20ms", cfg.Buttons.Debounce)
	}
	if cfg.Battery.Source != "fixed" || cfg.Battery.FixedMillivolts != 3900 || cfg.Battery.Divider != 2 {
		t.Fatalf("battery defaults=%+v", cfg.Battery)
	}
	if cfg.UI.HWInterval != 250*time.Millisecond || cfg.UI.RefreshInterval != 50*time.Millisecond || cfg.UI.BootStepDelay != 70*time.Millisecond {
		t.Fatalf("ui defaults=%+v", cfg.UI)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("listen=%q want :8080", cfg.Web.Listen)
	}
	if cfg.MQTT.Topic != "tdisplay-ng/status" || cfg.MQTT.Interval != 5*time.Second {
		t.Fatalf("mqtt defaults=%+v", cfg.MQTT)
	}
}

func TestLoad_ParsesValues(t *testing.T) {
	path := writeTempConfig(t, `
backlight:
  backend: sysfs
  chip: pwmchip2
  channel: 1
  timer: 1
  resolution_bits: 12
  freq_hz: 2000
battery:
  source: ads1115
  channel: 3
  i2c_addr: 0x49
ui:
  boot_fade_in: true
  hw_interval: 100ms
mqtt:
  enable: true
  broker: 127.0.0.1:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backlight.Backend != "sysfs" || cfg.Backlight.Chip != "pwmchip2" || cfg.Backlight.ResolutionBits != 12 {
		t.Fatalf("backlight=%+v", cfg.Backlight)
	}
	if cfg.Battery.I2CBus != "/dev/i2c-1" || cfg.Battery.I2CAddr != 0x49 || cfg.Battery.Channel != 3 {
		t.Fatalf("battery=%+v", cfg.Battery)
	}
	if !cfg.UI.BootFadeIn || cfg.UI.HWInterval != 100*time.Millisecond {
		t.Fatalf("ui=%+v", cfg.UI)
	}
	if !cfg.MQTT.Enable || cfg.MQTT.Broker != "127.0.0.1:1883" || cfg.MQTT.ClientID != "tdisplay-ng" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "UnknownBackend",
			yaml: "backlight:\n  backend: i2c\n",
			want: "backlight.backend must be one of sim, sysfs, backlight",
		},
		{
			name: "ResolutionTooHigh",
			yaml: "backlight:\n  resolution_bits: 21\n",
			want: "backlight.resolution_bits must be in [1,20]",
		},
		{
			name: "NegativeFreq",
			yaml: "backlight:\n  freq_hz: -1\n",
			want: "backlight.freq_hz must be > 0",
		},
		{
			name: "NegativeChannel",
			yaml: "backlight:\n  channel: -1\n",
			want: "backlight.channel and backlight.timer must be >= 0",
		},
		{
			name: "SameButtonLines",
			yaml: "buttons:\n  enable: true\n  up_line: 5\n  down_line: 5\n",
			want: "buttons.up_line and buttons.down_line must differ",
		},
		{
			name: "UnknownBatterySource",
			yaml: "battery:\n  source: fuel_gauge\n",
			want: "battery.source must be one of fixed, iio, ads1115",
		},
		{
			name: "ADSChannelRange",
			yaml: "battery:\n  source: ads1115\n  channel: 4\n",
			want: "battery.channel must be in [0,3] for ads1115",
		},
		{
			name: "MQTTRequiresBroker",
			yaml: "mqtt:\n  enable: true\n",
			want: "mqtt.broker is required when mqtt.enable is true",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Web.Enable || cfg.Backlight.Backend != "sim" || cfg.Battery.Source != "fixed" {
		t.Fatalf("default=%+v", cfg)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "tdisplay.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backlight.Backend != "sysfs" || !cfg.Buttons.Enable || cfg.Battery.Source != "ads1115" {
		t.Fatalf("cfg=%+v", cfg)
	}
}
