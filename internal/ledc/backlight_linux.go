//go:build linux

package ledc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var backlightSysfsBase = "/sys/class/backlight"

// Backlight maps channel duty onto a kernel backlight device
// (/sys/class/backlight/<name>/brightness), scaled by max_brightness.
// Every channel drives the same device.
type Backlight struct {
	*controller
	out *backlightOutput
}

func OpenBacklight(name string) (*Backlight, error) {
	if name == "" {
		entries, err := os.ReadDir(backlightSysfsBase)
		if err != nil {
			return nil, fmt.Errorf("ledc: read %s: %w", backlightSysfsBase, err)
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("ledc: no backlight device under %s", backlightSysfsBase)
		}
		name = entries[0].Name()
	}
	dir := filepath.Join(backlightSysfsBase, name)
	maxB, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("ledc: backlight %s: %w", name, err)
	}
	if maxB <= 0 {
		return nil, fmt.Errorf("ledc: backlight %s: max_brightness=%d", name, maxB)
	}
	out := &backlightOutput{dir: dir, max: uint64(maxB), maxDuty: make(map[int]uint32)}
	return &Backlight{controller: newController(out), out: out}, nil
}

type backlightOutput struct {
	dir     string
	max     uint64
	maxDuty map[int]uint32
}

func (o *backlightOutput) configure(t TimerConfig, c ChannelConfig) error {
	o.maxDuty[c.Channel] = t.MaxDuty()
	return o.setPower(true)
}

func (o *backlightOutput) write(channel int, duty uint32) error {
	md, ok := o.maxDuty[channel]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	v := uint64(duty) * o.max / uint64(md)
	return writeSysfs(filepath.Join(o.dir, "brightness"), strconv.FormatUint(v, 10))
}

func (o *backlightOutput) pause(int) error { return o.setPower(false) }

func (o *backlightOutput) release(channel int) error {
	delete(o.maxDuty, channel)
	return o.setPower(false)
}

// setPower toggles bl_power (0 = on, 4 = powerdown) when the device has it.
func (o *backlightOutput) setPower(on bool) error {
	p := filepath.Join(o.dir, "bl_power")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	v := "4"
	if on {
		v = "0"
	}
	return writeSysfs(p, v)
}
