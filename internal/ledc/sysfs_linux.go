//go:build linux

package ledc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var pwmSysfsBase = "/sys/class/pwm"

// SysfsPWM drives channels of a kernel PWM chip via /sys/class/pwm.
//
// Channel numbers in ChannelConfig are the chip's pwmN indices. On a Pi the
// backlight pin usually needs `dtoverlay=pwm` (or pwm-2chan) first.
type SysfsPWM struct {
	*controller
	out *sysfsOutput
}

// OpenSysfs binds to chip (e.g. "pwmchip0"). Empty chip picks the first
// chip that reports at least one channel.
func OpenSysfs(chip string) (*SysfsPWM, error) {
	chipPath, err := findPWMChip(chip)
	if err != nil {
		return nil, err
	}
	out := &sysfsOutput{chipPath: chipPath, channels: make(map[int]*sysfsChannel)}
	return &SysfsPWM{controller: newController(out), out: out}, nil
}

// ChipPath is the resolved /sys/class/pwm/pwmchipN directory.
func (s *SysfsPWM) ChipPath() string { return s.out.chipPath }

func findPWMChip(chip string) (string, error) {
	base := pwmSysfsBase
	if chip != "" {
		p := filepath.Join(base, chip)
		if _, err := readInt(filepath.Join(p, "npwm")); err != nil {
			return "", fmt.Errorf("ledc: %s: %w", p, err)
		}
		return p, nil
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("ledc: read %s: %w", base, err)
	}
	// pwmchipN entries are commonly symlinks, not directories.
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pwmchip") {
			continue
		}
		p := filepath.Join(base, name)
		n, rerr := readInt(filepath.Join(p, "npwm"))
		if rerr != nil || n <= 0 {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("ledc: no sysfs pwmchip found under %s (is the pwm overlay enabled?)", base)
}

type sysfsChannel struct {
	path     string
	periodNS uint64
	maxDuty  uint32
}

type sysfsOutput struct {
	chipPath string
	channels map[int]*sysfsChannel
}

func (o *sysfsOutput) configure(t TimerConfig, c ChannelConfig) error {
	n, err := readInt(filepath.Join(o.chipPath, "npwm"))
	if err != nil {
		return fmt.Errorf("ledc: read npwm: %w", err)
	}
	if c.Channel >= n {
		return fmt.Errorf("%w: channel %d, chip has %d", ErrInvalidConfig, c.Channel, n)
	}
	ch := &sysfsChannel{
		path:     filepath.Join(o.chipPath, fmt.Sprintf("pwm%d", c.Channel)),
		periodNS: uint64(t.Period().Nanoseconds()),
		maxDuty:  t.MaxDuty(),
	}
	if ch.periodNS == 0 {
		ch.periodNS = 1
	}
	if err := ensureExported(o.chipPath, ch.path, c.Channel); err != nil {
		return err
	}

	// Disable before changing period; duty must never exceed the period.
	_ = writeSysfs(filepath.Join(ch.path, "enable"), "0")
	_ = writeSysfs(filepath.Join(ch.path, "duty_cycle"), "0")
	if err := writeSysfs(filepath.Join(ch.path, "period"), strconv.FormatUint(ch.periodNS, 10)); err != nil {
		return fmt.Errorf("ledc: set period: %w", err)
	}
	if err := writeSysfs(filepath.Join(ch.path, "enable"), "1"); err != nil {
		return fmt.Errorf("ledc: enable: %w", err)
	}
	o.channels[c.Channel] = ch
	return nil
}

func (o *sysfsOutput) write(channel int, duty uint32) error {
	ch, ok := o.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	ns := uint64(duty) * ch.periodNS / uint64(ch.maxDuty)
	return writeSysfs(filepath.Join(ch.path, "duty_cycle"), strconv.FormatUint(ns, 10))
}

func (o *sysfsOutput) pause(channel int) error {
	ch, ok := o.channels[channel]
	if !ok {
		return nil
	}
	return writeSysfs(filepath.Join(ch.path, "enable"), "0")
}

func (o *sysfsOutput) release(channel int) error {
	ch, ok := o.channels[channel]
	if !ok {
		return nil
	}
	delete(o.channels, channel)
	_ = writeSysfs(filepath.Join(ch.path, "enable"), "0")
	if err := writeSysfs(filepath.Join(o.chipPath, "unexport"), strconv.Itoa(channel)); err != nil {
		return fmt.Errorf("ledc: unexport pwm%d: %w", channel, err)
	}
	return nil
}

func ensureExported(chipPath, pwmPath string, channel int) error {
	if _, err := os.Stat(pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(chipPath, "export"), strconv.Itoa(channel)); err != nil {
		// Already exported by someone else.
		if _, statErr := os.Stat(pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("ledc: export pwm%d: %w", channel, err)
	}

	// The node appears asynchronously after export.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(pwmPath); err != nil {
		return fmt.Errorf("ledc: %s not created after export: %w", pwmPath, err)
	}
	return nil
}

// sysfsRetryWindow bounds how long writeSysfs keeps retrying transient errors.
var sysfsRetryWindow = 2 * time.Second

func writeSysfs(path string, value string) error {
	// O_WRONLY without O_TRUNC/O_CREATE: some attributes reject truncation.
	// Right after export udev may still be fixing permissions, so EACCES and
	// ENOENT are retried for a short window.
	deadline := time.Now().Add(sysfsRetryWindow)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			_, werr := f.WriteString(value)
			cerr := f.Close()
			if werr == nil && cerr == nil {
				return nil
			}
			err = errors.Join(werr, cerr)
		}
		if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return err
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("%s: empty", path)
	}
	return strconv.Atoi(s)
}
