//go:build linux

package ledc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mustWrite(t *testing.T, path, v string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(v), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile %s: %v", path, err)
	}
	return strings.TrimSpace(string(b))
}

func fakeSysfs(t *testing.T) {
	t.Helper()
	oldWin := sysfsRetryWindow
	sysfsRetryWindow = 0
	t.Cleanup(func() { sysfsRetryWindow = oldWin })
}

func TestFindPWMChip_AcceptsSymlinkedPWMChip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "pwm")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	realChip := filepath.Join(dir, "realchip0")
	mustWrite(t, filepath.Join(realChip, "npwm"), "2\n")
	link := filepath.Join(base, "pwmchip0")
	if err := os.Symlink(realChip, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	chipPath, err := findPWMChip("")
	if err != nil {
		t.Fatalf("findPWMChip: %v", err)
	}
	if chipPath != link {
		t.Fatalf("chipPath=%q want %q", chipPath, link)
	}
	if _, err := findPWMChip("pwmchip9"); err == nil {
		t.Fatalf("expected error for missing chip")
	}
}

func TestSysfsPWM_DutyScaledToPeriod(t *testing.T) {
	fakeSysfs(t)
	base := t.TempDir()
	chip := filepath.Join(base, "pwmchip0")
	mustWrite(t, filepath.Join(chip, "npwm"), "1\n")
	mustWrite(t, filepath.Join(chip, "export"), "")
	mustWrite(t, filepath.Join(chip, "unexport"), "")
	for _, f := range []string{"enable", "period", "duty_cycle"} {
		mustWrite(t, filepath.Join(chip, "pwm0", f), "0")
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	p, err := OpenSysfs("pwmchip0")
	if err != nil {
		t.Fatalf("OpenSysfs: %v", err)
	}
	if err := p.ConfigureTimer(TimerConfig{Timer: 0, ResolutionBits: 10, FreqHz: 5000}); err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if err := p.ConfigureChannel(ChannelConfig{Channel: 0, Timer: 0}); err != nil {
		t.Fatalf("ConfigureChannel: %v", err)
	}
	if got := mustRead(t, filepath.Join(chip, "pwm0", "period")); got != "200000" {
		t.Fatalf("period=%s want 200000", got)
	}
	if got := mustRead(t, filepath.Join(chip, "pwm0", "enable")); got != "1" {
		t.Fatalf("enable=%s want 1", got)
	}

	if err := p.SetDuty(0, 511); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if err := p.UpdateDuty(0); err != nil {
		t.Fatalf("UpdateDuty: %v", err)
	}
	if got := mustRead(t, filepath.Join(chip, "pwm0", "duty_cycle")); got != "99902" {
		t.Fatalf("duty_cycle=%s want 99902", got)
	}

	if err := p.PauseTimer(0); err != nil {
		t.Fatalf("PauseTimer: %v", err)
	}
	if got := mustRead(t, filepath.Join(chip, "pwm0", "enable")); got != "0" {
		t.Fatalf("enable=%s want 0 after pause", got)
	}
	if err := p.ResetTimer(0); err != nil {
		t.Fatalf("ResetTimer: %v", err)
	}
	if got := mustRead(t, filepath.Join(chip, "unexport")); got != "0" {
		t.Fatalf("unexport=%q want 0", got)
	}
}

func TestSysfsPWM_ChannelOutOfRange(t *testing.T) {
	fakeSysfs(t)
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, "pwmchip0", "npwm"), "1\n")
	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	p, err := OpenSysfs("")
	if err != nil {
		t.Fatalf("OpenSysfs: %v", err)
	}
	if err := p.ConfigureTimer(TimerConfig{Timer: 0, ResolutionBits: 8, FreqHz: 1000}); err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if err := p.ConfigureChannel(ChannelConfig{Channel: 3, Timer: 0}); err == nil {
		t.Fatalf("expected error for channel beyond npwm")
	}
}

func TestBacklight_ScalesToMaxBrightness(t *testing.T) {
	fakeSysfs(t)
	base := t.TempDir()
	dev := filepath.Join(base, "lcd")
	mustWrite(t, filepath.Join(dev, "max_brightness"), "255\n")
	mustWrite(t, filepath.Join(dev, "brightness"), "0")
	mustWrite(t, filepath.Join(dev, "bl_power"), "4")

	old := backlightSysfsBase
	backlightSysfsBase = base
	t.Cleanup(func() { backlightSysfsBase = old })

	old2 := FadeTick
	FadeTick = time.Millisecond
	t.Cleanup(func() { FadeTick = old2 })

	bl, err := OpenBacklight("")
	if err != nil {
		t.Fatalf("OpenBacklight: %v", err)
	}
	if err := bl.ConfigureTimer(TimerConfig{Timer: 0, ResolutionBits: 10, FreqHz: 5000}); err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if err := bl.ConfigureChannel(ChannelConfig{Channel: 0, Timer: 0}); err != nil {
		t.Fatalf("ConfigureChannel: %v", err)
	}
	if got := mustRead(t, filepath.Join(dev, "bl_power")); got != "0" {
		t.Fatalf("bl_power=%s want 0", got)
	}
	if err := bl.SetDuty(0, 512); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if err := bl.UpdateDuty(0); err != nil {
		t.Fatalf("UpdateDuty: %v", err)
	}
	if got := mustRead(t, filepath.Join(dev, "brightness")); got != "127" {
		t.Fatalf("brightness=%s want 127", got)
	}

	if err := bl.InstallFade(); err != nil {
		t.Fatalf("InstallFade: %v", err)
	}
	if err := bl.StartFade(0, 1023, 20*time.Millisecond); err != nil {
		t.Fatalf("StartFade: %v", err)
	}
	bl.WaitFade(0)
	if got := mustRead(t, filepath.Join(dev, "brightness")); got != "255" {
		t.Fatalf("brightness=%s want 255 after fade", got)
	}
}
