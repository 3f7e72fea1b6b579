package battery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		mv   int
		want int
	}{
		{0, 0},
		{3700, 14},
		{4200, 100},
		{5000, 100},
	}
	for _, c := range cases {
		if got := Percent(c.mv); got != c.want {
			t.Fatalf("Percent(%d)=%d want %d", c.mv, got, c.want)
		}
	}
}

func TestVoltsToPercent_Monotonic(t *testing.T) {
	prev := VoltsToPercent(3.0)
	for mv := 3050; mv <= 4400; mv += 50 {
		cur := VoltsToPercent(float64(mv) / 1000)
		if cur < prev {
			t.Fatalf("curve decreases at %dmV: %v < %v", mv, cur, prev)
		}
		prev = cur
	}
}

func TestUSBPowered(t *testing.T) {
	cases := []struct {
		mv   int
		want bool
	}{
		{5000, true},
		{5100, true},
		{4101, true},
		{4100, false},
		{3700, false},
		{5101, false},
	}
	for _, c := range cases {
		if got := USBPowered(c.mv); got != c.want {
			t.Fatalf("USBPowered(%d)=%v want %v", c.mv, got, c.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		mv   int
		want PowerMode
	}{
		{5000, NoBattery},
		{4531, NoBattery},
		{4530, Charging},
		{4351, Charging},
		{4350, Discharging},
		{3600, Discharging},
	}
	for _, c := range cases {
		if got := Classify(c.mv); got != c.want {
			t.Fatalf("Classify(%d)=%v want %v", c.mv, got, c.want)
		}
	}
	if NoBattery.String() != "No battery" || Charging.String() != "Battery Charging" || Discharging.String() != "Battery Discharging" {
		t.Fatalf("unexpected mode strings")
	}
}

func TestSymbolIndex(t *testing.T) {
	cases := map[int]int{
		100: 4, 76: 4, 75: 3, 51: 3, 50: 2, 26: 2, 25: 1, 11: 1, 10: 0, 0: 0,
	}
	for pct, want := range cases {
		if got := SymbolIndex(pct); got != want {
			t.Fatalf("SymbolIndex(%d)=%d want %d", pct, got, want)
		}
	}
}

func TestIIO(t *testing.T) {
	base := t.TempDir()
	old := iioSysfsBase
	iioSysfsBase = base
	t.Cleanup(func() { iioSysfsBase = old })

	dir := filepath.Join(base, "iio:device0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "in_voltage3_raw"), []byte("2100\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "in_voltage_scale"), []byte("0.5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := OpenIIO("iio:device0", 3, 0)
	if err != nil {
		t.Fatalf("OpenIIO: %v", err)
	}
	mv, err := r.ReadMillivolts()
	if err != nil {
		t.Fatalf("ReadMillivolts: %v", err)
	}
	if mv != 2100 {
		t.Fatalf("mv=%d want 2100", mv)
	}

	if _, err := OpenIIO("iio:device0", 1, 2); err == nil {
		t.Fatalf("expected error for missing channel")
	}
}

type fakeADC struct {
	mv  int
	err error
	ch  int
}

func (f *fakeADC) ReadMillivolts(ch int) (int, error) {
	f.ch = ch
	return f.mv, f.err
}

func TestADS(t *testing.T) {
	adc := &fakeADC{mv: 1950}
	mv, err := NewADS(adc, 1, 0).ReadMillivolts()
	if err != nil {
		t.Fatalf("ReadMillivolts: %v", err)
	}
	if mv != 3900 || adc.ch != 1 {
		t.Fatalf("mv=%d ch=%d want 3900 1", mv, adc.ch)
	}
	boom := errors.New("boom")
	if _, err := NewADS(&fakeADC{err: boom}, 0, 2).ReadMillivolts(); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestFixed(t *testing.T) {
	f := NewFixed(4000)
	if mv, _ := f.ReadMillivolts(); mv != 4000 {
		t.Fatalf("mv=%d want 4000", mv)
	}
	f.Set(3500)
	if mv, _ := f.ReadMillivolts(); mv != 3500 {
		t.Fatalf("mv=%d want 3500", mv)
	}
}
