package battery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Reader yields the battery voltage at the cell, in millivolts.
type Reader interface {
	ReadMillivolts() (int, error)
}

// DefaultDivider is the on-board resistor divider between the cell and
// the ADC pin.
const DefaultDivider = 2

var iioSysfsBase = "/sys/bus/iio/devices"

// IIO reads an ADC channel through the kernel industrial I/O sysfs
// interface: mV = raw * scale * divider.
type IIO struct {
	rawPath   string
	scalePath string
	divider   int
}

// OpenIIO locates in_voltage<channel>_raw under device (e.g. "iio:device0").
func OpenIIO(device string, channel, divider int) (*IIO, error) {
	if divider <= 0 {
		divider = DefaultDivider
	}
	dir := filepath.Join(iioSysfsBase, device)
	raw := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(raw); err != nil {
		return nil, fmt.Errorf("battery: iio channel: %w", err)
	}
	scale := filepath.Join(dir, fmt.Sprintf("in_voltage%d_scale", channel))
	if _, err := os.Stat(scale); err != nil {
		scale = filepath.Join(dir, "in_voltage_scale")
	}
	return &IIO{rawPath: raw, scalePath: scale, divider: divider}, nil
}

func (r *IIO) ReadMillivolts() (int, error) {
	raw, err := readFloat(r.rawPath)
	if err != nil {
		return 0, err
	}
	scale := 1.0
	if _, statErr := os.Stat(r.scalePath); statErr == nil {
		scale, err = readFloat(r.scalePath)
		if err != nil {
			return 0, err
		}
	}
	return int(raw*scale) * r.divider, nil
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("battery: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("battery: parse %s: %w", path, err)
	}
	return v, nil
}

// MillivoltReader is the single-ended ADC read that ADS needs.
type MillivoltReader interface {
	ReadMillivolts(channel int) (int, error)
}

// ADS reads the cell through an external ADC channel behind the divider.
type ADS struct {
	adc     MillivoltReader
	channel int
	divider int
}

func NewADS(adc MillivoltReader, channel, divider int) *ADS {
	if divider <= 0 {
		divider = DefaultDivider
	}
	return &ADS{adc: adc, channel: channel, divider: divider}
}

func (r *ADS) ReadMillivolts() (int, error) {
	mv, err := r.adc.ReadMillivolts(r.channel)
	if err != nil {
		return 0, fmt.Errorf("battery: adc: %w", err)
	}
	return mv * r.divider, nil
}

// Fixed returns a settable constant voltage.
type Fixed struct {
	mu sync.Mutex
	mv int
}

func NewFixed(mv int) *Fixed { return &Fixed{mv: mv} }

func (f *Fixed) Set(mv int) {
	f.mu.Lock()
	f.mv = mv
	f.mu.Unlock()
}

func (f *Fixed) ReadMillivolts() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mv, nil
}
