// Package ads1x15 reads the ADS1115 16-bit ADC in single-shot mode.
package ads1x15

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

var sleep = time.Sleep

const (
	DefaultAddress = 0x48

	regConversion = 0x00
	regConfig     = 0x01

	cfgOS         = 0x8000 // write: start conversion, read: 1 when idle
	cfgMuxSingle  = 0x4000 // AINx vs GND, channel in bits 13:12
	cfgPGA4096    = 0x0200 // +/-4.096V
	cfgModeSingle = 0x0100
	cfgDR128      = 0x0080
	cfgCompOff    = 0x0003

	fullScaleMillivolts = 4096

	// 128 SPS is ~7.8ms per conversion.
	pollInterval = 2 * time.Millisecond
	pollAttempts = 10
)

var ErrTimeout = errors.New("ads1x15: conversion timeout")

type Device struct {
	bus  drivers.I2C
	addr uint16
}

// New returns a device on bus. addr 0 selects DefaultAddress.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Device{bus: bus, addr: addr}
}

func (d *Device) Address() uint16 { return d.addr }

// ReadRaw starts a single-ended conversion on channel (0..3) and returns the
// signed conversion result.
func (d *Device) ReadRaw(channel int) (int16, error) {
	if d == nil || d.bus == nil {
		return 0, errors.New("ads1x15: device is nil")
	}
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("ads1x15: channel %d out of range", channel)
	}
	cfg := uint16(cfgOS|cfgMuxSingle|cfgPGA4096|cfgModeSingle|cfgDR128|cfgCompOff) | uint16(channel)<<12
	if err := d.writeReg(regConfig, cfg); err != nil {
		return 0, fmt.Errorf("ads1x15: start conversion: %w", err)
	}

	ready := false
	for i := 0; i < pollAttempts; i++ {
		sleep(pollInterval)
		v, err := d.readReg(regConfig)
		if err != nil {
			return 0, fmt.Errorf("ads1x15: poll: %w", err)
		}
		if v&cfgOS != 0 {
			ready = true
			break
		}
	}
	if !ready {
		return 0, ErrTimeout
	}

	v, err := d.readReg(regConversion)
	if err != nil {
		return 0, fmt.Errorf("ads1x15: read conversion: %w", err)
	}
	return int16(v), nil
}

// ReadMillivolts converts ReadRaw at the +/-4.096V range.
func (d *Device) ReadMillivolts(channel int) (int, error) {
	raw, err := d.ReadRaw(channel)
	if err != nil {
		return 0, err
	}
	return int(raw) * fullScaleMillivolts / 32768, nil
}

func (d *Device) writeReg(reg byte, v uint16) error {
	var buf [3]byte
	buf[0] = reg
	binary.BigEndian.PutUint16(buf[1:], v)
	return d.bus.Tx(d.addr, buf[:], nil)
}

func (d *Device) readReg(reg byte) (uint16, error) {
	var buf [2]byte
	if err := d.bus.Tx(d.addr, []byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
