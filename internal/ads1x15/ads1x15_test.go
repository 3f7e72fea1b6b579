package ads1x15

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeI2C models the ADS1115 config and conversion registers.
type fakeI2C struct {
	addr       uint16
	lastConfig uint16
	conversion int16
	busyPolls  int
	pointer    byte
	err        error
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.addr = addr
	if len(w) > 0 {
		f.pointer = w[0]
	}
	if len(w) == 3 && w[0] == regConfig {
		f.lastConfig = binary.BigEndian.Uint16(w[1:])
	}
	if len(r) == 2 {
		switch f.pointer {
		case regConfig:
			v := f.lastConfig &^ cfgOS
			if f.busyPolls > 0 {
				f.busyPolls--
			} else {
				v |= cfgOS
			}
			binary.BigEndian.PutUint16(r, v)
		case regConversion:
			binary.BigEndian.PutUint16(r, uint16(f.conversion))
		}
	}
	return nil
}

func noSleep(t *testing.T) {
	t.Helper()
	old := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = old })
}

func TestReadMillivolts(t *testing.T) {
	noSleep(t)
	bus := &fakeI2C{conversion: 16000, busyPolls: 2}
	d := New(bus, 0)
	mv, err := d.ReadMillivolts(2)
	if err != nil {
		t.Fatalf("ReadMillivolts: %v", err)
	}
	if mv != 2000 {
		t.Fatalf("mv=%d want 2000", mv)
	}
	if bus.addr != DefaultAddress {
		t.Fatalf("addr=0x%X want 0x%X", bus.addr, DefaultAddress)
	}
	// OS | MUX=110 (AIN2) | PGA=001 | MODE | DR=100 | COMP_QUE=11
	if bus.lastConfig != 0xE383 {
		t.Fatalf("config=0x%04X want 0xE383", bus.lastConfig)
	}
}

func TestReadRaw_Negative(t *testing.T) {
	noSleep(t)
	d := New(&fakeI2C{conversion: -8}, 0x49)
	if d.Address() != 0x49 {
		t.Fatalf("addr=0x%X", d.Address())
	}
	mv, err := d.ReadMillivolts(0)
	if err != nil {
		t.Fatalf("ReadMillivolts: %v", err)
	}
	if mv != -1 {
		t.Fatalf("mv=%d want -1", mv)
	}
}

func TestReadRaw_Timeout(t *testing.T) {
	noSleep(t)
	d := New(&fakeI2C{busyPolls: pollAttempts + 1}, 0)
	if _, err := d.ReadRaw(0); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v want ErrTimeout", err)
	}
}

func TestReadRaw_Errors(t *testing.T) {
	noSleep(t)
	if _, err := New(&fakeI2C{}, 0).ReadRaw(4); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err=%v want out of range", err)
	}
	boom := errors.New("nack")
	if _, err := New(&fakeI2C{err: boom}, 0).ReadRaw(1); !errors.Is(err, boom) {
		t.Fatalf("err=%v want nack", err)
	}
	var d *Device
	if _, err := d.ReadRaw(0); err == nil {
		t.Fatalf("expected error for nil device")
	}
}
