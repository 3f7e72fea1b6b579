//go:build linux

package button

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

var logf = log.Printf

var requestLineFn = func(chip string, offset int, opts ...gpiocdev.LineReqOption) (io.Closer, error) {
	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Set holds the requested lines until Close.
type Set struct {
	lines []io.Closer
}

// Open requests every button line on chip (e.g. "gpiochip0") as a debounced
// active-low input reporting both edges.
func Open(chip string, buttons []Button, debounce time.Duration, cb Callbacks) (*Set, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	s := &Set{}
	for _, b := range buttons {
		if b.Line < 0 {
			_ = s.Close()
			return nil, fmt.Errorf("button: invalid line %d for %q", b.Line, b.Name)
		}
		l, err := requestLineFn(chip, b.Line,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(eventHandler(b.ID, cb)),
			gpiocdev.WithConsumer("tdisplay-ng-"+b.Name),
		)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("button: request %s line %d: %w", chip, b.Line, err)
		}
		logf("button: %s on %s line %d", b.Name, chip, b.Line)
		s.lines = append(s.lines, l)
	}
	return s, nil
}

// Edges are logical; with AsActiveLow a rising edge is the press.
func eventHandler(id int, cb Callbacks) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		switch evt.Type {
		case gpiocdev.LineEventRisingEdge:
			cb.dispatch(id, true)
		case gpiocdev.LineEventFallingEdge:
			cb.dispatch(id, false)
		}
	}
}

func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, l := range s.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.lines = nil
	return errors.Join(errs...)
}
