// Package button reports presses of active-low push buttons wired to
// GPIO lines.
package button

import (
	"errors"
	"time"
)

// DefaultDebounce matches the settle time of the board's tactile switches.
const DefaultDebounce = 20 * time.Millisecond

var ErrUnsupported = errors.New("button: gpio unsupported on this platform")

// Button binds a logical id to a line offset on the chip.
type Button struct {
	ID   int
	Name string
	Line int
}

// Callbacks are invoked from the event goroutine of the GPIO chip.
// Either may be nil.
type Callbacks struct {
	OnPressDown func(id int)
	OnPressUp   func(id int)
}

func (cb Callbacks) dispatch(id int, down bool) {
	if down {
		if cb.OnPressDown != nil {
			cb.OnPressDown(id)
		}
		return
	}
	if cb.OnPressUp != nil {
		cb.OnPressUp(id)
	}
}
