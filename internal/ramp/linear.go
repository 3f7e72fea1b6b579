package ramp

import "time"

// Step applies the next duty value.
type Step func(duty uint32) error

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Linear walks from cur to target in evenly spaced integer increments,
// one every period, finishing on target after roughly total.
// It runs on the caller's goroutine; Tick owns timing and cancellation.
// total<=period snaps straight to target.
//
// The returned bool is true when target was reached.
func Linear(cur, target uint32, total, period time.Duration, tick Tick, set Step) (bool, error) {
	if period <= 0 {
		period = time.Millisecond
	}
	steps := int64(total / period)
	if steps <= 1 || cur == target {
		return true, set(target)
	}

	delta := int64(target) - int64(cur)
	acc := int64(0)
	pos := int64(cur)
	for i := int64(1); i < steps; i++ {
		if !tick(period) {
			return false, nil
		}
		acc += delta
		inc := acc / steps
		if inc == 0 {
			continue
		}
		acc -= inc * steps
		pos += inc
		if err := set(uint32(pos)); err != nil {
			return false, err
		}
	}
	if !tick(period) {
		return false, nil
	}
	return true, set(target)
}
