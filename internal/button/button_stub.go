//go:build !linux

package button

import "time"

type Set struct{}

func Open(chip string, buttons []Button, debounce time.Duration, cb Callbacks) (*Set, error) {
	return nil, ErrUnsupported
}

func (s *Set) Close() error { return nil }
