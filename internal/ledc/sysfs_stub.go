//go:build !linux

package ledc

type SysfsPWM struct{ *controller }

type Backlight struct{ *controller }

func OpenSysfs(chip string) (*SysfsPWM, error) { return nil, ErrUnsupported }

func (s *SysfsPWM) ChipPath() string { return "" }

func OpenBacklight(name string) (*Backlight, error) { return nil, ErrUnsupported }
