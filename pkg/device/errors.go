package device

import "errors"

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrUnsupportedVariant = errors.New("unsupported payload variant")
	ErrNoConnection       = errors.New("device has no connection")
)
