package device

import (
	"errors"
	"fmt"
)

// ErrInit indicates the NVML library could not be loaded from any of the
// candidate shared-library names. No device work is possible.
var ErrInit = errors.New("nvml: failed to initialize (tried libnvidia-ml.so, libnvidia-ml.so.1, nvml.dll)")

// ErrNoDevices indicates discovery finished with an empty device set.
var ErrNoDevices = errors.New("no usable devices found")

// notFoundError signals that an ordinal requested by the caller is absent
// from the discovered set.
type notFoundError struct{ ordinal int }

func (e notFoundError) Error() string {
	return fmt.Sprintf("requested device %d not found in discovered set", e.ordinal)
}

// ErrDeviceNotFound constructs a notFoundError for the given ordinal.
func ErrDeviceNotFound(ordinal int) error { return notFoundError{ordinal: ordinal} }

// IsDeviceNotFound reports whether err indicates a missing requested ordinal.
func IsDeviceNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}
