package tuner

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when a device name or index could not
	// be resolved to a capture device.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrBackendUnavailable is returned when the capture subsystem failed
	// to initialize or list its devices.
	ErrBackendUnavailable = errors.New("audio backend unavailable")

	// ErrStreamOpenFailed is returned when the backend failed to open or
	// start the chosen device.
	ErrStreamOpenFailed = errors.New("unable to open stream")

	// ErrNoActiveStream is returned when an operation requires an active
	// stream and there is none.
	ErrNoActiveStream = errors.New("no active stream")
)

// DeviceError is an error related to a specific named device.
type DeviceError struct {
	Name string
	Err  error
}

func (err DeviceError) Error() string {
	if err.Name == "" {
		return err.Err.Error()
	}
	return fmt.Sprintf("%v (%s)", err.Err, err.Name)
}

func (err DeviceError) Unwrap() error {
	return err.Err
}

// makeDeviceError wraps err with the name of the device it relates to.
func makeDeviceError(name string, err error) error {
	return DeviceError{Name: name, Err: err}
}
