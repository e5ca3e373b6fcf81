package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ValidationError is the cause of configuration validation failures.
	ValidationError = errors.New("validation failed")
	IsValidation    = isErrorFunc(ValidationError)

	// DeviceNotAttachedError is returned by bus operations of a driver
	// that is not attached to a GPIO port.
	DeviceNotAttachedError = errors.New("device not attached")
	IsDeviceNotAttached    = isErrorFunc(DeviceNotAttachedError)

	// InvalidArgumentError is returned when an argument is out of domain.
	// It is always raised before any bus activity.
	InvalidArgumentError = errors.New("invalid argument")
	IsInvalidArgument    = isErrorFunc(InvalidArgumentError)

	// GpioFaultError is returned when the GPIO port rejected a configure
	// or drive request. The attachment must be considered broken.
	GpioFaultError = errors.New("gpio fault")
	IsGpioFault    = isErrorFunc(GpioFaultError)

	// NotReadyError is returned when hardware is requested before it has
	// been opened and attached.
	NotReadyError = errors.New("hardware not ready")
	IsNotReady    = isErrorFunc(NotReadyError)

	maskAny = errors.WithStack
)

// InvalidArgument returns an InvalidArgumentError with given message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(InvalidArgumentError, format, args...)
}

// DeviceNotAttached returns a DeviceNotAttachedError for the named device.
func DeviceNotAttached(device string) error {
	return errors.Wrapf(DeviceNotAttachedError, "%s is not attached", device)
}

// GpioFault wraps the given adapter failure as a GpioFaultError.
func GpioFault(cause error, format string, args ...interface{}) error {
	return &gpioFault{
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
	}
}

type gpioFault struct {
	msg   string
	cause error
}

func (e *gpioFault) Error() string {
	if e.cause == nil {
		return e.msg + ": " + GpioFaultError.Error()
	}
	return e.msg + ": " + GpioFaultError.Error() + ": " + e.cause.Error()
}

// Cause returns GpioFaultError so errors.Cause resolves to the sentinel.
func (e *gpioFault) Cause() error { return GpioFaultError }

// Unwrap exposes the adapter failure to errors.Is / errors.As.
func (e *gpioFault) Unwrap() error { return e.cause }

// AdapterError returns the underlying adapter failure of a GpioFaultError.
func AdapterError(err error) error {
	var gf *gpioFault
	if errors.As(err, &gf) {
		return gf.cause
	}
	return nil
}

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}
