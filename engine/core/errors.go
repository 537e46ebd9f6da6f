package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Error is the engine status code. Codes are bit flags and can be combined,
// e.g. Failure|DeviceLost.
type Error uint32

const (
	Success              Error = 0
	Failure              Error = 1 << 0
	InvalidArgument      Error = 1 << 1
	OutOfMemory          Error = 1 << 2
	DeviceLost           Error = 1 << 3
	InitializationFailed Error = 1 << 4
	InvalidUse           Error = 1 << 5
	FeatureNotSupported  Error = 1 << 6
	Unknown              Error = math.MaxUint32
)

var errorNames = []struct {
	code Error
	name string
}{
	{Failure, "failure"},
	{InvalidArgument, "invalid argument"},
	{OutOfMemory, "out of memory"},
	{DeviceLost, "device lost"},
	{InitializationFailed, "initialization failed"},
	{InvalidUse, "invalid use"},
	{FeatureNotSupported, "feature not supported"},
}

// ErrorString returns the human readable name of a code. Combined codes are
// joined with a pipe.
func ErrorString(code Error) string {
	switch code {
	case Success:
		return "success"
	case Unknown:
		return "unknown"
	}
	parts := make([]string, 0, 2)
	for _, n := range errorNames {
		if code&n.code != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("error(0x%x)", uint32(code))
	}
	return strings.Join(parts, "|")
}

func (e Error) Error() string {
	return ErrorString(e)
}

// Has reports whether every flag of other is set in e.
func (e Error) Has(other Error) bool {
	return e&other == other
}

// Is lets errors.Is match a code against any error carrying overlapping
// flags, so errors.Is(err, DeviceLost) holds for Failure|DeviceLost.
func (e Error) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}
	if t == Success || e == Success || t == Unknown || e == Unknown {
		return t == e
	}
	return e&t == t
}

// CodedError attaches a status code to a message and an optional cause.
type CodedError struct {
	Code Error
	Msg  string
	Err  error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrorString(e.Code), e.Msg)
}

func (e *CodedError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Code, e.Err}
	}
	return []error{e.Code}
}

// Errorf builds a CodedError. The operand of a %w verb becomes the cause.
func Errorf(code Error, format string, args ...interface{}) error {
	wrapped := fmt.Errorf(format, args...)
	return &CodedError{Code: code, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// CodeOf extracts the status code carried by err. Nil is Success and errors
// without a code are Unknown.
func CodeOf(err error) Error {
	if err == nil {
		return Success
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var code Error
	if errors.As(err, &code) {
		return code
	}
	return Unknown
}

// Assert panics when a programmer contract is violated.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+msg, args...))
	}
}

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")
)
