package hmic

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ContainerError is the error type every container codec in this module
// returns. Sentinel values below can be matched with errors.Is even after
// WithMessage or Wrap added context.
type ContainerError interface {
	error
	WithMessage(message string) ContainerError
	Wrap(err error) ContainerError
}

type baseContainerError string

const rootError = baseContainerError("")

// Format errors. Bad magic and truncation are fatal at load time; a
// decompression failure is localized to the frame it occurred on.
var ErrBadMagic = rootError.WithMessage("not an HMICFAST container (bad magic)")
var ErrUnsupportedVersion = rootError.WithMessage("unsupported container version")
var ErrTruncatedContainer = rootError.WithMessage("container truncated")
var ErrMalformedContainer = rootError.WithMessage("malformed container")
var ErrMalformedToken = rootError.WithMessage("malformed token")
var ErrFrameDecompression = rootError.WithMessage("frame decompression failed")

// Usage errors.
var ErrFrameOutOfRange = rootError.WithMessage("frame index out of range")
var ErrNoAudio = rootError.WithMessage("container has no audio stream")
var ErrContainerClosed = rootError.WithMessage("container is closed")
var ErrInvalidArgument = rootError.WithMessage("invalid argument")

// Source and resource errors.
var ErrSourceFailed = rootError.WithMessage("media source failed")
var ErrIOFailed = rootError.WithMessage("input/output error")

func (e baseContainerError) Error() string {
	return string(e)
}

func (e baseContainerError) WithMessage(message string) ContainerError {
	return customContainerError{
		message:       message,
		originalError: e,
	}
}

func (e baseContainerError) Wrap(err error) ContainerError {
	return customContainerError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customContainerError struct {
	message       string
	originalError error
}

// Error implements the `error` interface. When called, it returns a string
// describing the error.
func (e customContainerError) Error() string {
	return e.message
}

func (e customContainerError) WithMessage(message string) ContainerError {
	return customContainerError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customContainerError) Wrap(err error) ContainerError {
	return customContainerError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customContainerError) Unwrap() error {
	return e.originalError
}
