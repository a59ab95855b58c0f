package pipeline

import (
	"github.com/pkg/errors"
)

var (
	ErrTransportMustBeSet = errors.New("transport must be set")
	ErrCatalogLoad        = errors.New("failed to load operations")
	ErrValidation         = errors.New("image validation failed")
	ErrProcessingFailed   = errors.New("processing failed")
	ErrSaveFailed         = errors.New("failed to save step output")
	ErrStepOutOfRange     = errors.New("step index out of range")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrNoImage            = errors.New("no image selected")
)

// ValidationError is returned when an image is rejected before it reaches the pipeline.
// Reason is the message shown to the user.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return e.Reason
	}

	return e.Reason + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProcessingError is returned when a processing request fails, either on the wire or because
// the server reported a failure. Message is the message shown to the user.
type ProcessingError struct {
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return e.Message
	}

	return e.Message + ": " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailed
}

// CatalogLoadError is returned by Init when the operations cannot be loaded.
type CatalogLoadError struct {
	Err error
}

func (e *CatalogLoadError) Error() string {
	return ErrCatalogLoad.Error() + ": " + e.Err.Error()
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

func (e *CatalogLoadError) Is(target error) bool {
	return target == ErrCatalogLoad
}
