package tx

import (
	"errors"
	"fmt"
)

// Normalized transmitter errors.
var (
	ErrUnknownTransmitter = errors.New("UNKNOWN_TRANSMITTER")
	ErrUnknownType        = errors.New("UNKNOWN_TYPE")
	ErrInitFailed         = errors.New("INIT_FAILED")
	ErrInvalidParameter   = errors.New("INVALID_PARAMETER")
)

// InitError reports which transmitter failed to come up and why.
type InitError struct {
	Name     string // Transmitter section name
	Code     error  // Normalized code
	Original error  // Underlying cause, may be nil
}

func (e *InitError) Error() string {
	if e.Original == nil {
		return fmt.Sprintf("%v: transmitter %s", e.Code, e.Name)
	}
	return fmt.Sprintf("%v: transmitter %s: %v", e.Code, e.Name, e.Original)
}

// Unwrap exposes both the normalized code and the original cause to
// errors.Is and errors.As.
func (e *InitError) Unwrap() []error {
	if e.Original == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Original}
}

// NewInitError wraps cause as an initialization failure of name. Causes that
// already carry a normalized code keep it.
func NewInitError(name string, cause error) error {
	code := ErrInitFailed
	switch {
	case errors.Is(cause, ErrUnknownTransmitter):
		code = ErrUnknownTransmitter
	case errors.Is(cause, ErrUnknownType):
		code = ErrUnknownType
	}
	return &InitError{Name: name, Code: code, Original: cause}
}
