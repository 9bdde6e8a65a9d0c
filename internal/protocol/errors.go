package protocol

import (
	"errors"
	"fmt"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command layer.
	ErrNotInRange      = "E_NOT_IN_RANGE"
	ErrNameExists      = "E_NAME_EXISTS"
	ErrNotEnoughEnergy = "E_NOT_ENOUGH_ENERGY"
	ErrInvalidTarget   = "E_INVALID_TARGET"
	ErrInvalidArgs     = "E_INVALID_ARGS"
	ErrBusy            = "E_BUSY"
	ErrFull            = "E_FULL"
	ErrNotFound        = "E_NOT_FOUND"
	ErrNoBodypart      = "E_NO_BODYPART"
	ErrTired           = "E_TIRED"
	ErrStale           = "E_STALE"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNotInRange:      {},
	ErrNameExists:      {},
	ErrNotEnoughEnergy: {},
	ErrInvalidTarget:   {},
	ErrInvalidArgs:     {},
	ErrBusy:            {},
	ErrFull:            {},
	ErrNotFound:        {},
	ErrNoBodypart:      {},
	ErrTired:           {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeError is a command rejected by the environment.
type CodeError struct {
	Op      string
	Code    string
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Reject builds a CodeError; an empty code means success and yields nil.
func Reject(op, code, msg string) error {
	if code == "" {
		return nil
	}
	return &CodeError{Op: op, Code: code, Message: msg}
}

// CodeOf extracts the rejection code from err. Errors that are not command
// rejections map to ErrInternal; nil maps to "".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrInternal
}

func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
