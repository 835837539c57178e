package buildscript

import (
	"errors"
	"fmt"
)

// ErrFormatViolation is matched by every *FormatError.
var ErrFormatViolation = errors.New("build script format violation")

// FormatError reports an item carrying metadata the loader does not understand.
// It is fatal for the load of that document.
type FormatError struct {
	// Path is the build script being loaded
	Path string

	// ItemType and Include identify the offending item
	ItemType string
	Include  string

	// Key is the unrecognized metadata name
	Key string
}

// Error implements the error interface
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: invalid or unsupported metadata '%s' on %s item '%s'", e.Path, e.Key, e.ItemType, e.Include)
}

// Is makes errors.Is(err, ErrFormatViolation) true.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormatViolation
}
