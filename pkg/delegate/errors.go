package delegate

import "errors"

// Construction and exchange errors.
var (
	// ErrMissing is returned when a required parameter is missing.
	ErrMissing = errors.New("delegate: missing parameter")

	// ErrInvalidType is returned when a parameter is of the wrong kind,
	// such as a nil parent.
	ErrInvalidType = errors.New("delegate: invalid type")

	// ErrOutOfRange is returned when a parameter is outside its valid range.
	ErrOutOfRange = errors.New("delegate: out of range")

	ErrDuplicateKey       = errors.New("delegate: duplicate key")
	ErrDuplicateAccessory = errors.New("delegate: duplicate accessory")
	ErrUnknownKey         = errors.New("delegate: unknown key")

	// ErrTimeout is returned to the host when a setter does not finish in time.
	ErrTimeout = errors.New("delegate: timed out")

	// ErrEmptyName is returned when a configured name is set to "".
	ErrEmptyName = errors.New("delegate: empty name")

	// ErrDestroyed is returned by operations on a destroyed delegate.
	ErrDestroyed = errors.New("delegate: destroyed")
)
