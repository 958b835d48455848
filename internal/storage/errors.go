package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAccess indicates a query for a quantity the store does
	// not have, a kind it does not hold, or a derivative it does not
	// own.
	ErrInvalidAccess = errors.New("storage: invalid access")

	// ErrInvalidSetup indicates a structural operation violating a
	// precondition: conflicting insert, resizing a multi-material
	// store, merging stores with user data, cyclic dependents.
	ErrInvalidSetup = errors.New("storage: invalid setup")
)

func accessError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAccess, fmt.Sprintf(format, args...))
}

func setupError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSetup, fmt.Sprintf(format, args...))
}
