// Package service contains the business logic of the question and ingestion flows.
package service

import (
	"errors"
	"fmt"
)

// ErrValidation marks a client error. Handlers map it to 400.
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
