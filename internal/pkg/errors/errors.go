package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")

	ErrContentTooShort = fmt.Errorf("%w: content too short", ErrInvalid)
	ErrContentTooLong  = fmt.Errorf("%w: content too long", ErrInvalid)
	ErrInvalidDate     = fmt.Errorf("%w: date", ErrInvalid)
)
