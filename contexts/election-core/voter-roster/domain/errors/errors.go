package errors

import "errors"

var (
	ErrProfileNotFound     = errors.New("voter profile not found")
	ErrInvalidProfileInput = errors.New("voter profile input is invalid")
)
