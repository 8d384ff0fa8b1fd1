package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("validation failed")
	ErrBackpressureExceeded = errors.New("backpressure exceeded")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrNoJobAvailable       = errors.New("no job available")
)
