package domain

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrQuotaExceeded   = errors.New("campaign quota exceeded")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrChannelDisabled = errors.New("channel disabled")
)
