package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownAsset   = errors.New("unknown asset type")
	ErrNoAttemptsLeft = errors.New("retry attempts exhausted")
)
