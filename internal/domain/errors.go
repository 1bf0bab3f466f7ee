package domain

import "errors"

// Caller-recoverable outcomes. Anything else is an internal error.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrConflict           = errors.New("concurrent modification")
)
