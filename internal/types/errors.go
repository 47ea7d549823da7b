package types

import "errors"

// Sentinel errors shared across the compliance domains. Repositories and
// services wrap these with fmt.Errorf("...: %w", ...) so handlers can map
// them to HTTP statuses with errors.Is.
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record already exists")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("not allowed on the current plan")
	ErrBadRequest      = errors.New("invalid request")
)
