package domain

import "errors"

// Error taxonomy shared by the REST API and the real-time gateway. Callers
// classify with errors.Is; wrapping preserves the category.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store unavailable")
)
