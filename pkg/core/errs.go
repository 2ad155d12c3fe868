package core

import "errors"

var (
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrInvalidMultiplier = errors.New("atr multiplier must be positive")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrMissingField      = errors.New("missing required field")
	ErrDegenerateResult  = errors.New("degenerate result")
)
