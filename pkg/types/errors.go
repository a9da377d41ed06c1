package types

import "errors"

var (
	ErrInvalidPlayerID = errors.New("player ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
)
