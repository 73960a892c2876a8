package bus

import "errors"

// ErrInvalidArgument is the base error for registration and emission calls
// rejected before any table mutation. Use errors.Is to match it; the
// wrapped message names the offending argument.
var ErrInvalidArgument = errors.New("invalid argument")
