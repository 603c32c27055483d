package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrJobNotFound      = errors.New("job not found")
	ErrTurnInFlight     = errors.New("a turn is already in flight for this session")
	ErrAdmissionTimeout = errors.New("could not acquire submission lock in time")
	ErrStartFailed      = errors.New("start request failed")
	ErrClosed           = errors.New("coordinator is closed")
)

// Validation failures are invalid arguments; callers may match either the
// specific sentinel or ErrInvalidArgument.
var (
	ErrEmptyMessage = fmt.Errorf("%w: message is empty", ErrInvalidArgument)
	ErrMentionOnly  = fmt.Errorf("%w: message contains only a mention token", ErrInvalidArgument)
)
