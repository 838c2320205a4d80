package signals

import "errors"

// ErrStopped is the cancellation cause when a stop signal ends a round.
var ErrStopped = errors.New("stop signal received")
