package engine

import "errors"

// ErrStopped is returned by Submit once the event loop has shut down.
var ErrStopped = errors.New("engine stopped")
