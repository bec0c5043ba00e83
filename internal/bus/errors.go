package bus

import "errors"

// ErrStopped is returned by PublishInbound after Stop.
var ErrStopped = errors.New("bus: stopped")
