package clock

import "time"

// Clock provides time for vote records and locally cached creations.
// Using an interface enables deterministic tests via a controllable implementation.
type Clock interface {
	Now() time.Time
}
