package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock", fx.Provide(NewSystemClock))

// Clock is the time source for expiration and verification timestamps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func NewSystemClock() Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
