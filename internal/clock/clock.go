package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source used by components that resolve "today".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock returns the wall clock in UTC.
func NewSystemClock() Clock { return systemClock{} }

// Today truncates the clock's current instant to a UTC calendar date.
func Today(c Clock) time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
