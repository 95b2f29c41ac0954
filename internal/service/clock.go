package service

import "time"

// Timer is a pending callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock schedules session timers
type Clock interface {
	Now() time.Time
	After(d time.Duration, f func()) Timer
}

// RealClock runs callbacks on time.AfterFunc goroutines
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) After(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
