package experiment

import "time"

// Effect is a side effect requested by a transition, executed by the driver
type Effect interface {
	effect()
}

// Persist writes Value under Key. Keys are already scoped to the session.
type Persist struct {
	Key   string
	Value any
}

// Schedule asks for a TimerFired event after the given delay
type Schedule struct {
	Timer      TimerKind
	After      time.Duration
	Generation uint64
}

// Preload warms the image cache
type Preload struct {
	Images []string
}

// FocusInput asks the client to focus the guess input after a short delay
type FocusInput struct {
	After time.Duration
}

// Completed reports the final totals when the session reaches the end screen
type Completed struct {
	TotalReward  float64
	TotalPayment float64
}

func (Persist) effect()    {}
func (Schedule) effect()   {}
func (Preload) effect()    {}
func (FocusInput) effect() {}
func (Completed) effect()  {}
