package experiment

import "time"

// Event is an input to the session state machine
type Event interface {
	event()
}

// Advance moves to the next step, part or trial
type Advance struct {
	At time.Time
}

// EditGuess updates the candidate being typed
type EditGuess struct {
	Text string
}

// SubmitGuess adds a guess to the current response if it is valid
type SubmitGuess struct {
	Text string
}

// RemoveGuess drops the guess at Index
type RemoveGuess struct {
	Index int
}

// ClearGuesses empties the current response
type ClearGuesses struct{}

// AnswerComprehension records the answer to a tutorial question
type AnswerComprehension struct {
	Answer string
}

// AnswerExam records the answer to a graded exam question
type AnswerExam struct {
	Answer string
}

// ReplayAll steps through the current trial's frames again
type ReplayAll struct{}

// TimerFired is delivered when a scheduled timer elapses
type TimerFired struct {
	Timer      TimerKind
	Generation uint64
}

func (Advance) event()             {}
func (EditGuess) event()           {}
func (SubmitGuess) event()         {}
func (RemoveGuess) event()         {}
func (ClearGuesses) event()        {}
func (AnswerComprehension) event() {}
func (AnswerExam) event()          {}
func (ReplayAll) event()           {}
func (TimerFired) event()          {}

// TimerKind distinguishes the delayed callbacks a session schedules
type TimerKind int

const (
	// TimerReveal shows a delayed instruction step's content
	TimerReveal TimerKind = iota + 1
	// TimerAnimation opens guessing once a trial frame finished animating
	TimerAnimation
	// TimerReplay shows the next frame of a replay
	TimerReplay
)

func (k TimerKind) String() string {
	switch k {
	case TimerReveal:
		return "reveal"
	case TimerAnimation:
		return "animation"
	case TimerReplay:
		return "replay"
	default:
		return "unknown"
	}
}
