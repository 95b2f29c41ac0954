package experiment

import (
	"errors"
	"fmt"
	"time"

	"wordwatch/internal/catalog"
	"wordwatch/internal/models"
)

// focusDelay lets the client render the new frame before focusing the input
const focusDelay = 50 * time.Millisecond

var (
	// ErrUnknownEvent is returned by Apply for event types it does not handle
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNoAssignment is returned for an empty trial order
	ErrNoAssignment = errors.New("assignment has no trials")
	// ErrBadAssignment is returned when a trial index is outside the catalog
	ErrBadAssignment = errors.New("assignment references a missing stimulus")
)

// Machine holds the immutable configuration of one session and computes its
// transitions
type Machine struct {
	catalog    *catalog.Catalog
	assignment models.StimulusAssignment
	sessionID  string
}

// NewMachine binds a catalog and an assignment to a session id
func NewMachine(c *catalog.Catalog, assignment models.StimulusAssignment, sessionID string) (*Machine, error) {
	if len(assignment) == 0 {
		return nil, ErrNoAssignment
	}
	for _, idx := range assignment {
		if idx < 0 || idx >= len(c.Stimuli) {
			return nil, fmt.Errorf("%w: index %d", ErrBadAssignment, idx)
		}
	}
	return &Machine{
		catalog:    c,
		assignment: append(models.StimulusAssignment(nil), assignment...),
		sessionID:  sessionID,
	}, nil
}

// SessionID is the id persisted keys are scoped to
func (m *Machine) SessionID() string { return m.sessionID }

// Catalog is the content the session runs on
func (m *Machine) Catalog() *catalog.Catalog { return m.catalog }

// Assignment is the session's trial order
func (m *Machine) Assignment() models.StimulusAssignment { return m.assignment }

// NTrials is the number of trials in the session
func (m *Machine) NTrials() int { return len(m.assignment) }

// InitialState is the state of a fresh session
func (m *Machine) InitialState(skipTutorial bool, now time.Time) State {
	st := State{
		Section:      SectionInstructions,
		PartID:       -1,
		ShowContent:  true,
		AnimComplete: true,
		StartTime:    now,
	}
	if skipTutorial {
		st.InstID = len(m.catalog.Instructions) - 1
	}
	return st
}

// StartEffects preloads the instruction images and the first trial
func (m *Machine) StartEffects() []Effect {
	var fx []Effect
	if images := m.catalog.InstructionImages(); len(images) > 0 {
		fx = append(fx, Preload{Images: images})
	}
	fx = append(fx, Preload{Images: m.catalog.TrialImages(m.trial(0))})
	return fx
}

// Apply computes the state following ev. On error the returned state is st.
func (m *Machine) Apply(st State, ev Event) (State, []Effect, error) {
	next := st.clone()
	var fx []Effect

	switch e := ev.(type) {
	case Advance:
		var err error
		if fx, err = m.advance(&next, e.At); err != nil {
			return st, nil, err
		}
	case EditGuess:
		if m.QuestionsDisabled(next) {
			return st, nil, nil
		}
		next.CurGuess = e.Text
		next.ValidGuess = ValidGuess(e.Text, m.allowedChars(next))
	case SubmitGuess:
		if m.QuestionsDisabled(next) {
			return st, nil, nil
		}
		next.CurGuess = e.Text
		next.ValidGuess = ValidGuess(e.Text, m.allowedChars(next))
		if next.ValidGuess {
			next.Guesses = append(next.Guesses, e.Text)
			next.CurGuess = ""
			next.ValidGuess = false
		}
		next.ValidResponse = len(next.Guesses) > 0
	case RemoveGuess:
		if m.QuestionsDisabled(next) || e.Index < 0 || e.Index >= len(next.Guesses) {
			return st, nil, nil
		}
		next.Guesses = append(next.Guesses[:e.Index], next.Guesses[e.Index+1:]...)
		next.ValidResponse = len(next.Guesses) > 0
	case ClearGuesses:
		if m.QuestionsDisabled(next) {
			return st, nil, nil
		}
		next.Guesses = nil
		next.ValidResponse = false
	case AnswerComprehension:
		m.answerComprehension(&next, e.Answer)
	case AnswerExam:
		next.ExamResponse = e.Answer
		next.ValidExam = e.Answer != ""
	case ReplayAll:
		fx = m.replayAll(&next)
	case TimerFired:
		fx = m.fire(&next, e)
	default:
		return st, nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return next, fx, nil
}

func (m *Machine) advance(st *State, at time.Time) ([]Effect, error) {
	switch st.Phase().(type) {
	case InstructionsPhase:
		st.Epoch++
		st.ReplayEpoch++
		return m.advanceInstructions(st, at), nil
	case TrialPhase:
		st.Epoch++
		st.ReplayEpoch++
		return m.advanceStimuli(st, at)
	default:
		return nil, nil
	}
}

func (m *Machine) fire(st *State, e TimerFired) []Effect {
	switch e.Timer {
	case TimerReveal:
		if e.Generation == st.Epoch {
			st.ShowContent = true
			st.AnimComplete = true
		}
	case TimerAnimation:
		if e.Generation == st.Epoch {
			st.AnimComplete = true
		}
	case TimerReplay:
		if e.Generation != st.ReplayEpoch || !st.Replaying {
			return nil
		}
		return m.stepReplay(st)
	}
	return nil
}

// persist scopes key to the session
func (m *Machine) persist(key string, value any) Persist {
	return Persist{Key: m.sessionID + "/" + key, Value: value}
}

func (m *Machine) trial(stimID int) models.Trial {
	return m.catalog.Stimuli[m.assignment[stimID]]
}

// CurrentTrial returns the trial at the session's stimulus counter, if any
func (m *Machine) CurrentTrial(st State) (models.Trial, bool) {
	if st.StimID < 0 || st.StimID >= len(m.assignment) {
		return models.Trial{}, false
	}
	return m.trial(st.StimID), true
}

// CurrentStep returns the instruction step the session is on
func (m *Machine) CurrentStep(st State) (models.InstructionStep, bool) {
	if st.InstID < 0 || st.InstID >= len(m.catalog.Instructions) {
		return models.InstructionStep{}, false
	}
	return m.catalog.Instructions[st.InstID], true
}

// QuestionsDisabled reports whether guessing is locked: between trials, on
// the letter reveal frame, while a trial frame animates, and while a delayed
// instruction step is still hidden
func (m *Machine) QuestionsDisabled(st State) bool {
	switch st.Section {
	case SectionStimuli:
		return st.PartID <= 0 || !st.AnimComplete
	case SectionInstructions:
		return !st.AnimComplete
	default:
		return false
	}
}

// allowedChars picks the letter pool guesses are checked against
func (m *Machine) allowedChars(st State) *string {
	switch st.Section {
	case SectionStimuli:
		if t, ok := m.CurrentTrial(st); ok {
			chars := t.Characters
			return &chars
		}
	case SectionInstructions:
		if step, ok := m.CurrentStep(st); ok && step.Tutorial {
			return step.Characters
		}
	}
	return nil
}

// CurrentImage is the stimulus frame to display. Between trials that is the
// last frame of the previous trial.
func (m *Machine) CurrentImage(st State) string {
	if st.PartID < 0 {
		if st.StimID > 0 && st.StimID-1 < len(m.assignment) {
			prev := m.trial(st.StimID - 1)
			return m.catalog.StimuliDir + prev.Images[prev.NImages-1]
		}
		return m.catalog.DefaultImage
	}
	t, ok := m.CurrentTrial(st)
	if !ok {
		return m.catalog.DefaultImage
	}
	idx := st.PartID
	if st.Replaying {
		idx = st.ReplayID
	}
	if idx < 0 || idx >= len(t.Images) {
		return m.catalog.DefaultImage
	}
	return m.catalog.StimuliDir + t.Images[idx]
}

// CanAdvance reports whether the participant has done what the current
// screen asks for: answered its question, made a guess, or waited for the
// content to appear
func (m *Machine) CanAdvance(st State) bool {
	switch st.Section {
	case SectionInstructions:
		step, ok := m.CurrentStep(st)
		if !ok || !st.ShowContent {
			return false
		}
		switch {
		case step.Exam:
			return st.ValidExam
		case step.Answer != nil && !step.Feedback:
			return st.ValidComprehension
		case step.Tutorial && step.Characters != nil && !step.HidesQuestions():
			return st.ValidResponse
		}
		return true
	case SectionStimuli:
		if st.PartID <= 0 {
			return true
		}
		return st.AnimComplete && st.ValidResponse
	default:
		return false
	}
}
