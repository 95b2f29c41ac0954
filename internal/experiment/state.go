package experiment

import (
	"time"

	"wordwatch/internal/models"
)

// Section is the coarse stage of a session
type Section string

const (
	SectionInstructions Section = "instructions"
	SectionStimuli      Section = "stimuli"
	SectionEndScreen    Section = "endscreen"
)

// State is everything a session knows about its progress. It is treated as
// a value: Apply never mutates the state it is given.
type State struct {
	Section Section
	InstID  int
	StimID  int
	PartID  int // -1 between trials, 0 on the letter reveal frame

	// Epoch advances on every Advance; reveal and animation timers carry
	// the epoch they were scheduled in. ReplayEpoch does the same for
	// replay timers and also advances when a replay starts.
	Epoch       uint64
	ReplayEpoch uint64

	ShowContent  bool
	AnimComplete bool

	ComprehensionResponse string
	ValidComprehension    bool

	ExamResponse     string
	ValidExam        bool
	ExamResults      []bool
	ExamScore        int
	ExamDone         bool
	LastExamCorrect  bool
	LastExamResponse string

	CurGuess      string
	ValidGuess    bool
	Guesses       []string
	ValidResponse bool

	Ratings      []models.PartRating
	TrueGoal     string
	StimReward   float64
	TotalReward  float64
	TotalPayment float64
	StartTime    time.Time

	Replaying bool
	ReplayID  int
}

func (s State) clone() State {
	s.ExamResults = append([]bool(nil), s.ExamResults...)
	s.Guesses = append([]string(nil), s.Guesses...)
	s.Ratings = append([]models.PartRating(nil), s.Ratings...)
	return s
}

// Phase is the position of a session as a closed set of variants
type Phase interface {
	phase()
}

// InstructionsPhase is an instruction, tutorial or exam step
type InstructionsPhase struct {
	InstID int
}

// TrialPhase is a part of a stimulus trial
type TrialPhase struct {
	StimID int
	PartID int
}

// EndScreenPhase is the terminal phase
type EndScreenPhase struct{}

func (InstructionsPhase) phase() {}
func (TrialPhase) phase()        {}
func (EndScreenPhase) phase()    {}

// Phase returns the tagged position of the session
func (s State) Phase() Phase {
	switch s.Section {
	case SectionInstructions:
		return InstructionsPhase{InstID: s.InstID}
	case SectionStimuli:
		return TrialPhase{StimID: s.StimID, PartID: s.PartID}
	default:
		return EndScreenPhase{}
	}
}
