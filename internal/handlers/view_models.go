package handlers

import (
	"wordwatch/internal/experiment"
	"wordwatch/internal/service"
)

// SessionView is the JSON document the front-end renders
type SessionView struct {
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token,omitempty"`

	Section string `json:"section"`
	InstID  int    `json:"inst_id"`
	StimID  int    `json:"stim_id"`
	PartID  int    `json:"part_id"`
	NTrials int    `json:"n_trials"`

	Instruction *InstructionView `json:"instruction,omitempty"`
	Trial       *TrialView       `json:"trial,omitempty"`
	Image       string           `json:"image"`

	ShowContent       bool `json:"show_content"`
	AnimComplete      bool `json:"anim_complete"`
	QuestionsDisabled bool `json:"questions_disabled"`
	Replaying         bool `json:"replaying"`
	CanAdvance        bool `json:"can_advance"`

	CurGuess      string   `json:"cur_guess"`
	ValidGuess    bool     `json:"valid_guess"`
	Guesses       []string `json:"guesses"`
	ValidResponse bool     `json:"valid_response"`

	ComprehensionResponse string `json:"comprehension_response,omitempty"`
	ValidComprehension    bool   `json:"valid_comprehension"`
	ExamResponse          string `json:"exam_response,omitempty"`
	ValidExam             bool   `json:"valid_exam"`

	StimReward   float64 `json:"stim_reward"`
	TotalReward  float64 `json:"total_reward"`
	TotalPayment float64 `json:"total_payment"`

	FocusAfterMS int64 `json:"focus_after_ms,omitempty"`
}

// InstructionView is an instruction step without its answer key. The
// correct option is only revealed on feedback steps.
type InstructionView struct {
	Text          string   `json:"text,omitempty"`
	Image         string   `json:"image,omitempty"`
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	Tutorial      bool     `json:"tutorial,omitempty"`
	Characters    string   `json:"characters,omitempty"`
	QuestionsShow bool     `json:"questions_show"`
	Exam          bool     `json:"exam,omitempty"`
	Feedback      bool     `json:"feedback,omitempty"`
	CorrectOption string   `json:"correct_option,omitempty"`
	LastCorrect   *bool    `json:"last_correct,omitempty"`
	LastResponse  string   `json:"last_response,omitempty"`
}

// TrialView describes the trial on screen. Goal is only set once the trial
// is over.
type TrialView struct {
	Name       string `json:"name"`
	Characters string `json:"characters"`
	NParts     int    `json:"n_parts"`
	Goal       string `json:"goal,omitempty"`
}

func newSessionView(snap service.Snapshot, csrfToken string) SessionView {
	m, st := snap.Machine, snap.State

	view := SessionView{
		SessionID:             snap.ID,
		CSRFToken:             csrfToken,
		Section:               string(st.Section),
		InstID:                st.InstID,
		StimID:                st.StimID,
		PartID:                st.PartID,
		NTrials:               m.NTrials(),
		ShowContent:           st.ShowContent,
		AnimComplete:          st.AnimComplete,
		QuestionsDisabled:     m.QuestionsDisabled(st),
		Replaying:             st.Replaying,
		CanAdvance:            m.CanAdvance(st),
		CurGuess:              st.CurGuess,
		ValidGuess:            st.ValidGuess,
		Guesses:               append([]string{}, st.Guesses...),
		ValidResponse:         st.ValidResponse,
		ComprehensionResponse: st.ComprehensionResponse,
		ValidComprehension:    st.ValidComprehension,
		ExamResponse:          st.ExamResponse,
		ValidExam:             st.ValidExam,
		StimReward:            st.StimReward,
		TotalReward:           st.TotalReward,
		TotalPayment:          st.TotalPayment,
		FocusAfterMS:          snap.FocusAfter.Milliseconds(),
	}

	switch st.Section {
	case experiment.SectionInstructions:
		view.Instruction = newInstructionView(m, st)
		if view.Instruction != nil {
			view.Image = view.Instruction.Image
		}
	case experiment.SectionStimuli:
		view.Image = m.CurrentImage(st)
		if t, ok := m.CurrentTrial(st); ok {
			view.Trial = &TrialView{
				Name:       t.Name,
				Characters: t.Characters,
				NParts:     t.NParts(),
			}
		}
		if st.PartID < 0 && st.StimID > 0 {
			if view.Trial == nil {
				view.Trial = &TrialView{}
			}
			view.Trial.Goal = st.TrueGoal
		}
	}
	return view
}

func newInstructionView(m *experiment.Machine, st experiment.State) *InstructionView {
	step, ok := m.CurrentStep(st)
	if !ok {
		return nil
	}
	v := &InstructionView{
		Text:          step.Text,
		Image:         step.Image,
		Question:      step.Question,
		Options:       step.Options,
		Tutorial:      step.Tutorial,
		QuestionsShow: step.Tutorial && !step.HidesQuestions(),
		Exam:          step.Exam,
		Feedback:      step.Feedback,
	}
	if step.Characters != nil {
		v.Characters = *step.Characters
	}
	if step.Feedback {
		v.CorrectOption, _ = step.CorrectOption()
		correct := st.LastExamCorrect
		v.LastCorrect = &correct
		v.LastResponse = st.LastExamResponse
	}
	return v
}
