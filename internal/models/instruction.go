package models

import "time"

// InstructionStep is one screen of the tutorial script
type InstructionStep struct {
	Text          string        `yaml:"text" json:"text,omitempty"`
	Image         string        `yaml:"image" json:"image,omitempty"`
	Question      string        `yaml:"question" json:"question,omitempty"`
	Options       []string      `yaml:"options" json:"options,omitempty"`
	Answer        *int          `yaml:"answer" json:"-"`
	Tutorial      bool          `yaml:"tutorial" json:"tutorial,omitempty"`
	Characters    *string       `yaml:"characters" json:"characters,omitempty"`
	QuestionsShow *bool         `yaml:"questions_show" json:"-"`
	Delay         time.Duration `yaml:"delay" json:"-"`
	Exam          bool          `yaml:"exam" json:"exam,omitempty"`
	Feedback      bool          `yaml:"feedback" json:"feedback,omitempty"`
	ExamEnd       bool          `yaml:"exam_end" json:"exam_end,omitempty"`
	ExamStartID   int           `yaml:"exam_start_id" json:"-"`
}

// CorrectOption returns the text of the expected answer, if the step has one
func (s InstructionStep) CorrectOption() (string, bool) {
	if s.Answer == nil || *s.Answer < 0 || *s.Answer >= len(s.Options) {
		return "", false
	}
	return s.Options[*s.Answer], true
}

// HidesQuestions reports whether the step explicitly hides the guess controls.
// An unset questions_show is not the same as false.
func (s InstructionStep) HidesQuestions() bool {
	return s.QuestionsShow != nil && !*s.QuestionsShow
}
