package models

import "time"

// Trial is one word-guessing round: a goal word, its letter pool and the
// image sequence revealing the player's moves
type Trial struct {
	Name        string    `yaml:"name" json:"name"`
	Condition   string    `yaml:"condition" json:"condition"`
	Goal        string    `yaml:"goal" json:"-"`
	Characters  string    `yaml:"characters" json:"characters"`
	Timesteps   []int     `yaml:"timesteps" json:"timesteps"`
	Images      []string  `yaml:"images" json:"images"`
	FrameCounts []int     `yaml:"frame_counts" json:"frame_counts,omitempty"`
	Durations   []float64 `yaml:"durations" json:"durations"` // seconds per image
	NImages     int       `yaml:"n_images" json:"n_images"`
	NSteps      int       `yaml:"n_steps" json:"n_steps"`
}

// NParts is the number of guessing parts in the trial
func (t Trial) NParts() int {
	return len(t.Timesteps)
}

// DurationAt returns how long image i animates before guessing opens
func (t Trial) DurationAt(i int) time.Duration {
	if i < 0 || i >= len(t.Durations) {
		return 0
	}
	return time.Duration(t.Durations[i] * float64(time.Second))
}

// StimulusAssignment is one counterbalanced ordering of trial indices
type StimulusAssignment []int
