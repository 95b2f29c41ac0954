package models

import (
	"encoding/json"
	"time"
)

// PartRating records the guesses made during one part of a trial
type PartRating struct {
	Timestep  int      `json:"timestep"`
	TimeSpent float64  `json:"time_spent"` // seconds
	Guesses   []string `json:"guesses"`
	NCorrect  int      `json:"n_correct"`
	NGuesses  int      `json:"n_guesses"`
	Reward    float64  `json:"reward"`
}

// ExamRecord is the persisted outcome of the first comprehension exam pass
type ExamRecord struct {
	Results []bool `json:"results"`
	Score   int    `json:"score"`
}

// ResultRecord is a single persisted key/value row
type ResultRecord struct {
	Key       string          `json:"key"`
	SessionID string          `json:"session_id"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Counter is a named shared counter, used for round-robin assignment
type Counter struct {
	Name      string    `json:"name"`
	Value     int       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
