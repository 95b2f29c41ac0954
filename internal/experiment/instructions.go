package experiment

import (
	"time"

	"wordwatch/internal/models"
)

func (m *Machine) advanceInstructions(st *State, at time.Time) []Effect {
	steps := m.catalog.Instructions
	step := steps[st.InstID]
	var fx []Effect

	switch {
	case st.InstID == len(steps)-1:
		st.Section = SectionStimuli
		st.StimID = 0
		st.PartID = 0
		st.StimReward = 0
		st.Ratings = nil
		st.TrueGoal = m.trial(0).Goal
		st.Guesses = nil
		st.ValidResponse = false
		st.StartTime = at
		st.ShowContent = true
		st.AnimComplete = true

	case step.ExamEnd:
		// Only the first pass through the exam is recorded
		if !st.ExamDone {
			fx = append(fx, m.persist("exam", models.ExamRecord{
				Results: append([]bool{}, st.ExamResults...),
				Score:   st.ExamScore,
			}))
			st.ExamDone = true
		}
		if st.ExamScore < len(st.ExamResults) {
			st.InstID = step.ExamStartID
		} else {
			st.InstID++
		}
		st.ExamResults = nil
		st.ExamScore = 0

	default:
		if step.Exam {
			answer, _ := step.CorrectOption()
			correct := answer == st.ExamResponse
			st.ExamResults = append(st.ExamResults, correct)
			st.ExamScore = countTrue(st.ExamResults)
			st.LastExamCorrect = correct
			st.LastExamResponse = st.ExamResponse
		}
		if !step.Tutorial {
			st.Guesses = nil
			st.ValidResponse = false
		}
		st.InstID++
		if delay := steps[st.InstID].Delay; delay > 0 {
			st.ShowContent = false
			st.AnimComplete = false
			fx = append(fx, Schedule{Timer: TimerReveal, After: delay, Generation: st.Epoch})
		} else {
			st.ShowContent = true
			st.AnimComplete = true
		}
	}

	st.CurGuess = ""
	st.ValidGuess = false
	st.ComprehensionResponse = ""
	st.ValidComprehension = false
	st.ExamResponse = ""
	st.ValidExam = false
	return fx
}

func (m *Machine) answerComprehension(st *State, answer string) {
	st.ComprehensionResponse = answer
	st.ValidComprehension = false
	if st.Section != SectionInstructions {
		return
	}
	if step, ok := m.CurrentStep(*st); ok {
		expected, ok := step.CorrectOption()
		st.ValidComprehension = ok && answer == expected
	}
}

func countTrue(results []bool) int {
	n := 0
	for _, r := range results {
		if r {
			n++
		}
	}
	return n
}
