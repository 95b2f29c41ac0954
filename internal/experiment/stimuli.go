package experiment

import (
	"time"

	"wordwatch/internal/models"
)

func (m *Machine) advanceStimuli(st *State, at time.Time) ([]Effect, error) {
	var fx []Effect

	switch {
	case st.StimID == len(m.assignment):
		st.Section = SectionEndScreen
		st.TotalPayment = Payment(st.TotalReward)
		st.TotalReward = RoundTo(st.TotalReward, 1)
		fx = append(fx,
			m.persist("total_reward", st.TotalReward),
			m.persist("total_payment", st.TotalPayment),
			Completed{TotalReward: st.TotalReward, TotalPayment: st.TotalPayment},
		)

	case st.PartID < 0:
		st.PartID = 0
		st.Ratings = nil
		st.StimReward = 0
		st.TrueGoal = m.trial(st.StimID).Goal
		st.StartTime = at
		st.AnimComplete = true

	default:
		trial := m.trial(st.StimID)
		if st.PartID >= trial.NImages {
			break
		}
		if st.PartID > 0 {
			rating, err := m.rate(*st, trial, at)
			if err != nil {
				return nil, err
			}
			st.Ratings = append(st.Ratings, rating)
			st.StimReward += rating.Reward
		}
		st.PartID++
		st.StartTime = at

		if st.PartID == trial.NParts()+1 {
			st.TotalReward += st.StimReward
			fx = append(fx,
				m.persist(trial.Name, append([]models.PartRating{}, st.Ratings...)),
				m.persist(trial.Name+"/reward", st.StimReward),
			)
			st.PartID = -1
			st.StimID++
			st.AnimComplete = true
			if next, ok := m.CurrentTrial(*st); ok {
				fx = append(fx, Preload{Images: m.catalog.TrialImages(next)})
			}
		} else {
			st.AnimComplete = false
			fx = append(fx, Schedule{
				Timer:      TimerAnimation,
				After:      trial.DurationAt(st.PartID),
				Generation: st.Epoch,
			})
		}
	}

	st.Replaying = false
	st.ReplayID = 0
	st.CurGuess = ""
	st.ValidGuess = false
	if st.PartID < 0 {
		st.Guesses = nil
		st.ValidResponse = false
	}
	if st.Section == SectionStimuli && st.PartID > 0 {
		fx = append(fx, FocusInput{After: focusDelay})
	}
	return fx, nil
}

// rate scores the part that is ending
func (m *Machine) rate(st State, trial models.Trial, at time.Time) (models.PartRating, error) {
	res, err := Score(st.Guesses, st.TrueGoal)
	if err != nil {
		return models.PartRating{}, err
	}
	return models.PartRating{
		Timestep:  trial.Timesteps[st.PartID-1],
		TimeSpent: at.Sub(st.StartTime).Seconds(),
		Guesses:   append([]string{}, st.Guesses...),
		NCorrect:  res.NCorrect,
		NGuesses:  res.NGuesses,
		Reward:    res.Reward,
	}, nil
}

func (m *Machine) replayAll(st *State) []Effect {
	if st.Section != SectionStimuli {
		return nil
	}
	trial, ok := m.CurrentTrial(*st)
	if !ok || trial.NImages <= 1 {
		return nil
	}
	st.ReplayEpoch++
	st.ReplayID = 1
	st.Replaying = true
	return []Effect{Schedule{Timer: TimerReplay, After: trial.DurationAt(1), Generation: st.ReplayEpoch}}
}

// stepReplay shows the next frame of a replay, ending it once the current
// part is reached
func (m *Machine) stepReplay(st *State) []Effect {
	trial, ok := m.CurrentTrial(*st)
	if ok && st.ReplayID < st.PartID && st.ReplayID+1 < len(trial.Images) {
		st.ReplayID++
		return []Effect{Schedule{Timer: TimerReplay, After: trial.DurationAt(st.ReplayID), Generation: st.ReplayEpoch}}
	}
	st.Replaying = false
	st.ReplayID = 0
	return nil
}
