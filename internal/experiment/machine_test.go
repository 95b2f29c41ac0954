package experiment

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"wordwatch/internal/catalog"
	"wordwatch/internal/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func testCatalog() *catalog.Catalog {
	pool := strPtr("lutviawroe")
	return &catalog.Catalog{
		StimuliDir:   "stimuli/",
		DefaultImage: "stimuli/default.gif",
		Instructions: []models.InstructionStep{
			{Text: "welcome"},
			{Text: "letters", Image: "stimuli/tutorial-0.gif", Tutorial: true, Characters: pool, QuestionsShow: boolPtr(false)},
			{Text: "guess", Image: "stimuli/tutorial-1.gif", Tutorial: true, Characters: pool, Delay: 2800 * time.Millisecond},
			{Text: "again", Image: "stimuli/tutorial-2.gif", Tutorial: true, Characters: pool, Delay: 1300 * time.Millisecond},
			{Question: "which?", Options: []string{"a", "b", "c"}, Answer: intPtr(1)},
			{Text: "q1", Options: []string{"x", "y"}, Answer: intPtr(0), Exam: true},
			{Text: "q1", Options: []string{"x", "y"}, Answer: intPtr(0), Feedback: true},
			{Text: "q2", Options: []string{"x", "y"}, Answer: intPtr(1), Exam: true},
			{Text: "q2", Options: []string{"x", "y"}, Answer: intPtr(1), Feedback: true},
			{ExamEnd: true, ExamStartID: 5},
			{Text: "ready"},
		},
		Stimuli: []models.Trial{
			{
				Name: "alpha", Goal: "yeast", Characters: "layestfbm",
				Timesteps: []int{4, 6},
				Images:    []string{"a0.gif", "a1.gif", "a2.gif"},
				Durations: []float64{0.1, 1.5, 0.8},
				NImages:   3,
			},
			{
				Name: "beta", Goal: "crow", Characters: "crowpe",
				Timesteps: []int{2},
				Images:    []string{"b0.gif", "b1.gif"},
				Durations: []float64{0.1, 1},
				NImages:   2,
			},
		},
		Assignments: []models.StimulusAssignment{{0, 1}, {1, 0}},
	}
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(testCatalog(), models.StimulusAssignment{0, 1}, "sess-1")
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	return m
}

func apply(t *testing.T, m *Machine, st State, ev Event) (State, []Effect) {
	t.Helper()
	next, fx, err := m.Apply(st, ev)
	if err != nil {
		t.Fatalf("Apply(%T) error = %v", ev, err)
	}
	return next, fx
}

func scheduled(t *testing.T, fx []Effect, kind TimerKind) Schedule {
	t.Helper()
	for _, e := range fx {
		if s, ok := e.(Schedule); ok && s.Timer == kind {
			return s
		}
	}
	t.Fatalf("no %s timer scheduled in %+v", kind, fx)
	return Schedule{}
}

func persisted(fx []Effect) map[string]any {
	out := make(map[string]any)
	for _, e := range fx {
		if p, ok := e.(Persist); ok {
			out[p.Key] = p.Value
		}
	}
	return out
}

func hasEffect[T Effect](fx []Effect) bool {
	for _, e := range fx {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

// startTrials skips the tutorial and enters the first trial
func startTrials(t *testing.T, m *Machine) State {
	t.Helper()
	st := m.InitialState(true, t0)
	st, _ = apply(t, m, st, Advance{At: t0})
	return st
}

// openPart advances to the next guessing part and lets its animation finish
func openPart(t *testing.T, m *Machine, st State, at time.Time) (State, []Effect) {
	t.Helper()
	st, fx := apply(t, m, st, Advance{At: at})
	s := scheduled(t, fx, TimerAnimation)
	st, _ = apply(t, m, st, TimerFired{Timer: TimerAnimation, Generation: s.Generation})
	return st, fx
}

func TestNewMachineRejectsBadAssignments(t *testing.T) {
	c := testCatalog()
	if _, err := NewMachine(c, nil, "s"); !errors.Is(err, ErrNoAssignment) {
		t.Errorf("NewMachine(nil) error = %v, want ErrNoAssignment", err)
	}
	if _, err := NewMachine(c, models.StimulusAssignment{0, 5}, "s"); !errors.Is(err, ErrBadAssignment) {
		t.Errorf("NewMachine({0,5}) error = %v, want ErrBadAssignment", err)
	}
}

func TestInitialState(t *testing.T) {
	m := newTestMachine(t)

	st := m.InitialState(false, t0)
	if st.Section != SectionInstructions || st.InstID != 0 || st.PartID != -1 {
		t.Errorf("InitialState() = %s/%d/%d, want instructions/0/-1", st.Section, st.InstID, st.PartID)
	}
	if !st.ShowContent || !st.AnimComplete {
		t.Error("InitialState() should show content")
	}

	st = m.InitialState(true, t0)
	if st.InstID != len(m.Catalog().Instructions)-1 {
		t.Errorf("InitialState(skip) InstID = %d, want last step", st.InstID)
	}
	if _, ok := st.Phase().(InstructionsPhase); !ok {
		t.Errorf("Phase() = %T, want InstructionsPhase", st.Phase())
	}
}

func TestStartEffectsPreloads(t *testing.T) {
	m := newTestMachine(t)
	fx := m.StartEffects()
	if len(fx) != 2 {
		t.Fatalf("StartEffects() returned %d effects, want 2", len(fx))
	}
	want := []string{"stimuli/a0.gif", "stimuli/a1.gif", "stimuli/a2.gif"}
	if got := fx[1].(Preload).Images; !reflect.DeepEqual(got, want) {
		t.Errorf("first trial preload = %v, want %v", got, want)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)
	st, _ = openPart(t, m, st, t0)
	st, _ = apply(t, m, st, SubmitGuess{Text: "yeast"})
	st, _ = apply(t, m, st, SubmitGuess{Text: "east"})

	before := st.clone()
	next, _ := apply(t, m, st, RemoveGuess{Index: 0})
	if !reflect.DeepEqual(st, before) {
		t.Errorf("Apply() mutated its input: %v", st.Guesses)
	}
	if !reflect.DeepEqual(next.Guesses, []string{"east"}) {
		t.Errorf("Guesses after remove = %v, want [east]", next.Guesses)
	}
}

func TestTutorialGuessing(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	st, _ = apply(t, m, st, Advance{At: t0})

	st, _ = apply(t, m, st, EditGuess{Text: "lit"})
	if !st.ValidGuess {
		t.Error("EditGuess(lit) should be valid against the tutorial pool")
	}
	st, _ = apply(t, m, st, SubmitGuess{Text: "liter"})
	st, _ = apply(t, m, st, SubmitGuess{Text: "zebra"})
	if !reflect.DeepEqual(st.Guesses, []string{"liter"}) {
		t.Fatalf("Guesses = %v, want [liter]", st.Guesses)
	}
	if st.CurGuess != "zebra" || st.ValidGuess {
		t.Errorf("rejected guess should stay in the buffer: %q valid=%v", st.CurGuess, st.ValidGuess)
	}
	if !st.ValidResponse {
		t.Error("ValidResponse = false with one guess")
	}

	// Tutorial steps keep the guesses
	st, _ = apply(t, m, st, Advance{At: t0})
	st, _ = apply(t, m, st, Advance{At: t0})
	if len(st.Guesses) != 1 || st.CurGuess != "" {
		t.Errorf("after tutorial advance Guesses = %v CurGuess = %q", st.Guesses, st.CurGuess)
	}

	// Leaving a non tutorial step clears them
	st, _ = apply(t, m, st, Advance{At: t0})
	if st.InstID != 4 || len(st.Guesses) != 1 {
		t.Fatalf("at step %d Guesses = %v", st.InstID, st.Guesses)
	}
	st, _ = apply(t, m, st, Advance{At: t0})
	if len(st.Guesses) != 0 || st.ValidResponse {
		t.Errorf("Guesses = %v after leaving a non tutorial step", st.Guesses)
	}
}

func TestRevealTimers(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	st.InstID = 1

	st, fx := apply(t, m, st, Advance{At: t0})
	first := scheduled(t, fx, TimerReveal)
	if first.After != 2800*time.Millisecond {
		t.Errorf("reveal delay = %v, want 2.8s", first.After)
	}
	if st.ShowContent || st.AnimComplete {
		t.Error("delayed step should hide its content")
	}
	hidden, _ := apply(t, m, st, SubmitGuess{Text: "liter"})
	if len(hidden.Guesses) != 0 || !m.QuestionsDisabled(st) {
		t.Errorf("guess accepted while the step is hidden: %v", hidden.Guesses)
	}

	st, fx = apply(t, m, st, Advance{At: t0})
	second := scheduled(t, fx, TimerReveal)

	st, _ = apply(t, m, st, TimerFired{Timer: TimerReveal, Generation: first.Generation})
	if st.ShowContent {
		t.Error("stale reveal timer showed the content")
	}
	st, _ = apply(t, m, st, TimerFired{Timer: TimerReveal, Generation: second.Generation})
	if !st.ShowContent || !st.AnimComplete {
		t.Error("current reveal timer did not show the content")
	}

	st, fx = apply(t, m, st, Advance{At: t0})
	if hasEffect[Schedule](fx) || !st.ShowContent {
		t.Error("step without delay should show immediately")
	}
}

func TestAnswerComprehension(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	st.InstID = 4

	tests := []struct {
		answer string
		want   bool
	}{
		{"b", true},
		{"a", false},
		{"", false},
	}
	for _, tt := range tests {
		next, _ := apply(t, m, st, AnswerComprehension{Answer: tt.answer})
		if next.ValidComprehension != tt.want {
			t.Errorf("AnswerComprehension(%q) valid = %v, want %v", tt.answer, next.ValidComprehension, tt.want)
		}
	}

	st.InstID = 0
	next, _ := apply(t, m, st, AnswerComprehension{Answer: "b"})
	if next.ValidComprehension {
		t.Error("a step without a question accepted an answer")
	}
}

func TestExamRetry(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	st.InstID = 5

	answer := func(st State, a string) State {
		st, _ = apply(t, m, st, AnswerExam{Answer: a})
		if !st.ValidExam {
			t.Fatalf("AnswerExam(%q) not valid", a)
		}
		st, _ = apply(t, m, st, Advance{At: t0})
		return st
	}

	st = answer(st, "y")
	if st.InstID != 6 || st.LastExamCorrect || st.LastExamResponse != "y" {
		t.Fatalf("feedback state = %d correct=%v response=%q", st.InstID, st.LastExamCorrect, st.LastExamResponse)
	}
	if st.ExamResponse != "" || st.ValidExam {
		t.Error("exam response not cleared on advance")
	}
	st, _ = apply(t, m, st, Advance{At: t0})
	st = answer(st, "y")
	if !st.LastExamCorrect || st.ExamScore != 1 {
		t.Fatalf("second answer correct=%v score=%d", st.LastExamCorrect, st.ExamScore)
	}
	st, _ = apply(t, m, st, Advance{At: t0})
	if st.InstID != 9 {
		t.Fatalf("InstID = %d, want exam end", st.InstID)
	}

	st, fx := apply(t, m, st, Advance{At: t0})
	if st.InstID != 5 {
		t.Fatalf("failed exam went to %d, want retry at 5", st.InstID)
	}
	rec, ok := persisted(fx)["sess-1/exam"].(models.ExamRecord)
	if !ok {
		t.Fatalf("exam not persisted: %+v", fx)
	}
	if !reflect.DeepEqual(rec.Results, []bool{false, true}) || rec.Score != 1 {
		t.Errorf("exam record = %+v", rec)
	}
	if len(st.ExamResults) != 0 || st.ExamScore != 0 || !st.ExamDone {
		t.Errorf("exam not reset: %v %d done=%v", st.ExamResults, st.ExamScore, st.ExamDone)
	}

	st = answer(st, "x")
	st, _ = apply(t, m, st, Advance{At: t0})
	st = answer(st, "y")
	st, _ = apply(t, m, st, Advance{At: t0})
	st, fx = apply(t, m, st, Advance{At: t0})
	if st.InstID != 10 {
		t.Errorf("passed exam went to %d, want 10", st.InstID)
	}
	if hasEffect[Persist](fx) {
		t.Error("exam persisted a second time")
	}
}

func TestTrialWalkthrough(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)

	if st.Section != SectionStimuli || st.StimID != 0 || st.PartID != 0 {
		t.Fatalf("after tutorial = %s/%d/%d", st.Section, st.StimID, st.PartID)
	}
	if st.TrueGoal != "yeast" {
		t.Errorf("TrueGoal = %q, want yeast", st.TrueGoal)
	}
	if got := m.CurrentImage(st); got != "stimuli/a0.gif" {
		t.Errorf("CurrentImage() = %q", got)
	}
	if !m.QuestionsDisabled(st) {
		t.Error("guessing open on the letter reveal frame")
	}
	early, _ := apply(t, m, st, SubmitGuess{Text: "yeast"})
	if len(early.Guesses) != 0 || early.ValidResponse {
		t.Errorf("guess accepted on the letter reveal frame: %v", early.Guesses)
	}

	st, fx := apply(t, m, st, Advance{At: t0.Add(time.Second)})
	anim := scheduled(t, fx, TimerAnimation)
	if anim.After != 1500*time.Millisecond {
		t.Errorf("animation = %v, want 1.5s", anim.After)
	}
	if !hasEffect[FocusInput](fx) {
		t.Error("no focus request when a guessing part opens")
	}
	if !m.QuestionsDisabled(st) {
		t.Error("guessing open while the frame animates")
	}
	locked, _ := apply(t, m, st, SubmitGuess{Text: "yeast"})
	if len(locked.Guesses) != 0 {
		t.Error("guess accepted during animation")
	}

	st, _ = apply(t, m, st, TimerFired{Timer: TimerAnimation, Generation: anim.Generation})
	st, _ = apply(t, m, st, SubmitGuess{Text: "yeast"})

	st, fx = apply(t, m, st, Advance{At: t0.Add(3 * time.Second)})
	if len(st.Ratings) != 1 {
		t.Fatalf("Ratings = %+v", st.Ratings)
	}
	r := st.Ratings[0]
	if r.Timestep != 4 || r.TimeSpent != 2 || r.Reward != 1 || r.NCorrect != 1 || r.NGuesses != 1 {
		t.Errorf("rating = %+v", r)
	}
	st, _ = apply(t, m, st, TimerFired{Timer: TimerAnimation, Generation: scheduled(t, fx, TimerAnimation).Generation})

	// Guesses carry over between parts of a trial
	if !reflect.DeepEqual(st.Guesses, []string{"yeast"}) {
		t.Errorf("Guesses = %v, want carried over", st.Guesses)
	}
	st, _ = apply(t, m, st, SubmitGuess{Text: "east"})

	st, fx = apply(t, m, st, Advance{At: t0.Add(5 * time.Second)})
	if st.StimID != 1 || st.PartID != -1 {
		t.Fatalf("after last part = %d/%d", st.StimID, st.PartID)
	}
	if st.TotalReward != 1.5 {
		t.Errorf("TotalReward = %v, want 1.5", st.TotalReward)
	}
	saved := persisted(fx)
	ratings, ok := saved["sess-1/alpha"].([]models.PartRating)
	if !ok || len(ratings) != 2 || ratings[1].Reward != 0.5 {
		t.Errorf("persisted ratings = %+v", saved["sess-1/alpha"])
	}
	if saved["sess-1/alpha/reward"] != 1.5 {
		t.Errorf("persisted reward = %v", saved["sess-1/alpha/reward"])
	}
	if !hasEffect[Preload](fx) {
		t.Error("next trial not preloaded")
	}
	if len(st.Guesses) != 0 {
		t.Error("guesses not cleared between trials")
	}
	between, _ := apply(t, m, st, SubmitGuess{Text: "crow"})
	if len(between.Guesses) != 0 {
		t.Errorf("guess accepted between trials: %v", between.Guesses)
	}
	if got := m.CurrentImage(st); got != "stimuli/a2.gif" {
		t.Errorf("between trials CurrentImage() = %q, want last frame", got)
	}

	st, _ = apply(t, m, st, Advance{At: t0})
	if st.PartID != 0 || st.TrueGoal != "crow" || st.StimReward != 0 {
		t.Fatalf("second trial start = %d goal=%q", st.PartID, st.TrueGoal)
	}
	st, _ = openPart(t, m, st, t0)
	st, _ = apply(t, m, st, SubmitGuess{Text: "crow"})
	st, fx = apply(t, m, st, Advance{At: t0})
	if hasEffect[Preload](fx) {
		t.Error("preload requested after the last trial")
	}
	if st.StimID != 2 || st.Section != SectionStimuli {
		t.Fatalf("after last trial = %s/%d", st.Section, st.StimID)
	}

	st, fx = apply(t, m, st, Advance{At: t0})
	if _, ok := st.Phase().(EndScreenPhase); !ok {
		t.Fatalf("Phase() = %T, want EndScreenPhase", st.Phase())
	}
	if st.TotalReward != 2.5 || st.TotalPayment != 0.25 {
		t.Errorf("totals = %v / %v", st.TotalReward, st.TotalPayment)
	}
	saved = persisted(fx)
	if saved["sess-1/total_reward"] != 2.5 || saved["sess-1/total_payment"] != 0.25 {
		t.Errorf("persisted totals = %+v", saved)
	}
	if !hasEffect[Completed](fx) {
		t.Error("no completion effect")
	}

	end, fx, err := m.Apply(st, Advance{At: t0})
	if err != nil || len(fx) != 0 || end.Section != SectionEndScreen {
		t.Errorf("advance on end screen = %s %v %v", end.Section, fx, err)
	}
}

func TestAdvanceWithoutGuesses(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)
	st, _ = openPart(t, m, st, t0)

	next, fx, err := m.Apply(st, Advance{At: t0})
	if !errors.Is(err, ErrNoGuesses) {
		t.Fatalf("Apply() error = %v, want ErrNoGuesses", err)
	}
	if fx != nil || !reflect.DeepEqual(next, st) {
		t.Error("failed advance changed the state")
	}
}

func TestEarlyGuessesNotScored(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)

	st, _ = apply(t, m, st, SubmitGuess{Text: "yeast"})
	st, _ = apply(t, m, st, EditGuess{Text: "yeast"})
	if st.CurGuess != "" {
		t.Errorf("CurGuess = %q on the letter reveal frame", st.CurGuess)
	}

	st, _ = openPart(t, m, st, t0)
	if len(st.Guesses) != 0 {
		t.Fatalf("part opened with guesses %v", st.Guesses)
	}
	if _, _, err := m.Apply(st, Advance{At: t0}); !errors.Is(err, ErrNoGuesses) {
		t.Errorf("Advance() error = %v, want ErrNoGuesses", err)
	}

	st, _ = apply(t, m, st, SubmitGuess{Text: "east"})
	st, _ = apply(t, m, st, Advance{At: t0})
	if len(st.Ratings) != 1 || st.Ratings[0].NGuesses != 1 || st.Ratings[0].Reward != 0 {
		t.Errorf("rating = %+v, want only the guess made during the part", st.Ratings)
	}
}

func TestRemoveAndClearGuesses(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)
	st, _ = openPart(t, m, st, t0)
	for _, g := range []string{"yeast", "east", "seat"} {
		st, _ = apply(t, m, st, SubmitGuess{Text: g})
	}

	st, _ = apply(t, m, st, RemoveGuess{Index: 1})
	if !reflect.DeepEqual(st.Guesses, []string{"yeast", "seat"}) {
		t.Errorf("Guesses = %v", st.Guesses)
	}
	same, _ := apply(t, m, st, RemoveGuess{Index: 7})
	if !reflect.DeepEqual(same.Guesses, st.Guesses) {
		t.Error("out of range remove changed the guesses")
	}
	st, _ = apply(t, m, st, ClearGuesses{})
	if len(st.Guesses) != 0 || st.ValidResponse {
		t.Errorf("after clear Guesses = %v valid=%v", st.Guesses, st.ValidResponse)
	}
}

func TestReplay(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)
	st, _ = openPart(t, m, st, t0)
	st, _ = apply(t, m, st, SubmitGuess{Text: "yeast"})
	st, _ = openPart(t, m, st, t0)

	st, fx := apply(t, m, st, ReplayAll{})
	first := scheduled(t, fx, TimerReplay)
	if !st.Replaying || st.ReplayID != 1 || first.After != 1500*time.Millisecond {
		t.Fatalf("replay start = %v/%d after %v", st.Replaying, st.ReplayID, first.After)
	}
	if got := m.CurrentImage(st); got != "stimuli/a1.gif" {
		t.Errorf("replay CurrentImage() = %q", got)
	}

	// Restarting invalidates the pending timer
	st, fx = apply(t, m, st, ReplayAll{})
	second := scheduled(t, fx, TimerReplay)
	stale, fx := apply(t, m, st, TimerFired{Timer: TimerReplay, Generation: first.Generation})
	if stale.ReplayID != 1 || len(fx) != 0 {
		t.Errorf("stale replay timer moved to %d", stale.ReplayID)
	}

	st, fx = apply(t, m, st, TimerFired{Timer: TimerReplay, Generation: second.Generation})
	if st.ReplayID != 2 {
		t.Fatalf("ReplayID = %d, want 2", st.ReplayID)
	}
	next := scheduled(t, fx, TimerReplay)
	st, fx = apply(t, m, st, TimerFired{Timer: TimerReplay, Generation: next.Generation})
	if st.Replaying || st.ReplayID != 0 || len(fx) != 0 {
		t.Errorf("replay did not finish: %v/%d", st.Replaying, st.ReplayID)
	}
	if got := m.CurrentImage(st); got != "stimuli/a2.gif" {
		t.Errorf("after replay CurrentImage() = %q", got)
	}
}

func TestReplayOutsideTrial(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	next, fx := apply(t, m, st, ReplayAll{})
	if next.Replaying || fx != nil {
		t.Error("replay started during instructions")
	}
}

func TestAdvanceCancelsReplay(t *testing.T) {
	m := newTestMachine(t)
	st := startTrials(t, m)
	st, _ = openPart(t, m, st, t0)
	st, fx := apply(t, m, st, ReplayAll{})
	pending := scheduled(t, fx, TimerReplay)
	st, _ = apply(t, m, st, SubmitGuess{Text: "yeast"})

	st, _ = apply(t, m, st, Advance{At: t0})
	if st.Replaying {
		t.Error("advance left the replay running")
	}
	st, fx = apply(t, m, st, TimerFired{Timer: TimerReplay, Generation: pending.Generation})
	if st.Replaying || len(fx) != 0 {
		t.Error("replay timer fired after advance")
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	m := newTestMachine(t)
	st := m.InitialState(false, t0)
	if _, _, err := m.Apply(st, nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Apply(nil) error = %v, want ErrUnknownEvent", err)
	}
}

func TestDefaultCatalogRun(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	m, err := NewMachine(c, c.Assignments[0], "run")
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	st := startTrials(t, m)
	for st.Section == SectionStimuli {
		trial, ok := m.CurrentTrial(st)
		if ok && st.PartID > 0 {
			st, _ = apply(t, m, st, SubmitGuess{Text: trial.Goal})
		}
		var fx []Effect
		st, fx = apply(t, m, st, Advance{At: t0})
		for _, e := range fx {
			if s, ok := e.(Schedule); ok {
				st, _ = apply(t, m, st, TimerFired{Timer: s.Timer, Generation: s.Generation})
			}
		}
	}
	if st.Section != SectionEndScreen {
		t.Fatalf("Section = %s, want endscreen", st.Section)
	}
	want := 0
	for _, idx := range c.Assignments[0] {
		want += c.Stimuli[idx].NParts()
	}
	if st.TotalReward != float64(want) {
		t.Errorf("TotalReward = %v, want %d", st.TotalReward, want)
	}
}

func TestCanAdvance(t *testing.T) {
	m := newTestMachine(t)
	base := m.InitialState(false, t0)

	tests := []struct {
		name  string
		state func() State
		want  bool
	}{
		{"plain step", func() State { return base }, true},
		{"hidden content", func() State { s := base; s.ShowContent = false; return s }, false},
		{"tutorial without guesses", func() State { s := base; s.InstID = 2; return s }, false},
		{"tutorial with guesses", func() State { s := base; s.InstID = 2; s.ValidResponse = true; return s }, true},
		{"tutorial with hidden questions", func() State { s := base; s.InstID = 1; return s }, true},
		{"comprehension unanswered", func() State { s := base; s.InstID = 4; return s }, false},
		{"comprehension answered", func() State { s := base; s.InstID = 4; s.ValidComprehension = true; return s }, true},
		{"exam unanswered", func() State { s := base; s.InstID = 5; return s }, false},
		{"exam answered", func() State { s := base; s.InstID = 5; s.ValidExam = true; return s }, true},
		{"feedback", func() State { s := base; s.InstID = 6; return s }, true},
		{"trial start", func() State { s := base; s.Section = SectionStimuli; return s }, true},
		{"part animating", func() State {
			s := base
			s.Section, s.PartID, s.AnimComplete, s.ValidResponse = SectionStimuli, 1, false, true
			return s
		}, false},
		{"part answered", func() State {
			s := base
			s.Section, s.PartID, s.ValidResponse = SectionStimuli, 1, true
			return s
		}, true},
		{"end screen", func() State { s := base; s.Section = SectionEndScreen; return s }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.CanAdvance(tt.state()); got != tt.want {
				t.Errorf("CanAdvance() = %v, want %v", got, tt.want)
			}
		})
	}
}
