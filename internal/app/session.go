package app

import (
	"sync"
	"time"

	"sat-practice-service/internal/domain"
)

// lowTimeThreshold marks the advisory "low time" display state for timed tests.
const lowTimeThreshold = 5 * time.Minute

// Session is the in-memory state machine for one practice run: the shuffled
// question sequence, one QuestionState per index, the current pointer, and
// the timing anchors. All mutation goes through the service in response to a
// single learner's actions; the mutex exists because the transport ticker
// reads timing concurrently.
type Session struct {
	id        string
	mode      domain.Mode
	questions []domain.ShuffledQuestion
	states    []domain.QuestionState

	phase   domain.Phase
	current int
	score   int

	// Test mode only.
	budget       time.Duration
	moduleSize   int
	module       int
	moduleScores []int

	startedAt time.Time
	anchor    time.Time
	now       func() time.Time
	mu        sync.RWMutex
}

// NewSession starts an active session over the given shuffled questions.
func NewSession(id string, mode domain.Mode, questions []domain.ShuffledQuestion, budget time.Duration, moduleSize int) (*Session, error) {
	return NewSessionWithClock(id, mode, questions, budget, moduleSize, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, mode domain.Mode, questions []domain.ShuffledQuestion, budget time.Duration, moduleSize int, now func() time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	if mode == domain.ModeTest && (moduleSize <= 0 || len(questions)%moduleSize != 0) {
		return nil, domain.ErrInsufficientQuestions
	}
	states := make([]domain.QuestionState, len(questions))
	for i := range states {
		states[i].IncorrectAttempts = make(map[domain.Letter]struct{})
	}
	start := now()
	return &Session{
		id:         id,
		mode:       mode,
		questions:  questions,
		states:     states,
		phase:      domain.PhaseActive,
		budget:     budget,
		moduleSize: moduleSize,
		startedAt:  start,
		anchor:     start,
		now:        now,
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() domain.Mode { return s.mode }

func (s *Session) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) Len() int { return len(s.questions) }

// State returns a copy of the bookkeeping for one question index.
func (s *Session) State(i int) (domain.QuestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.states) {
		return domain.QuestionState{}, domain.ErrIndexOutOfRange
	}
	st := s.states[i]
	attempts := make(map[domain.Letter]struct{}, len(st.IncorrectAttempts))
	for l := range st.IncorrectAttempts {
		attempts[l] = struct{}{}
	}
	st.IncorrectAttempts = attempts
	return st, nil
}

// SelectAnswer applies a choice, identified by its display letter, to the
// current question. Finalized questions ignore further selections. A correct
// choice finalizes the question and bumps the aggregate score exactly once;
// a wrong choice is recorded and the question stays answerable.
func (s *Session) SelectAnswer(display domain.Letter) (domain.AnswerFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.AnswerFeedback{}, domain.ErrSessionFinished
	}

	q := s.questions[s.current]
	choice, ok := q.ByDisplayLetter(display)
	if !ok {
		return domain.AnswerFeedback{}, domain.ErrUnknownOption
	}

	st := &s.states[s.current]
	if st.Finalized {
		return domain.AnswerFeedback{
			Correct:        choice.Letter == q.CorrectAnswer,
			Finalized:      true,
			DisplayCorrect: q.DisplayCorrectLetter(),
			Score:          s.score,
		}, nil
	}

	if choice.Letter == q.CorrectAnswer {
		st.Finalized = true
		s.score++
		return domain.AnswerFeedback{
			Correct:        true,
			Finalized:      true,
			DisplayCorrect: q.DisplayCorrectLetter(),
			Score:          s.score,
		}, nil
	}

	st.IncorrectAttempts[display] = struct{}{}
	st.HadWrongAttempt = true
	return domain.AnswerFeedback{Score: s.score}, nil
}

// NavigateTo moves the current pointer, flushing the elapsed interval onto
// the question being left and re-anchoring the clock. Navigating to the
// current index flushes the genuinely elapsed time and re-anchors, so the
// wall-clock sum property holds without double counting. In test mode the
// target must lie inside the active module.
func (s *Session) NavigateTo(target int) (domain.QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.QuestionView{}, domain.ErrSessionFinished
	}
	if target < 0 || target >= len(s.questions) {
		return domain.QuestionView{}, domain.ErrIndexOutOfRange
	}
	if s.mode == domain.ModeTest {
		lo, hi := s.moduleBounds(s.module)
		if target < lo || target >= hi {
			return domain.QuestionView{}, domain.ErrModuleLocked
		}
	}
	s.flushLocked()
	s.current = target
	return s.viewLocked(target), nil
}

// View returns the current question as the client should see it.
func (s *Session) View() domain.QuestionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(s.current)
}

// FinishModule freezes the active test module: its raw score is computed and
// stored, and the pointer moves to the next module's first question. On the
// last module the whole session transitions to results.
func (s *Session) FinishModule() (domain.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != domain.ModeTest {
		return s.phase, domain.ErrModuleLocked
	}
	if s.phase != domain.PhaseActive {
		return s.phase, domain.ErrSessionFinished
	}
	s.flushLocked()
	s.moduleScores = append(s.moduleScores, s.moduleScoreLocked(s.module))

	if (s.module+1)*s.moduleSize >= len(s.questions) {
		s.phase = domain.PhaseResults
		return s.phase, nil
	}
	s.module++
	s.current = s.module * s.moduleSize
	return s.phase, nil
}

// Finish flushes time for the current question and transitions to results.
// No QuestionState mutation is permitted afterwards.
func (s *Session) Finish() (domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == domain.PhaseResults {
		return s.resultsLocked(), nil
	}
	s.flushLocked()
	s.sealModulesLocked()
	s.phase = domain.PhaseResults
	return s.resultsLocked(), nil
}

// Results is only available once the session reached the results phase.
func (s *Session) Results() (domain.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != domain.PhaseResults {
		return domain.Results{}, domain.ErrNotFinished
	}
	return s.resultsLocked(), nil
}

// ReviewStatuses derives the tri-state standing of every question. One rule
// for both modes: a wrong attempt marks the question incorrect whether or not
// it was later finalized; finalized without wrong attempts is correct;
// everything else is unanswered.
func (s *Session) ReviewStatuses() []domain.ReviewStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReviewStatus, len(s.states))
	for i := range s.states {
		out[i] = reviewStatus(s.states[i])
	}
	return out
}

// TimerTick derives display timing from the wall clock. For timed tests an
// exhausted budget forces the transition to results; the returned state has
// Expired set exactly once, on the tick that performed the transition.
func (s *Session) TimerTick() domain.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ts := domain.TimerState{
		ElapsedSeconds: int(now.Sub(s.anchor) / time.Second),
	}
	if s.mode != domain.ModeTest {
		return ts
	}

	remaining := s.budget - now.Sub(s.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	ts.RemainingSeconds = int(remaining / time.Second)
	ts.LowTime = remaining < lowTimeThreshold
	if remaining == 0 && s.phase == domain.PhaseActive {
		s.flushLocked()
		s.sealModulesLocked()
		s.phase = domain.PhaseResults
		ts.Expired = true
	}
	return ts
}

// Annotate records a styled span over the passage or prompt of the current
// question. Spans are clamped to the target text; a span that is empty after
// clamping is silently dropped.
func (s *Session) Annotate(target domain.AnnotationTarget, ann domain.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.ErrSessionFinished
	}

	q := s.questions[s.current]
	var text string
	switch target {
	case domain.TargetPassage:
		text = q.Passage
	case domain.TargetPrompt:
		text = q.Prompt
	default:
		return nil
	}

	limit := len([]rune(text))
	if ann.Start < 0 {
		ann.Start = 0
	}
	if ann.End > limit {
		ann.End = limit
	}
	if ann.Start >= ann.End {
		return nil
	}

	st := &s.states[s.current]
	if target == domain.TargetPassage {
		st.PassageNotes = append(st.PassageNotes, ann)
	} else {
		st.PromptNotes = append(st.PromptNotes, ann)
	}
	return nil
}

// ExplanationRequest builds the webhook payload for the current question
// using the displayed answer layout, not the stored one.
func (s *Session) ExplanationRequest() domain.ExplanationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.questions[s.current]
	req := domain.ExplanationRequest{
		Passage:       q.Passage,
		Question:      q.Prompt,
		CorrectAnswer: string(q.DisplayCorrectLetter()),
	}
	texts := []*string{&req.AnswerA, &req.AnswerB, &req.AnswerC, &req.AnswerD}
	for i, d := range q.Display {
		if i < len(texts) {
			*texts[i] = d.Text
		}
	}
	return req
}

// Report builds the content-issue payload for the current question in the
// stored letter order.
func (s *Session) Report(reportType, message string) domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.questions[s.current]
	return domain.Report{
		Type:     reportType,
		Message:  message,
		Question: q.Prompt,
		Passage:  q.Passage,
		Answers: domain.ReportAnswers{
			A: q.AnswerText(domain.LetterA),
			B: q.AnswerText(domain.LetterB),
			C: q.AnswerText(domain.LetterC),
			D: q.AnswerText(domain.LetterD),
		},
		CorrectAnswer: string(q.CorrectAnswer),
		QuestionID:    q.ID,
	}
}

// flushLocked attributes the interval since the anchor to the current
// question and re-anchors. Time is flushed at navigation points, never
// polled continuously.
func (s *Session) flushLocked() {
	now := s.now()
	s.states[s.current].TimeSpentMs += now.Sub(s.anchor).Milliseconds()
	s.anchor = now
}

func (s *Session) moduleBounds(m int) (int, int) {
	lo := m * s.moduleSize
	hi := lo + s.moduleSize
	if hi > len(s.questions) {
		hi = len(s.questions)
	}
	return lo, hi
}

func (s *Session) moduleScoreLocked(m int) int {
	lo, hi := s.moduleBounds(m)
	score := 0
	for i := lo; i < hi; i++ {
		if s.states[i].Finalized {
			score++
		}
	}
	return score
}

// sealModulesLocked records raw scores for any test module that was never
// explicitly finished, so a forced expiry still yields a full summary.
func (s *Session) sealModulesLocked() {
	if s.mode != domain.ModeTest {
		return
	}
	total := len(s.questions) / s.moduleSize
	for m := len(s.moduleScores); m < total; m++ {
		s.moduleScores = append(s.moduleScores, s.moduleScoreLocked(m))
	}
}

func (s *Session) resultsLocked() domain.Results {
	res := domain.Results{
		Mode:      s.mode,
		Score:     s.score,
		Total:     len(s.questions),
		Questions: make([]domain.QuestionResult, len(s.questions)),
	}
	var totalMs int64
	for i := range s.states {
		totalMs += s.states[i].TimeSpentMs
		res.Questions[i] = domain.QuestionResult{
			Index:       i,
			QuestionID:  s.questions[i].ID,
			Status:      reviewStatus(s.states[i]),
			TimeSpentMs: s.states[i].TimeSpentMs,
		}
	}
	if len(s.questions) > 0 {
		res.AverageTimeMs = totalMs / int64(len(s.questions))
	}
	if s.mode == domain.ModeTest {
		res.ModuleScores = append([]int(nil), s.moduleScores...)
		res.ScaledScore = scaledScore(s.score, len(s.questions))
	}
	return res
}

func (s *Session) viewLocked(i int) domain.QuestionView {
	q := s.questions[i]
	st := s.states[i]

	answers := make([]domain.DisplayChoice, 0, len(q.Display))
	for _, d := range q.Display {
		answers = append(answers, domain.DisplayChoice{DisplayLetter: d.DisplayLetter, Text: d.Text})
	}
	tried := make([]domain.Letter, 0, len(st.IncorrectAttempts))
	for _, l := range domain.Letters {
		if _, ok := st.IncorrectAttempts[l]; ok {
			tried = append(tried, l)
		}
	}

	view := domain.QuestionView{
		Index:           i,
		Total:           len(s.questions),
		Passage:         q.Passage,
		Prompt:          q.Prompt,
		Answers:         answers,
		Finalized:       st.Finalized,
		FeedbackVisible: st.Finalized,
		TriedWrong:      tried,
		PassageNotes:    st.PassageNotes,
		PromptNotes:     st.PromptNotes,
	}
	if st.Finalized {
		view.DisplayCorrect = q.DisplayCorrectLetter()
	}
	if s.mode == domain.ModeTest {
		view.Module = s.module + 1
	}
	return view
}

func reviewStatus(st domain.QuestionState) domain.ReviewStatus {
	switch {
	case st.HadWrongAttempt:
		return domain.StatusIncorrect
	case st.Finalized:
		return domain.StatusCorrect
	default:
		return domain.StatusUnanswered
	}
}
