package practice

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrEmptyExam        = errors.New("exam has no questions")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrNotInQuestion    = errors.New("session is not on a question")
	ErrNotLastQuestion  = errors.New("finish is only available on the last question")
	ErrNotInReview      = errors.New("session is not in review")
	ErrFinalized        = errors.New("session already finalized")
	ErrNotAnswerable    = errors.New("question does not take an answer")
	ErrAnswerShape      = errors.New("answer does not match the question kind")
	ErrInvalidAnswer    = errors.New("invalid answer value")
	ErrInvalidTab       = errors.New("unknown tab")
	ErrUnknownQuestion  = errors.New("question not in session")
	ErrFinalizeInFlight = errors.New("finalize request already in flight")
)

type State string

const (
	StateIntro      State = "intro"
	StateInQuestion State = "in_question"
	StateReview     State = "review"
	StateFinalized  State = "finalized"
)

// Tab is the visible-tab flag layered over the session state. It is a pure
// display concern and never affects timers or scoring.
type Tab string

const (
	TabIntro     Tab = "intro"
	TabQuestions Tab = "questions"
)

// countdown is the per-question timer. It is replaced wholesale on every
// navigation; gen ties it to the transition that armed it so a stale tick
// can never advance a question it no longer owns.
type countdown struct {
	index     int
	remaining int
	gen       uint64
}

// Deps are the collaborators a session calls out to at finalization, plus an
// injectable clock for tests.
type Deps struct {
	Sink       RecordSink
	Experience ExperienceStore
	Now        func() time.Time
}

// Session drives one learner through one exam. All state is in-memory and
// discarded when the session ends; there is no resume after restart.
type Session struct {
	mu sync.Mutex

	learnerID  int64
	exam       *Exam
	clientMeta map[string]string

	state State
	tab   Tab
	index int

	answers map[string]*Answer
	levels  map[string]int

	startedAt   time.Time
	elapsedSecs int
	cd          *countdown
	timerGen    uint64

	recordSaved bool
	record      *Record
	finalizing  bool

	touched time.Time

	now  func() time.Time
	sink RecordSink
	xp   ExperienceStore
}

func NewSession(exam *Exam, learnerID int64, clientMeta map[string]string, deps Deps) (*Session, error) {
	if exam == nil || len(exam.Questions) == 0 {
		return nil, ErrEmptyExam
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		learnerID:  learnerID,
		exam:       exam,
		clientMeta: clientMeta,
		state:      StateIntro,
		tab:        TabIntro,
		answers:    make(map[string]*Answer),
		levels:     make(map[string]int),
		touched:    now(),
		now:        now,
		sink:       deps.Sink,
		xp:         deps.Experience,
	}, nil
}

func (s *Session) LearnerID() int64 { return s.learnerID }
func (s *Session) ExamID() int64    { return s.exam.ID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastTouched returns the time of the last explicit learner action. Ticks do
// not count; the registry uses this to sweep abandoned sessions.
func (s *Session) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) touch() {
	s.touched = s.now()
}

// Begin moves the session out of the intro state onto the first question and
// records the session start timestamp.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIntro {
		return ErrAlreadyStarted
	}
	s.touch()
	s.startedAt = s.now()
	s.state = StateInQuestion
	s.tab = TabQuestions
	s.enterQuestion(0)
	return nil
}

// enterQuestion repositions the session and re-arms the countdown. Bumping
// timerGen invalidates any countdown armed before this transition.
func (s *Session) enterQuestion(i int) {
	s.timerGen++
	s.index = i
	s.state = StateInQuestion
	if limit := s.exam.Questions[i].TimeLimitSeconds; limit > 0 {
		s.cd = &countdown{index: i, remaining: limit, gen: s.timerGen}
	} else {
		s.cd = nil
	}
}

func (s *Session) toReview() {
	s.timerGen++
	s.cd = nil
	s.state = StateReview
}

// Next advances to the following question; on the last element it enters
// review instead of running out of bounds.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInQuestion {
		return ErrNotInQuestion
	}
	s.touch()
	if s.index == len(s.exam.Questions)-1 {
		s.toReview()
		return nil
	}
	s.enterQuestion(s.index + 1)
	return nil
}

// Prev moves back one question. A back action on question 0 is a no-op.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInQuestion {
		return ErrNotInQuestion
	}
	s.touch()
	if s.index == 0 {
		return nil
	}
	s.enterQuestion(s.index - 1)
	return nil
}

// Finish enters review from the last question.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInQuestion {
		return ErrNotInQuestion
	}
	if s.index != len(s.exam.Questions)-1 {
		return ErrNotLastQuestion
	}
	s.touch()
	s.toReview()
	return nil
}

// ReopenLast is the single backward escape hatch out of review: it returns to
// the last question, from where normal navigation resumes.
func (s *Session) ReopenLast() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReview {
		return ErrNotInReview
	}
	s.touch()
	s.enterQuestion(len(s.exam.Questions) - 1)
	return nil
}

func (s *Session) SetTab(tab Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinalized {
		return ErrFinalized
	}
	if tab != TabIntro && tab != TabQuestions {
		return ErrInvalidTab
	}
	s.touch()
	s.tab = tab
	return nil
}

// Tick is one beat of the shared 1-second scheduler. The elapsed accumulator
// runs from Begin until review; the countdown, when armed, loses a second and
// auto-advances on reaching zero, recording an empty placeholder answer if
// the learner never interacted. A tick whose countdown no longer owns the
// current question is a no-op.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInQuestion {
		return
	}
	s.elapsedSecs++

	cd := s.cd
	if cd == nil {
		return
	}
	if cd.gen != s.timerGen || cd.index != s.index {
		s.cd = nil
		return
	}
	cd.remaining--
	if cd.remaining > 0 {
		return
	}

	// Expired: tear down before advancing so the signal fires exactly once.
	s.cd = nil
	s.ensurePlaceholder(cd.index)
	if cd.index == len(s.exam.Questions)-1 {
		s.toReview()
		return
	}
	s.enterQuestion(cd.index + 1)
}

// ensurePlaceholder records an empty answer for a scorable question so review
// always has an entry for it, even if blank.
func (s *Session) ensurePlaceholder(i int) {
	q := &s.exam.Questions[i]
	if !q.Scorable() {
		return
	}
	if _, ok := s.answers[q.ID]; !ok {
		s.answers[q.ID] = &Answer{}
	}
}

// currentAnswer validates that the session is on a scorable question and
// returns its answer entry, creating it on first interaction.
func (s *Session) currentAnswer() (*Question, *Answer, error) {
	if s.state != StateInQuestion {
		return nil, nil, ErrNotInQuestion
	}
	q := &s.exam.Questions[s.index]
	if !q.Scorable() {
		return nil, nil, ErrNotAnswerable
	}
	a := s.answers[q.ID]
	if a == nil {
		a = &Answer{}
		s.answers[q.ID] = a
	}
	return q, a, nil
}

// SetText records free text for short-text, long-text and flashcard questions.
func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	switch q.Kind {
	case KindShortText, KindLongText, KindFlashcard:
		s.touch()
		a.setText(text)
		return nil
	default:
		return ErrAnswerShape
	}
}

func (s *Session) SetBool(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	if q.Kind != KindTrueFalse {
		return ErrAnswerShape
	}
	s.touch()
	a.setBool(v)
	return nil
}

// SelectChoice records a single-choice selection; re-selecting replaces.
func (s *Session) SelectChoice(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	if q.Kind != KindSingleChoice {
		return ErrAnswerShape
	}
	if idx < 0 || idx >= len(q.Choices) {
		return ErrInvalidAnswer
	}
	s.touch()
	a.selectChoice(idx)
	return nil
}

// ToggleChoice flips membership of one index in a multiple-choice selection.
func (s *Session) ToggleChoice(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	if q.Kind != KindMultipleChoice {
		return ErrAnswerShape
	}
	if idx < 0 || idx >= len(q.Choices) {
		return ErrInvalidAnswer
	}
	s.touch()
	a.toggleChoice(idx)
	return nil
}

// SetGap fills one cloze gap, keyed by the literal token captured from the
// {{n}} marker.
func (s *Session) SetGap(token, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	if q.Kind != KindCloze {
		return ErrAnswerShape
	}
	known := false
	for _, t := range q.GapTokens() {
		if t == token {
			known = true
			break
		}
	}
	if !known {
		return ErrInvalidAnswer
	}
	s.touch()
	a.setEntry(token, text)
	return nil
}

// SetStep records the free-text entry for one position of a steps question.
func (s *Session) SetStep(idx int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.currentAnswer()
	if err != nil {
		return err
	}
	if q.Kind != KindSteps {
		return ErrAnswerShape
	}
	if idx < 0 || idx >= len(q.Steps) {
		return ErrInvalidAnswer
	}
	s.touch()
	a.setEntry(stepKey(idx), text)
	return nil
}

// SetLevel records the self-assessed mastery level for a scorable question
// during review. Out-of-range values clamp to [0,4]; setting the same level
// twice is idempotent.
func (s *Session) SetLevel(questionID string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinalized {
		return ErrFinalized
	}
	if s.state != StateReview {
		return ErrNotInReview
	}
	var q *Question
	for i := range s.exam.Questions {
		if s.exam.Questions[i].ID == questionID {
			q = &s.exam.Questions[i]
			break
		}
	}
	if q == nil {
		return ErrUnknownQuestion
	}
	if !q.Scorable() {
		return ErrNotAnswerable
	}
	s.touch()
	s.levels[questionID] = clampLevel(level)
	return nil
}

// Scorecard recomputes the aggregate scoring state from the current levels.
func (s *Session) Scorecard() Scorecard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildScorecard(s.exam.Questions, s.levels)
}
