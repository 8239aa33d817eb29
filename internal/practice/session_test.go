package practice

import (
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newTestSession(t *testing.T, qs ...Question) *Session {
	t.Helper()
	s, err := NewSession(&Exam{ID: 7, Title: "Algebra", Questions: qs}, 42, nil, Deps{Now: fixedClock()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func mustBegin(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
}

func TestNewSession_RejectsEmptyExam(t *testing.T) {
	if _, err := NewSession(&Exam{ID: 1}, 42, nil, Deps{}); !errors.Is(err, ErrEmptyExam) {
		t.Fatalf("expected ErrEmptyExam, got %v", err)
	}
	if _, err := NewSession(nil, 42, nil, Deps{}); !errors.Is(err, ErrEmptyExam) {
		t.Fatalf("expected ErrEmptyExam for nil exam, got %v", err)
	}
}

func TestSession_BeginOnlyFromIntro(t *testing.T) {
	s := newTestSession(t, Question{ID: "q1", Kind: KindShortText})
	if s.State() != StateIntro {
		t.Fatalf("state = %s, want intro", s.State())
	}
	mustBegin(t, s)
	if s.State() != StateInQuestion {
		t.Fatalf("state = %s, want in_question", s.State())
	}
	if err := s.Begin(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second begin: expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSession_NavigationBounds(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText},
		Question{ID: "q2", Kind: KindShortText},
	)
	mustBegin(t, s)

	// Back on the first question is a silent no-op.
	if err := s.Prev(); err != nil {
		t.Fatalf("prev at 0: %v", err)
	}
	if snap := s.Snapshot(); snap.Index != 0 {
		t.Fatalf("index = %d, want 0", snap.Index)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.Prev(); err != nil {
		t.Fatalf("prev: %v", err)
	}

	// Finish is only offered on the last question.
	if err := s.Finish(); !errors.Is(err, ErrNotLastQuestion) {
		t.Fatalf("finish at 0: expected ErrNotLastQuestion, got %v", err)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("finish at last: %v", err)
	}
	if s.State() != StateReview {
		t.Fatalf("state = %s, want review", s.State())
	}
}

func TestSession_NextOnLastEntersReview(t *testing.T) {
	s := newTestSession(t, Question{ID: "q1", Kind: KindShortText})
	mustBegin(t, s)
	if err := s.Next(); err != nil {
		t.Fatalf("next on last: %v", err)
	}
	if s.State() != StateReview {
		t.Fatalf("state = %s, want review", s.State())
	}
}

func TestSession_ReopenLast(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText},
		Question{ID: "q2", Kind: KindShortText},
	)
	mustBegin(t, s)
	if err := s.ReopenLast(); !errors.Is(err, ErrNotInReview) {
		t.Fatalf("reopen while in question: expected ErrNotInReview, got %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.ReopenLast(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	snap := s.Snapshot()
	if snap.State != StateInQuestion || snap.Index != 1 {
		t.Fatalf("after reopen: state=%s index=%d, want in_question/1", snap.State, snap.Index)
	}
}

func TestSession_AnswerShapeValidation(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindSingleChoice, Choices: []Choice{{Label: "a"}, {Label: "b"}}},
		Question{ID: "q2", Kind: KindInfoBlock, Body: "read this"},
		Question{ID: "q3", Kind: KindCloze, ClozeText: "{{1}} gap"},
	)

	if err := s.SelectChoice(0); !errors.Is(err, ErrNotInQuestion) {
		t.Fatalf("answer before begin: expected ErrNotInQuestion, got %v", err)
	}
	mustBegin(t, s)

	if err := s.SetText("hello"); !errors.Is(err, ErrAnswerShape) {
		t.Fatalf("text on single choice: expected ErrAnswerShape, got %v", err)
	}
	if err := s.SelectChoice(5); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("out of range choice: expected ErrInvalidAnswer, got %v", err)
	}
	if err := s.SelectChoice(1); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.SetText("noted"); !errors.Is(err, ErrNotAnswerable) {
		t.Fatalf("answer on info block: expected ErrNotAnswerable, got %v", err)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.SetGap("9", "x"); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("unknown gap token: expected ErrInvalidAnswer, got %v", err)
	}
	if err := s.SetGap("1", "fox"); err != nil {
		t.Fatalf("set gap: %v", err)
	}
}

func TestSession_ToggleChoice(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindMultipleChoice, Choices: []Choice{{Label: "a"}, {Label: "b"}}},
	)
	mustBegin(t, s)
	if err := s.ToggleChoice(1); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Answer.SelectedSet[1] {
		t.Fatalf("index 1 should be selected")
	}
	if err := s.ToggleChoice(1); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if snap := s.Snapshot(); snap.Answer.SelectedSet[1] {
		t.Fatalf("index 1 should be deselected")
	}
}

func TestSession_CountdownAutoAdvance(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText, TimeLimitSeconds: 3},
		Question{ID: "q2", Kind: KindShortText},
	)
	mustBegin(t, s)

	s.Tick()
	s.Tick()
	snap := s.Snapshot()
	if snap.Index != 0 {
		t.Fatalf("index = %d before expiry, want 0", snap.Index)
	}
	if snap.RemainingSeconds == nil || *snap.RemainingSeconds != 1 {
		t.Fatalf("remaining = %v, want 1", snap.RemainingSeconds)
	}

	s.Tick()
	snap = s.Snapshot()
	if snap.Index != 1 {
		t.Fatalf("index = %d after expiry, want 1", snap.Index)
	}

	// The skipped question gets an empty placeholder so review lists it.
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	view, err := s.Review()
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("review items = %d, want 2", len(view.Items))
	}
	if view.Items[0].Answer == nil || !view.Items[0].Answer.Empty() {
		t.Fatalf("expired question should carry an empty placeholder, got %+v", view.Items[0].Answer)
	}
}

func TestSession_CountdownExpiryOnLastEntersReview(t *testing.T) {
	s := newTestSession(t, Question{ID: "q1", Kind: KindShortText, TimeLimitSeconds: 1})
	mustBegin(t, s)
	s.Tick()
	if s.State() != StateReview {
		t.Fatalf("state = %s after last question expiry, want review", s.State())
	}
}

func TestSession_NavigationCancelsCountdown(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText, TimeLimitSeconds: 2},
		Question{ID: "q2", Kind: KindShortText},
	)
	mustBegin(t, s)
	s.Tick()
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	// q2 has no limit: any number of beats must not advance the session.
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	if snap.State != StateInQuestion || snap.Index != 1 {
		t.Fatalf("state=%s index=%d, want in_question/1", snap.State, snap.Index)
	}
	if snap.RemainingSeconds != nil {
		t.Fatalf("untimed question should have no countdown, got %v", snap.RemainingSeconds)
	}
}

func TestSession_ReturningRearmsFullCountdown(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText, TimeLimitSeconds: 5},
		Question{ID: "q2", Kind: KindShortText},
	)
	mustBegin(t, s)
	s.Tick()
	s.Tick()
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.Prev(); err != nil {
		t.Fatalf("prev: %v", err)
	}
	snap := s.Snapshot()
	if snap.RemainingSeconds == nil || *snap.RemainingSeconds != 5 {
		t.Fatalf("remaining = %v after revisit, want full 5", snap.RemainingSeconds)
	}
}

func TestSession_ElapsedCountsOnlyInQuestionState(t *testing.T) {
	s := newTestSession(t, Question{ID: "q1", Kind: KindShortText})

	s.Tick()
	if snap := s.Snapshot(); snap.ElapsedSeconds != 0 {
		t.Fatalf("elapsed = %d during intro, want 0", snap.ElapsedSeconds)
	}

	mustBegin(t, s)
	s.Tick()
	s.Tick()
	if snap := s.Snapshot(); snap.ElapsedSeconds != 2 {
		t.Fatalf("elapsed = %d, want 2", snap.ElapsedSeconds)
	}

	if err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	s.Tick()
	if snap := s.Snapshot(); snap.ElapsedSeconds != 2 {
		t.Fatalf("elapsed = %d during review, want 2", snap.ElapsedSeconds)
	}
}

func TestSession_SetLevel(t *testing.T) {
	s := newTestSession(t,
		Question{ID: "q1", Kind: KindShortText},
		Question{ID: "q2", Kind: KindInfoBlock},
	)
	mustBegin(t, s)
	if err := s.SetLevel("q1", 3); !errors.Is(err, ErrNotInReview) {
		t.Fatalf("level before review: expected ErrNotInReview, got %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	if err := s.SetLevel("q1", 3); err != nil {
		t.Fatalf("set level: %v", err)
	}
	if err := s.SetLevel("q1", 3); err != nil {
		t.Fatalf("repeat set level should be idempotent: %v", err)
	}
	if err := s.SetLevel("q1", 99); err != nil {
		t.Fatalf("out of range level should clamp: %v", err)
	}
	card := s.Scorecard()
	if card.PerQuestion[0].Level != 4 {
		t.Fatalf("level = %d after clamp, want 4", card.PerQuestion[0].Level)
	}

	if err := s.SetLevel("q2", 2); !errors.Is(err, ErrNotAnswerable) {
		t.Fatalf("level on info block: expected ErrNotAnswerable, got %v", err)
	}
	if err := s.SetLevel("nope", 2); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("level on unknown: expected ErrUnknownQuestion, got %v", err)
	}
}

func TestSession_SetTab(t *testing.T) {
	s := newTestSession(t, Question{ID: "q1", Kind: KindShortText})
	if err := s.SetTab(TabQuestions); err != nil {
		t.Fatalf("set tab: %v", err)
	}
	if err := s.SetTab(Tab("sidebar")); !errors.Is(err, ErrInvalidTab) {
		t.Fatalf("bad tab: expected ErrInvalidTab, got %v", err)
	}
	mustBegin(t, s)
	if snap := s.Snapshot(); snap.Tab != TabQuestions {
		t.Fatalf("begin should land on the questions tab, got %s", snap.Tab)
	}
}
