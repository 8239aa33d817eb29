package practice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrSubmitFailed means the session record was rejected by the
	// persistence sink. Nothing was saved; the session stays in review and
	// the whole finalization may be retried.
	ErrSubmitFailed = errors.New("session record submit failed")

	// ErrExperienceNotApplied means the record was durably saved but the
	// learner's experience total was not updated. A retry runs only the
	// experience step; the record is never resubmitted.
	ErrExperienceNotApplied = errors.New("session saved but experience not applied")
)

// RecordSink persists completed session records. Write-only: the engine never
// updates or deletes a submitted record.
type RecordSink interface {
	Submit(ctx context.Context, rec Record) error
}

// ExperienceStore is the learner experience collaborator. The engine performs
// a read followed by a write, not an atomic increment; a failure between the
// two is reported as a partial success.
type ExperienceStore interface {
	Experience(ctx context.Context, learnerID int64) (int, error)
	SetExperience(ctx context.Context, learnerID int64, xp int) error
}

// EvaluationEntry is the persisted per-question evaluation snapshot.
type EvaluationEntry struct {
	Level     int `json:"level"`
	Points    int `json:"points"`
	MaxPoints int `json:"max_points"`
}

// Record is the immutable result of one completed session.
type Record struct {
	LearnerID        int64                      `json:"learner_id"`
	ExamID           int64                      `json:"exam_id"`
	StartedAt        time.Time                  `json:"started_at"`
	FinishedAt       time.Time                  `json:"finished_at"`
	DurationSeconds  int                        `json:"duration_seconds"`
	TotalScore       int                        `json:"total_score"`
	TotalQuestions   int                        `json:"total_questions"`
	CorrectQuestions int                        `json:"correct_questions"`
	Answers          map[string]Answer          `json:"answers"`
	Evaluation       map[string]EvaluationEntry `json:"evaluation"`
	ClientMeta       map[string]string          `json:"client_meta,omitempty"`
}

// FinalizeResult reports a fully successful finalization.
type FinalizeResult struct {
	Record        Record `json:"record"`
	NewExperience int    `json:"new_experience"`
}

// buildRecord snapshots the session. Caller holds s.mu.
func (s *Session) buildRecord() Record {
	finished := s.now()

	var duration int
	if !s.startedAt.IsZero() {
		duration = int(math.Round(finished.Sub(s.startedAt).Seconds()))
	} else {
		duration = s.elapsedSecs
	}
	if duration < 1 {
		duration = 1
	}

	card := BuildScorecard(s.exam.Questions, s.levels)

	answers := make(map[string]Answer, len(s.answers))
	for id, a := range s.answers {
		answers[id] = *a
	}
	eval := make(map[string]EvaluationEntry, len(card.PerQuestion))
	for _, qs := range card.PerQuestion {
		eval[qs.QuestionID] = EvaluationEntry{
			Level:     qs.Level,
			Points:    qs.Points,
			MaxPoints: qs.MaxPoints,
		}
	}

	return Record{
		LearnerID:        s.learnerID,
		ExamID:           s.exam.ID,
		StartedAt:        s.startedAt,
		FinishedAt:       finished,
		DurationSeconds:  duration,
		TotalScore:       card.TotalScore,
		TotalQuestions:   card.ScorableQuestions,
		CorrectQuestions: card.CorrectQuestions,
		Answers:          answers,
		Evaluation:       eval,
		ClientMeta:       s.clientMeta,
	}
}

// Finalize submits the session record, then applies the score as additive
// experience. On submit failure the session stays in review untouched. On an
// experience failure after a successful submit, the saved record is latched
// so that a retry runs only the experience step. Only full success moves the
// session to its terminal state.
func (s *Session) Finalize(ctx context.Context) (*FinalizeResult, error) {
	s.mu.Lock()
	switch {
	case s.state == StateFinalized:
		s.mu.Unlock()
		return nil, ErrFinalized
	case s.state != StateReview:
		s.mu.Unlock()
		return nil, ErrNotInReview
	case s.finalizing:
		s.mu.Unlock()
		return nil, ErrFinalizeInFlight
	}
	s.finalizing = true
	s.touch()

	var rec Record
	saved := s.recordSaved
	if saved {
		rec = *s.record
	} else {
		rec = s.buildRecord()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.finalizing = false
		s.mu.Unlock()
	}()

	if !saved {
		if err := s.sink.Submit(ctx, rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
		s.mu.Lock()
		s.record = &rec
		s.recordSaved = true
		s.mu.Unlock()
	}

	current, err := s.xp.Experience(ctx, s.learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: read experience: %v", ErrExperienceNotApplied, err)
	}
	newXP := current + rec.TotalScore
	if err := s.xp.SetExperience(ctx, s.learnerID, newXP); err != nil {
		return nil, fmt.Errorf("%w: write experience: %v", ErrExperienceNotApplied, err)
	}

	s.mu.Lock()
	s.state = StateFinalized
	s.mu.Unlock()

	return &FinalizeResult{Record: rec, NewExperience: newXP}, nil
}
