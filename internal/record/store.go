package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"studylab/internal/practice"
)

// Store is the session persistence sink: one insert per completed session,
// no update or delete path. The list side serves the library view only; the
// engine itself never reads back.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Submit persists a completed session record.
func (s *Store) Submit(ctx context.Context, rec practice.Record) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	evaluation, err := json.Marshal(rec.Evaluation)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	meta, err := json.Marshal(rec.ClientMeta)
	if err != nil {
		return fmt.Errorf("encode client meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO practice_sessions (
			learner_id,
			exam_id,
			started_at,
			finished_at,
			duration_seconds,
			total_score,
			total_questions,
			correct_questions,
			answers,
			evaluation,
			client_meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb, $11::jsonb)
	`,
		rec.LearnerID,
		rec.ExamID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.DurationSeconds,
		rec.TotalScore,
		rec.TotalQuestions,
		rec.CorrectQuestions,
		answers,
		evaluation,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert practice session: %w", err)
	}
	return nil
}

type Summary struct {
	ID               int64     `json:"id"`
	ExamID           int64     `json:"exam_id"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	TotalScore       int       `json:"total_score"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectQuestions int       `json:"correct_questions"`
}

// ListByLearner returns a learner's completed sessions for one exam, newest
// first.
func (s *Store) ListByLearner(ctx context.Context, learnerID, examID int64) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			exam_id,
			finished_at,
			duration_seconds,
			total_score,
			total_questions,
			correct_questions
		FROM practice_sessions
		WHERE learner_id = $1 AND exam_id = $2
		ORDER BY finished_at DESC
	`, learnerID, examID)
	if err != nil {
		return nil, fmt.Errorf("query practice sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var item Summary
		if err := rows.Scan(
			&item.ID,
			&item.ExamID,
			&item.FinishedAt,
			&item.DurationSeconds,
			&item.TotalScore,
			&item.TotalQuestions,
			&item.CorrectQuestions,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
