package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"studylab/internal/practice"
)

var (
	ErrExamNotFound = errors.New("exam not found")
	ErrBadQuestion  = errors.New("malformed question payload")
)

// Store is the read-only exam content loader. Content authoring lives in the
// wider platform; this service only ever selects.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type ExamSummary struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
}

// List returns the active exams for the library view.
func (s *Store) List(ctx context.Context) ([]ExamSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			e.id,
			e.title,
			COALESCE(e.description, ''),
			COUNT(q.id)
		FROM exams e
		LEFT JOIN exam_questions q ON q.exam_id = e.id
		WHERE e.is_active = TRUE
		GROUP BY e.id, e.title, e.description
		ORDER BY e.title
	`)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	out := make([]ExamSummary, 0)
	for rows.Next() {
		var item ExamSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan exam row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return out, nil
}

// Load fetches one exam and its ordered questions in a single pass. The
// engine treats the result as loaded atomically before the session exists.
func (s *Store) Load(ctx context.Context, examID int64) (*practice.Exam, error) {
	exam := &practice.Exam{ID: examID}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, COALESCE(description, ''), COALESCE(introduction, '')
		FROM exams
		WHERE id = $1 AND is_active = TRUE
	`, examID).Scan(&exam.Title, &exam.Description, &exam.Introduction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_key, kind, payload
		FROM exam_questions
		WHERE exam_id = $1
		ORDER BY seq_no
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query exam questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key     string
			kind    string
			payload []byte
		)
		if err := rows.Scan(&key, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		q, err := decodeQuestion(key, kind, payload)
		if err != nil {
			return nil, err
		}
		exam.Questions = append(exam.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam questions: %w", err)
	}

	return exam, nil
}

// decodeQuestion builds a practice.Question from a stored row. The jsonb
// payload carries the kind-specific fields; key and kind come from columns so
// the payload cannot reassign them.
func decodeQuestion(key, kind string, payload []byte) (practice.Question, error) {
	var q practice.Question
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &q); err != nil {
			return practice.Question{}, fmt.Errorf("%w: question %s: %v", ErrBadQuestion, key, err)
		}
	}
	q.ID = key
	q.Kind = practice.Kind(kind)
	if !practice.ValidKind(q.Kind) {
		return practice.Question{}, fmt.Errorf("%w: question %s: unknown kind %q", ErrBadQuestion, key, kind)
	}
	return q, nil
}
