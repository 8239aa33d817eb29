package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store holds learner profiles in Postgres. Experience reads treat a missing
// profile as zero so a learner's first finalization does not need a separate
// provisioning step; the write side upserts.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Experience(ctx context.Context, learnerID int64) (int, error) {
	var xp int
	err := s.db.QueryRowContext(ctx, `
		SELECT xp FROM learner_profiles WHERE learner_id = $1
	`, learnerID).Scan(&xp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read experience: %w", err)
	}
	return xp, nil
}

func (s *Store) SetExperience(ctx context.Context, learnerID int64, xp int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learner_profiles (learner_id, xp, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (learner_id)
		DO UPDATE SET xp = EXCLUDED.xp, updated_at = NOW()
	`, learnerID, xp)
	if err != nil {
		return fmt.Errorf("write experience: %w", err)
	}
	return nil
}
