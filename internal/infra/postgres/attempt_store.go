package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore persists attempts; the attempts_assessment_participant_key constraint
// resolves concurrent starts.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

const attemptColumns = `id, assessment_id, participant_id, started_at, completed_at, total_items, correct_count, score`

func scanAttempt(row rowScanner) (domain.Attempt, error) {
	var a domain.Attempt
	err := row.Scan(&a.ID, &a.AssessmentID, &a.ParticipantID, &a.StartedAt, &a.CompletedAt, &a.TotalItems, &a.CorrectCount, &a.Score)
	return a, err
}

func (s *AttemptStore) FindAttempt(ctx context.Context, assessmentID, participantID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE assessment_id = $1 AND participant_id = $2`, assessmentID, participantID)
	a, err := scanAttempt(row)
	if err != nil {
		return domain.Attempt{}, classify("find attempt", err)
	}
	return a, nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, attemptID)
	a, err := scanAttempt(row)
	if err != nil {
		return domain.Attempt{}, classify("get attempt", err)
	}
	return a, nil
}

func (s *AttemptStore) InsertAttempt(ctx context.Context, a domain.Attempt) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO attempts (id, assessment_id, participant_id, started_at, total_items)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.AssessmentID, a.ParticipantID, a.StartedAt, a.TotalItems)
	return classify("insert attempt", err)
}

// DeleteAttempt removes an incomplete attempt; its responses go with it (ON DELETE CASCADE).
func (s *AttemptStore) DeleteAttempt(ctx context.Context, attemptID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attempts WHERE id = $1 AND completed_at IS NULL`, attemptID)
	if err != nil {
		return classify("delete attempt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete attempt %s: %w", attemptID, domain.ErrNotFound)
	}
	return nil
}

// CompleteAttempt is a single-row conditional update; a completed row is left untouched.
func (s *AttemptStore) CompleteAttempt(ctx context.Context, attemptID string, correctCount, score int, completedAt time.Time) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `UPDATE attempts SET completed_at = $2, correct_count = $3, score = $4
		WHERE id = $1 AND completed_at IS NULL RETURNING `+attemptColumns,
		attemptID, completedAt, correctCount, score)
	a, err := scanAttempt(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, classify("complete attempt", err)
	}
	if _, err := s.GetAttempt(ctx, attemptID); err != nil {
		return domain.Attempt{}, err
	}
	return domain.Attempt{}, domain.ErrAlreadyFinalized
}

func (s *AttemptStore) ListAttempts(ctx context.Context, assessmentID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE assessment_id = $1 ORDER BY started_at DESC`, assessmentID)
	if err != nil {
		return nil, classify("list attempts", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, classify("scan attempt", err)
		}
		out = append(out, a)
	}
	return out, classify("list attempts", rows.Err())
}
