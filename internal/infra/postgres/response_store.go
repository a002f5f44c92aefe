package postgres

import (
	"context"

	"assessment-session-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResponseStore persists responses keyed by (attempt_id, item_id).
type ResponseStore struct {
	pool *pgxpool.Pool
}

func NewResponseStore(pool *pgxpool.Pool) *ResponseStore {
	return &ResponseStore{pool: pool}
}

func (s *ResponseStore) InsertResponse(ctx context.Context, r domain.Response) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO responses (attempt_id, item_id, selected_option, is_correct, time_taken_seconds)
		VALUES ($1, $2, $3, $4, $5)`,
		r.AttemptID, r.ItemID, r.SelectedOption, r.IsCorrect, r.TimeTakenSeconds)
	return classify("insert response", err)
}

func (s *ResponseStore) ListResponses(ctx context.Context, attemptID string) ([]domain.Response, error) {
	rows, err := s.pool.Query(ctx, `SELECT r.attempt_id, r.item_id, r.selected_option, r.is_correct, r.time_taken_seconds
		FROM responses r JOIN items i ON i.id = r.item_id
		WHERE r.attempt_id = $1 ORDER BY i.created_at, i.id`, attemptID)
	if err != nil {
		return nil, classify("list responses", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		var r domain.Response
		if err := rows.Scan(&r.AttemptID, &r.ItemID, &r.SelectedOption, &r.IsCorrect, &r.TimeTakenSeconds); err != nil {
			return nil, classify("scan response", err)
		}
		out = append(out, r)
	}
	return out, classify("list responses", rows.Err())
}

func (s *ResponseStore) DeleteResponses(ctx context.Context, attemptID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM responses WHERE attempt_id = $1`, attemptID)
	return classify("delete responses", err)
}
