package postgres

import (
	"context"
	"fmt"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Catalog serves assessments and their items from Postgres.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

const assessmentColumns = `a.id, a.title, a.description, a.duration_minutes, a.archived, a.created_by, a.created_at,
	(SELECT count(*) FROM items i WHERE i.assessment_id = a.id)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (domain.Assessment, error) {
	var a domain.Assessment
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.DurationMinutes, &a.Archived, &a.CreatedBy, &a.CreatedAt, &a.ItemCount)
	return a, err
}

func (c *Catalog) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments a WHERE a.id = $1`, assessmentID)
	a, err := scanAssessment(row)
	if err != nil {
		return domain.Assessment{}, classify("get assessment", err)
	}
	return a, nil
}

func (c *Catalog) ListAssessments(ctx context.Context) ([]domain.Assessment, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+assessmentColumns+` FROM assessments a ORDER BY a.created_at DESC, a.id`)
	if err != nil {
		return nil, classify("list assessments", err)
	}
	defer rows.Close()

	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, classify("scan assessment", err)
		}
		out = append(out, a)
	}
	return out, classify("list assessments", rows.Err())
}

// ArchiveAssessment sets the archived flag. There is no way back.
func (c *Catalog) ArchiveAssessment(ctx context.Context, assessmentID string) error {
	tag, err := c.pool.Exec(ctx, `UPDATE assessments SET archived = TRUE WHERE id = $1`, assessmentID)
	if err != nil {
		return classify("archive assessment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("archive assessment %s: %w", assessmentID, domain.ErrNotFound)
	}
	return nil
}

// ListItems returns items in presentation order (creation time).
func (c *Catalog) ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, assessment_id, prompt, options, correct_option, hint, difficulty, topic, created_at
		FROM items WHERE assessment_id = $1 ORDER BY created_at, id`, assessmentID)
	if err != nil {
		return nil, classify("list items", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.AssessmentID, &it.Prompt, &it.Options, &it.CorrectOption, &it.Hint, &it.Difficulty, &it.Topic, &it.CreatedAt); err != nil {
			return nil, classify("scan item", err)
		}
		out = append(out, it)
	}
	return out, classify("list items", rows.Err())
}

// UpsertAssessment writes catalog metadata; used by the seed command. An assessment that
// already has attempts is frozen: only its archived flag may still change, and applied is
// false. The archived flag is sticky: an upsert never un-archives.
func (c *Catalog) UpsertAssessment(ctx context.Context, a domain.Assessment) (applied bool, err error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	tag, err := c.pool.Exec(ctx, `INSERT INTO assessments (id, title, description, duration_minutes, archived, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
			duration_minutes = EXCLUDED.duration_minutes, archived = assessments.archived OR EXCLUDED.archived
		WHERE NOT EXISTS (SELECT 1 FROM attempts t WHERE t.assessment_id = assessments.id)`,
		a.ID, a.Title, a.Description, a.DurationMinutes, a.Archived, a.CreatedBy, a.CreatedAt)
	if err != nil {
		return false, classify("upsert assessment", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if a.Archived {
		if err := c.ArchiveAssessment(ctx, a.ID); err != nil {
			return false, err
		}
	}
	return false, nil
}

// UpsertItem writes one item; used by the seed command. Items of an assessment that already
// has attempts are neither added nor changed, and applied is false.
func (c *Catalog) UpsertItem(ctx context.Context, it domain.Item) (applied bool, err error) {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	tag, err := c.pool.Exec(ctx, `INSERT INTO items (id, assessment_id, prompt, options, correct_option, hint, difficulty, topic, created_at)
		SELECT $1::text, $2::text, $3::text, $4::text[], $5::integer, $6::text, $7::text, $8::text, $9::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM attempts t WHERE t.assessment_id = $2::text)
		ON CONFLICT (id) DO UPDATE SET prompt = EXCLUDED.prompt, options = EXCLUDED.options,
			correct_option = EXCLUDED.correct_option, hint = EXCLUDED.hint, difficulty = EXCLUDED.difficulty, topic = EXCLUDED.topic
		WHERE NOT EXISTS (SELECT 1 FROM attempts t WHERE t.assessment_id = items.assessment_id)`,
		it.ID, it.AssessmentID, it.Prompt, it.Options, it.CorrectOption, it.Hint, it.Difficulty, it.Topic, it.CreatedAt)
	if err != nil {
		return false, classify("upsert item", err)
	}
	return tag.RowsAffected() > 0, nil
}
