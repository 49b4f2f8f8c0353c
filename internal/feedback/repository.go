package feedback

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/utils"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepo is the Postgres persistence layer for feedback rows.
type PostgresRepo struct {
	db *sql.DB
	tx utils.TxConfig
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema applies schema.sql. Must run after the calls schema (FK).
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

// CreateForCall inserts feedback after re-checking that the call exists
// inside the same transaction, so a concurrent call deletion cannot leave an
// orphan row.
func (r *PostgresRepo) CreateForCall(ctx context.Context, fb Feedback) (Feedback, error) {
	err := utils.WithTx(ctx, r.db, r.tx, func(ctx context.Context, tx *sql.Tx) error {
		var exists string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM calls WHERE id = $1`, fb.CallID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("Call not found")
			}
			return err
		}

		const q = `
INSERT INTO feedback (id, call_id, rating, comment, created_at)
VALUES ($1,$2,$3,$4,$5)
`
		_, err := tx.ExecContext(ctx, q, fb.ID, fb.CallID, fb.Rating, fb.Comment, fb.CreatedAt)
		return err
	})
	if err != nil {
		return Feedback{}, apperr.FromStorage(err)
	}
	return fb, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Feedback, error) {
	const q = `SELECT id, call_id, rating, comment, created_at FROM feedback WHERE id = $1`
	var fb Feedback
	err := r.db.QueryRowContext(ctx, q, id).Scan(&fb.ID, &fb.CallID, &fb.Rating, &fb.Comment, &fb.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Feedback{}, apperr.NotFound("Feedback not found")
		}
		return Feedback{}, apperr.FromStorage(err)
	}
	return fb, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStorage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.FromStorage(err)
	}
	if n == 0 {
		return apperr.NotFound("Feedback not found")
	}
	return nil
}

// ListByCall returns feedback for a call, newest first.
func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Feedback, error) {
	const q = `
SELECT id, call_id, rating, comment, created_at
FROM feedback
WHERE call_id = $1
ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	defer rows.Close()

	out := make([]Feedback, 0)
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.CallID, &fb.Rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, apperr.FromStorage(err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStorage(err)
	}
	return out, nil
}

// AvgRatingForCalls computes the arithmetic mean rating over all feedback
// belonging to the given call ids. Returns nil when there is none.
func (r *PostgresRepo) AvgRatingForCalls(ctx context.Context, callIDs []string) (*float64, error) {
	if len(callIDs) == 0 {
		return nil, nil
	}

	const q = `SELECT AVG(rating) FROM feedback WHERE call_id::text = ANY($1)`
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q, callIDs).Scan(&avg); err != nil {
		return nil, apperr.FromStorage(err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}
