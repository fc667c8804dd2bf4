package attempt

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore writes attempts to the submission_attempts table created by
// the migrations directory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, a Attempt) error {
	if err := a.validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submission_attempts
			(id, session_id, started_at, finished_at, outcome, order_id,
			 error_code, detail, http_status, item_count, total_qty, payable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric)`,
		a.ID, a.SessionID, a.StartedAt, a.FinishedAt, string(a.Outcome), a.OrderID,
		a.ErrorCode, a.Detail, a.HTTPStatus, a.ItemCount,
		a.TotalQty.StringFixed(1), a.Payable.StringFixed(2),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, started_at, finished_at, outcome, order_id,
		       error_code, detail, http_status, item_count,
		       total_qty::text, payable::text
		FROM submission_attempts
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`,
		normalizeLimit(limit), max(offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanAttempt)
	if err != nil {
		return nil, fmt.Errorf("scan attempts: %w", err)
	}
	return out, nil
}

func scanAttempt(row pgx.CollectableRow) (Attempt, error) {
	var (
		a            Attempt
		outcome      string
		qty, payable string
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.StartedAt, &a.FinishedAt, &outcome, &a.OrderID,
		&a.ErrorCode, &a.Detail, &a.HTTPStatus, &a.ItemCount, &qty, &payable)
	if err != nil {
		return Attempt{}, err
	}
	a.Outcome = Outcome(outcome)
	if a.TotalQty, err = decimal.NewFromString(qty); err != nil {
		return Attempt{}, fmt.Errorf("total_qty: %w", err)
	}
	if a.Payable, err = decimal.NewFromString(payable); err != nil {
		return Attempt{}, fmt.Errorf("payable: %w", err)
	}
	return a, nil
}
