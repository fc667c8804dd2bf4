// Package attempt keeps an audit log of order submission attempts. It never
// stores cart contents, only the outcome of each POST to the order endpoint.
package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome of a submission attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// DefaultLimit is used by List callers that pass a non-positive limit.
const DefaultLimit = 50

// ErrInvalidAttempt is returned by Record for attempts missing an ID or outcome.
var ErrInvalidAttempt = errors.New("invalid attempt")

// Attempt is one submission, successful or not.
type Attempt struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcome    Outcome         `json:"outcome"`
	OrderID    string          `json:"order_id,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	HTTPStatus int             `json:"http_status,omitempty"`
	ItemCount  int             `json:"item_count"`
	TotalQty   decimal.Decimal `json:"total_qty"`
	Payable    decimal.Decimal `json:"payable"`
}

// Duration is the wall time the attempt took.
func (a Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

func (a Attempt) validate() error {
	if a.ID == uuid.Nil {
		return errors.Join(ErrInvalidAttempt, errors.New("missing id"))
	}
	if a.Outcome != OutcomeSuccess && a.Outcome != OutcomeFailed {
		return errors.Join(ErrInvalidAttempt, errors.New("unknown outcome "+string(a.Outcome)))
	}
	return nil
}

// Store persists attempts. List returns the newest first.
type Store interface {
	Record(ctx context.Context, a Attempt) error
	List(ctx context.Context, limit, offset int) ([]Attempt, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
