package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

type OrderRepo interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// LockByID reads the order and, on the SQL store, holds the row lock
	// until the surrounding transaction ends. Only meaningful inside
	// WithinTx; concurrent status writers must read through it.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, order *domain.Order) error
	// FindStuck returns orders sitting in payment_initiated or pending
	// longer than olderThan, candidates for reconciliation.
	FindStuck(ctx context.Context, olderThan time.Duration) ([]domain.Order, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	// FindByExternalReference returns the most recent payment carrying
	// the reference, or (nil, nil) when none exists.
	FindByExternalReference(ctx context.Context, ref string) (*domain.Payment, error)
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
}

type TransitionRepo interface {
	Insert(ctx context.Context, tr *domain.Transition) error
	FindByEventID(ctx context.Context, orderID uuid.UUID, eventID string) (*domain.Transition, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transition, error)
}

// Store bundles the repos with a transaction scope. WithinTx runs fn
// against a store whose writes commit or roll back together; the state
// machine relies on it to apply a transition atomically relative to
// reads of the same order.
type Store interface {
	Orders() OrderRepo
	Payments() PaymentRepo
	Transitions() TransitionRepo
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlStore struct {
	db *sql.DB
	q  queryer
}

func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) Orders() OrderRepo           { return &orderRepo{q: s.q} }
func (s *sqlStore) Payments() PaymentRepo       { return &paymentRepo{q: s.q} }
func (s *sqlStore) Transitions() TransitionRepo { return &transitionRepo{q: s.q} }

func (s *sqlStore) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqlStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
