package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

type transitionRepo struct {
	q queryer
}

const transitionColumns = "id, order_id, event_id, from_status, to_status, at"

func (r *transitionRepo) Insert(ctx context.Context, tr *domain.Transition) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO order_transitions ("+transitionColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		tr.ID, tr.OrderID, tr.EventID, tr.From, tr.To, tr.At,
	)
	return err
}

func (r *transitionRepo) FindByEventID(ctx context.Context, orderID uuid.UUID, eventID string) (*domain.Transition, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+transitionColumns+" FROM order_transitions WHERE order_id = $1 AND event_id = $2",
		orderID, eventID,
	)
	var tr domain.Transition
	err := row.Scan(&tr.ID, &tr.OrderID, &tr.EventID, &tr.From, &tr.To, &tr.At)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (r *transitionRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transition, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+transitionColumns+" FROM order_transitions WHERE order_id = $1 ORDER BY at",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trs []domain.Transition
	for rows.Next() {
		var tr domain.Transition
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.EventID, &tr.From, &tr.To, &tr.At); err != nil {
			return nil, err
		}
		trs = append(trs, tr)
	}
	return trs, rows.Err()
}
