package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

type orderRepo struct {
	q queryer
}

const orderColumns = "id, user_id, tracking_number, amount_minor, currency, status, created_at, updated_at"

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		order.ID, order.UserID, order.TrackingNumber, order.AmountMinor, order.Currency, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return scanOrder(row)
}

func (r *orderRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	return scanOrder(row)
}

func (r *orderRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE tracking_number = $1", trackingNumber)
	return scanOrder(row)
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TrackingNumber,
		&order.AmountMinor,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return &order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, order *domain.Order) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		order.Status, order.UpdatedAt, order.ID,
	)
	return err
}

func (r *orderRepo) FindStuck(ctx context.Context, olderThan time.Duration) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status IN ($1, $2) AND updated_at < $3",
		domain.OrderPaymentInitiated, domain.OrderPending, time.Now().Add(-olderThan),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TrackingNumber,
			&order.AmountMinor,
			&order.Currency,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
