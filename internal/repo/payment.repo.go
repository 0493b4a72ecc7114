package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

type paymentRepo struct {
	q queryer
}

const paymentColumns = "id, order_id, external_reference, gateway_txn_id, amount_minor, currency, status, created_at, updated_at"

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		payment.ID, payment.OrderID, payment.ExternalReference, payment.GatewayTxnID,
		payment.AmountMinor, payment.Currency, payment.Status, payment.CreatedAt, payment.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	return scanPayment(row)
}

func (r *paymentRepo) FindByExternalReference(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE external_reference = $1 ORDER BY created_at DESC LIMIT 1",
		ref,
	)
	return scanPayment(row)
}

func (r *paymentRepo) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1",
		orderID,
	)
	return scanPayment(row)
}

func scanPayment(row *sql.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.ExternalReference,
		&p.GatewayTxnID,
		&p.AmountMinor,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return &p, nil
}

func (r *paymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE payments
		 SET status = $2,
		     gateway_txn_id = $3,
		     updated_at = $4
		 WHERE id = $1`,
		payment.ID, payment.Status, payment.GatewayTxnID, payment.UpdatedAt,
	)
	return err
}
