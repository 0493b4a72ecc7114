package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "initiated"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
)

// Payment is one gateway transaction tied to an order. Retries may
// accumulate several failed payments per order before one succeeds.
// ExternalReference equals the tracking number when no order id was
// known to the gateway at charge time.
type Payment struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	ExternalReference string
	GatewayTxnID      string
	AmountMinor       int64
	Currency          string
	Status            PaymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GatewayEvent is the canonical form of a gateway callback after the
// adapter has validated it. Reference is the gateway's echo of the
// tracking number or order id.
type GatewayEvent struct {
	Reference     string
	GatewayStatus string
	TransactionID string
}

// EventID derives the audit idempotency key. Redirect pings and
// webhooks for the same transaction and status collapse to one entry,
// while a later status for the same transaction stays distinct.
func (e GatewayEvent) EventID() string {
	txn := e.TransactionID
	if txn == "" {
		txn = e.Reference
	}
	return "gw-" + txn + "-" + e.GatewayStatus
}
