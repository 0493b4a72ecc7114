package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderDraft            OrderStatus = "draft"
	OrderPaymentInitiated OrderStatus = "payment_initiated"
	OrderPending          OrderStatus = "pending"
	OrderApproved         OrderStatus = "approved"
	OrderRejected         OrderStatus = "rejected"
	OrderCancelled        OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s,
// except the single approved-over-cancelled override.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderApproved, OrderRejected, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) rank() int {
	switch s {
	case OrderDraft:
		return 0
	case OrderPaymentInitiated:
		return 1
	case OrderPending:
		return 2
	case OrderApproved, OrderRejected, OrderCancelled:
		return 3
	}
	return -1
}

// Advances reports whether an order currently in from may move to to.
// Once terminal, the only permitted change is approved overwriting
// cancelled: the gateway confirming money moved outranks a client-side
// abandon signal. Cancellation itself is only reachable from draft or
// payment_initiated, never from pending.
func Advances(from, to OrderStatus) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return from == OrderCancelled && to == OrderApproved
	}
	if to == OrderCancelled {
		return from == OrderDraft || from == OrderPaymentInitiated
	}
	if to.Terminal() {
		return true
	}
	return to.rank() > from.rank()
}

type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TrackingNumber string
	AmountMinor    int64
	Currency       string
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition is one audit entry in an order's lifecycle. EventID is
// unique per order and doubles as the idempotency key for Apply.
type Transition struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	EventID string
	From    OrderStatus
	To      OrderStatus
	At      time.Time
}
