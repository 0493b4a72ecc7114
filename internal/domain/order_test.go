package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvances(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"draft to payment_initiated", OrderDraft, OrderPaymentInitiated, true},
		{"draft to pending", OrderDraft, OrderPending, true},
		{"payment_initiated to pending", OrderPaymentInitiated, OrderPending, true},
		{"payment_initiated to approved", OrderPaymentInitiated, OrderApproved, true},
		{"pending to approved", OrderPending, OrderApproved, true},
		{"pending to rejected", OrderPending, OrderRejected, true},

		{"no self loop", OrderPending, OrderPending, false},
		{"no regression to draft", OrderPending, OrderDraft, false},
		{"no regression to payment_initiated", OrderPending, OrderPaymentInitiated, false},

		{"cancel from draft", OrderDraft, OrderCancelled, true},
		{"cancel from payment_initiated", OrderPaymentInitiated, OrderCancelled, true},
		{"no cancel from pending", OrderPending, OrderCancelled, false},

		{"approved is final against pending", OrderApproved, OrderPending, false},
		{"approved is final against rejected", OrderApproved, OrderRejected, false},
		{"rejected is final against approved", OrderRejected, OrderApproved, false},
		{"rejected is final against pending", OrderRejected, OrderPending, false},

		{"money overrides cancellation", OrderCancelled, OrderApproved, true},
		{"cancelled stays against rejected", OrderCancelled, OrderRejected, false},
		{"cancelled stays against pending", OrderCancelled, OrderPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Advances(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, OrderApproved.Terminal())
	assert.True(t, OrderRejected.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderDraft.Terminal())
	assert.False(t, OrderPaymentInitiated.Terminal())
	assert.False(t, OrderPending.Terminal())
}

func TestGatewayEventID(t *testing.T) {
	withTxn := GatewayEvent{Reference: "TN-x", GatewayStatus: "approved", TransactionID: "txn-1"}
	assert.Equal(t, "gw-txn-1-approved", withTxn.EventID())

	// Redirect pings sometimes omit the transaction id.
	noTxn := GatewayEvent{Reference: "TN-x", GatewayStatus: "pending"}
	assert.Equal(t, "gw-TN-x-pending", noTxn.EventID())
}
