package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier-checkout/internal/domain"
)

func memOrder(status domain.OrderStatus, updatedAt time.Time) *domain.Order {
	return &domain.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		TrackingNumber: "TN-" + uuid.NewString(),
		AmountMinor:    1000,
		Currency:       "EUR",
		Status:         status,
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
}

func TestMemoryFindStuck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	old := time.Now().Add(-5 * time.Minute)
	stuckInitiated := memOrder(domain.OrderPaymentInitiated, old)
	stuckPending := memOrder(domain.OrderPending, old)
	freshPending := memOrder(domain.OrderPending, time.Now())
	oldApproved := memOrder(domain.OrderApproved, old)
	oldDraft := memOrder(domain.OrderDraft, old)

	for _, o := range []*domain.Order{stuckInitiated, stuckPending, freshPending, oldApproved, oldDraft} {
		require.NoError(t, store.Orders().Create(ctx, o))
	}

	stuck, err := store.Orders().FindStuck(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 2)

	ids := map[uuid.UUID]bool{stuck[0].ID: true, stuck[1].ID: true}
	assert.True(t, ids[stuckInitiated.ID])
	assert.True(t, ids[stuckPending.ID])
}

func TestMemoryLatestPaymentWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orderID := uuid.New()
	ref := "TN-" + uuid.NewString()

	base := time.Now().Add(-time.Minute)
	first := &domain.Payment{
		ID: uuid.New(), OrderID: orderID, ExternalReference: ref,
		AmountMinor: 100, Currency: "EUR", Status: domain.PaymentFailed,
		CreatedAt: base, UpdatedAt: base,
	}
	second := &domain.Payment{
		ID: uuid.New(), OrderID: orderID, ExternalReference: ref,
		AmountMinor: 100, Currency: "EUR", Status: domain.PaymentProcessing,
		CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(time.Second),
	}
	require.NoError(t, store.Payments().Create(ctx, first))
	require.NoError(t, store.Payments().Create(ctx, second))

	p, err := store.Payments().FindByExternalReference(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, second.ID, p.ID)

	p, err = store.Payments().FindLatestByOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, second.ID, p.ID)
}

func TestMemoryNotFoundIsNilNil(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order, err := store.Orders().FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, order)

	p, err := store.Payments().FindByExternalReference(ctx, "TN-missing")
	require.NoError(t, err)
	assert.Nil(t, p)

	tr, err := store.Transitions().FindByEventID(ctx, uuid.New(), "evt-1")
	require.NoError(t, err)
	assert.Nil(t, tr)
}
