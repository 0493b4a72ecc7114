package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"atelier-checkout/internal/cache"
	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/events"
	"atelier-checkout/internal/infrastructure/payment"
	"atelier-checkout/internal/repo"
	"atelier-checkout/internal/service"
	"atelier-checkout/internal/tracking"
	"atelier-checkout/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store   repo.Store
	gateway *payment.MockGateway
	orders  service.OrderService
	worker  *worker.ReconciliationWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemoryStore()
	gateway := payment.NewMockGateway()
	logger := zap.NewNop()
	adapter := payment.NewAdapter(gateway, store, logger,
		payment.WithRetryPolicy(time.Millisecond, 3))
	orders := service.NewOrderService(store, tracking.NewIssuer(), adapter,
		events.Nop(), cache.NewRegistry(time.Minute), logger)
	w := worker.NewReconciliationWorker(store, gateway, orders, 0, 10*time.Millisecond, logger)
	return &fixture{store: store, gateway: gateway, orders: orders, worker: w}
}

func (f *fixture) stuckOrder(t *testing.T, outcomes ...payment.Outcome) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.orders.CreateDraft(ctx, uuid.New(), 9900, "EUR")
	require.NoError(t, err)

	f.gateway.Script(outcomes...)
	_, _ = f.orders.Checkout(ctx, order.TrackingNumber)

	status, err := f.orders.StatusByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderPaymentInitiated, status, "order must be stuck for the sweep")
	return order
}

func TestProcessFixesPhantomCharge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The charge settles as pending on the gateway side; no callback
	// ever arrives for it.
	order := f.stuckOrder(t, payment.OutcomePending)
	f.gateway.Settle(order.TrackingNumber, "approved")

	require.NoError(t, f.worker.Process(ctx))

	status, err := f.orders.StatusByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderApproved, status)

	p, err := f.store.Payments().FindLatestByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.PaymentSucceeded, p.Status)
}

func TestProcessRejectsAbandonedAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// All attempts died on the network: the gateway never saw the
	// reference, so the sweep resolves the order as rejected.
	order, err := f.orders.CreateDraft(ctx, uuid.New(), 9900, "EUR")
	require.NoError(t, err)
	f.gateway.Script(payment.OutcomeNetwork, payment.OutcomeNetwork,
		payment.OutcomeNetwork, payment.OutcomeNetwork)
	_, err = f.orders.Checkout(ctx, order.TrackingNumber)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	require.NoError(t, f.worker.Process(ctx))

	status, err := f.orders.StatusByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, status)
}

func TestProcessIsIdempotentAcrossSweeps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := f.stuckOrder(t, payment.OutcomePending)
	f.gateway.Settle(order.TrackingNumber, "approved")

	require.NoError(t, f.worker.Process(ctx))
	require.NoError(t, f.worker.Process(ctx))

	trs, err := f.orders.Transitions(ctx, order.ID)
	require.NoError(t, err)

	// checkout start + the single reconciled approval.
	assert.Len(t, trs, 2)
}

func TestProcessLeavesFreshOrdersAlone(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	gateway := payment.NewMockGateway()
	logger := zap.NewNop()
	adapter := payment.NewAdapter(gateway, store, logger,
		payment.WithRetryPolicy(time.Millisecond, 3))
	orders := service.NewOrderService(store, tracking.NewIssuer(), adapter,
		events.Nop(), cache.NewRegistry(time.Minute), logger)
	// A high threshold keeps everything out of the sweep.
	w := worker.NewReconciliationWorker(store, gateway, orders, time.Hour, 10*time.Millisecond, logger)

	order, err := orders.CreateDraft(ctx, uuid.New(), 9900, "EUR")
	require.NoError(t, err)
	gateway.Script(payment.OutcomePending)
	_, err = orders.Checkout(ctx, order.TrackingNumber)
	require.NoError(t, err)

	require.NoError(t, w.Process(ctx))

	status, err := orders.StatusByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaymentInitiated, status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
