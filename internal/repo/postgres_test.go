package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"atelier-checkout/internal/database"
	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/repo"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("checkout"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func newOrder(status domain.OrderStatus) *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		TrackingNumber: "TN-" + uuid.NewString(),
		AmountMinor:    7500,
		Currency:       "EUR",
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSQLStoreOrders(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := repo.NewSQLStore(db)

	order := newOrder(domain.OrderDraft)
	require.NoError(t, store.Orders().Create(ctx, order))

	found, err := store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.TrackingNumber, found.TrackingNumber)
	assert.Equal(t, domain.OrderDraft, found.Status)

	byTN, err := store.Orders().FindByTrackingNumber(ctx, order.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, byTN)
	assert.Equal(t, order.ID, byTN.ID)

	missing, err := store.Orders().FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	order.Status = domain.OrderPaymentInitiated
	order.UpdatedAt = time.Now().UTC().Add(-5 * time.Minute)
	require.NoError(t, store.Orders().UpdateStatus(ctx, order))

	stuck, err := store.Orders().FindStuck(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, order.ID, stuck[0].ID)
}

func TestSQLStorePaymentsAndTransitions(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := repo.NewSQLStore(db)

	order := newOrder(domain.OrderPaymentInitiated)
	require.NoError(t, store.Orders().Create(ctx, order))

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &domain.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ExternalReference: order.TrackingNumber,
		AmountMinor:       order.AmountMinor,
		Currency:          order.Currency,
		Status:            domain.PaymentInitiated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, store.Payments().Create(ctx, p))

	byRef, err := store.Payments().FindByExternalReference(ctx, order.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, p.ID, byRef.ID)

	p.Status = domain.PaymentProcessing
	p.GatewayTxnID = "txn-77"
	p.UpdatedAt = now.Add(time.Second)
	require.NoError(t, store.Payments().Update(ctx, p))

	latest, err := store.Payments().FindLatestByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.PaymentProcessing, latest.Status)
	assert.Equal(t, "txn-77", latest.GatewayTxnID)

	tr := &domain.Transition{
		ID:      uuid.New(),
		OrderID: order.ID,
		EventID: "gw-txn-77-approved",
		From:    domain.OrderPaymentInitiated,
		To:      domain.OrderApproved,
		At:      now,
	}
	require.NoError(t, store.Transitions().Insert(ctx, tr))

	// The unique (order_id, event_id) pair backs Apply's idempotence.
	dup := *tr
	dup.ID = uuid.New()
	assert.Error(t, store.Transitions().Insert(ctx, &dup))

	seen, err := store.Transitions().FindByEventID(ctx, order.ID, tr.EventID)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, domain.OrderApproved, seen.To)

	list, err := store.Transitions().ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// Two transactions read-then-write the same order. Without the row
// lock both would read the pre-state and the regressive write could
// commit last; LockByID must make the second reader wait and then see
// the first writer's committed status.
func TestLockByIDSerializesConcurrentWriters(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := repo.NewSQLStore(db)

	order := newOrder(domain.OrderPaymentInitiated)
	require.NoError(t, store.Orders().Create(ctx, order))

	locked := make(chan struct{})
	release := make(chan struct{})
	writer := make(chan error, 1)

	go func() {
		writer <- store.WithinTx(ctx, func(ctx context.Context, st repo.Store) error {
			o, err := st.Orders().LockByID(ctx, order.ID)
			if err != nil {
				return err
			}
			close(locked)
			<-release
			o.Status = domain.OrderApproved
			o.UpdatedAt = time.Now().UTC()
			return st.Orders().UpdateStatus(ctx, o)
		})
	}()

	<-locked
	var observed domain.OrderStatus
	reader := make(chan error, 1)
	go func() {
		reader <- store.WithinTx(ctx, func(ctx context.Context, st repo.Store) error {
			o, err := st.Orders().LockByID(ctx, order.ID)
			if err != nil {
				return err
			}
			observed = o.Status
			return nil
		})
	}()

	select {
	case err := <-reader:
		t.Fatalf("second transaction did not wait for the row lock: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-writer)
	require.NoError(t, <-reader)
	assert.Equal(t, domain.OrderApproved, observed,
		"locking reader must see the status committed by the writer it waited on")
}

func TestSQLStoreWithinTxRollsBack(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := repo.NewSQLStore(db)

	order := newOrder(domain.OrderDraft)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, st repo.Store) error {
		if err := st.Orders().Create(ctx, order); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "rolled-back insert must not be visible")
}
