package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

// memoryStore backs the unit tests and the checkout simulator. A single
// lock guards all maps; WithinTx serializes whole transactions, which
// matches the store contract closely enough for single-process use.
type memoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	orders      map[uuid.UUID]domain.Order
	byTracking  map[string]uuid.UUID
	payments    map[uuid.UUID]domain.Payment
	paymentSeq  []uuid.UUID
	transitions []domain.Transition
}

func NewMemoryStore() Store {
	return &memoryStore{
		orders:     make(map[uuid.UUID]domain.Order),
		byTracking: make(map[string]uuid.UUID),
		payments:   make(map[uuid.UUID]domain.Payment),
	}
}

func (s *memoryStore) Orders() OrderRepo           { return (*memOrderRepo)(s) }
func (s *memoryStore) Payments() PaymentRepo       { return (*memPaymentRepo)(s) }
func (s *memoryStore) Transitions() TransitionRepo { return (*memTransitionRepo)(s) }

func (s *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, s)
}

type memOrderRepo memoryStore

func (r *memOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	r.byTracking[order.TrackingNumber] = order.ID
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

// LockByID matches FindByID; WithinTx already serializes whole
// transactions here, so no per-row lock is needed.
func (r *memOrderRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrderRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTracking[trackingNumber]
	if !ok {
		return nil, nil
	}
	order := r.orders[id]
	return &order, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return nil
	}
	stored.Status = order.Status
	stored.UpdatedAt = order.UpdatedAt
	r.orders[order.ID] = stored
	return nil
}

func (r *memOrderRepo) FindStuck(ctx context.Context, olderThan time.Duration) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().Add(-olderThan)
	var stuck []domain.Order
	for _, order := range r.orders {
		if (order.Status == domain.OrderPaymentInitiated || order.Status == domain.OrderPending) &&
			order.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, order)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].CreatedAt.Before(stuck[j].CreatedAt) })
	return stuck, nil
}

type memPaymentRepo memoryStore

func (r *memPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = *payment
	r.paymentSeq = append(r.paymentSeq, payment.ID)
	return nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPaymentRepo) FindByExternalReference(ctx context.Context, ref string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest(func(p domain.Payment) bool { return p.ExternalReference == ref }), nil
}

func (r *memPaymentRepo) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest(func(p domain.Payment) bool { return p.OrderID == orderID }), nil
}

// latest walks creation order backwards; callers hold the lock.
func (r *memPaymentRepo) latest(match func(domain.Payment) bool) *domain.Payment {
	for i := len(r.paymentSeq) - 1; i >= 0; i-- {
		p := r.payments[r.paymentSeq[i]]
		if match(p) {
			return &p
		}
	}
	return nil
}

func (r *memPaymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[payment.ID]
	if !ok {
		return nil
	}
	stored.Status = payment.Status
	stored.GatewayTxnID = payment.GatewayTxnID
	stored.UpdatedAt = payment.UpdatedAt
	r.payments[payment.ID] = stored
	return nil
}

type memTransitionRepo memoryStore

func (r *memTransitionRepo) Insert(ctx context.Context, tr *domain.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, *tr)
	return nil
}

func (r *memTransitionRepo) FindByEventID(ctx context.Context, orderID uuid.UUID, eventID string) (*domain.Transition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.transitions {
		if r.transitions[i].OrderID == orderID && r.transitions[i].EventID == eventID {
			tr := r.transitions[i]
			return &tr, nil
		}
	}
	return nil, nil
}

func (r *memTransitionRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Transition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var trs []domain.Transition
	for _, tr := range r.transitions {
		if tr.OrderID == orderID {
			trs = append(trs, tr)
		}
	}
	return trs, nil
}
