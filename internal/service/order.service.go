package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/events"
	"atelier-checkout/internal/infrastructure/payment"
	"atelier-checkout/internal/repo"
	"atelier-checkout/internal/tracking"
)

// ErrNotResumable marks a checkout attempt on an order that already
// left the draft/payment_initiated phase.
var ErrNotResumable = errors.New("checkout cannot be resumed")

// ApplyResult reports whether a transition was applied and what the
// order's status is afterwards. A stale or duplicated event yields
// Applied=false with the standing status, which is not an error.
type ApplyResult struct {
	Applied         bool
	ResultingStatus domain.OrderStatus
}

// Invalidator drops cached copies of an order after a write commits.
type Invalidator interface {
	InvalidateAll(key string)
}

type OrderService interface {
	CreateDraft(ctx context.Context, userID uuid.UUID, amountMinor int64, currency string) (*domain.Order, error)
	Checkout(ctx context.Context, trackingNumber string) (*payment.InitiateResult, error)
	HandleCallback(ctx context.Context, event domain.GatewayEvent) (ApplyResult, error)
	Apply(ctx context.Context, orderID uuid.UUID, incoming domain.OrderStatus, eventID string) (ApplyResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (ApplyResult, error)
	StatusByOrderID(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error)
	StatusByReference(ctx context.Context, ref string) (uuid.UUID, domain.OrderStatus, error)
	Transitions(ctx context.Context, orderID uuid.UUID) ([]domain.Transition, error)
}

type orderService struct {
	store       repo.Store
	issuer      *tracking.Issuer
	adapter     *payment.Adapter
	publisher   events.Publisher
	invalidator Invalidator
	logger      *zap.Logger
}

func NewOrderService(
	store repo.Store,
	issuer *tracking.Issuer,
	adapter *payment.Adapter,
	publisher events.Publisher,
	invalidator Invalidator,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:       store,
		issuer:      issuer,
		adapter:     adapter,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

// CreateDraft mints a tracking number and records the order before any
// payment exists.
func (s *orderService) CreateDraft(ctx context.Context, userID uuid.UUID, amountMinor int64, currency string) (*domain.Order, error) {
	now := time.Now()
	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         userID,
		TrackingNumber: s.issuer.Issue(),
		AmountMinor:    amountMinor,
		Currency:       currency,
		Status:         domain.OrderDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, st repo.Store) error {
		return st.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return order, nil
}

// Checkout starts (or restarts) a charge for the order behind the
// tracking number. A fresh attempt is allowed while the order is draft
// or payment_initiated; anything later is not resumable.
func (s *orderService) Checkout(ctx context.Context, trackingNumber string) (*payment.InitiateResult, error) {
	if !s.issuer.Validate(trackingNumber) {
		return nil, domain.ErrInvalidTrackingNumber
	}

	order, err := s.store.Orders().FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderDraft && order.Status != domain.OrderPaymentInitiated {
		return nil, fmt.Errorf("%w: order is %s", ErrNotResumable, order.Status)
	}

	// Mark the attempt before calling out. If the gateway times out
	// after charging (a phantom charge), the order sits in
	// payment_initiated where the reconciliation sweep can find it.
	// The event id is stable per order, so retried checkouts no-op.
	if _, err := s.Apply(ctx, order.ID, domain.OrderPaymentInitiated, "checkout-"+trackingNumber); err != nil {
		return nil, err
	}

	result, err := s.adapter.Initiate(ctx, order)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HandleCallback ties a gateway event to an order and applies the
// mapped status. The reference may be a tracking number (wallet flows,
// no order id at the gateway yet) or the order id itself.
func (s *orderService) HandleCallback(ctx context.Context, event domain.GatewayEvent) (ApplyResult, error) {
	order, err := s.orderByReference(ctx, event.Reference)
	if err != nil {
		return ApplyResult{}, err
	}

	canonical := s.adapter.Reconcile(event)
	result, err := s.Apply(ctx, order.ID, canonical, event.EventID())
	if err != nil {
		return ApplyResult{}, err
	}

	if err := s.settlePayment(ctx, order.ID, event, canonical); err != nil {
		s.logger.Error("settle payment after callback",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
	return result, nil
}

func (s *orderService) orderByReference(ctx context.Context, ref string) (*domain.Order, error) {
	p, err := s.store.Payments().FindByExternalReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p != nil {
		order, err := s.store.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}

	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		order, err := s.store.Orders().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: reference %q matches nothing", domain.ErrUnrecognizedCallback, ref)
}

func (s *orderService) settlePayment(ctx context.Context, orderID uuid.UUID, event domain.GatewayEvent, canonical domain.OrderStatus) error {
	p, err := s.store.Payments().FindLatestByOrder(ctx, orderID)
	if err != nil || p == nil {
		return err
	}
	// Terminal payments are immutable.
	if p.Status == domain.PaymentSucceeded || p.Status == domain.PaymentFailed {
		return nil
	}

	switch canonical {
	case domain.OrderApproved:
		p.Status = domain.PaymentSucceeded
	case domain.OrderRejected:
		p.Status = domain.PaymentFailed
	default:
		p.Status = domain.PaymentProcessing
	}
	if event.TransactionID != "" {
		p.GatewayTxnID = event.TransactionID
	}
	p.UpdatedAt = time.Now()
	return s.store.Payments().Update(ctx, p)
}

// Apply moves the order to incoming if the transition-monotonicity rule
// allows it, atomically relative to reads of the same order. A repeated
// event id returns the standing status without a second audit row.
func (s *orderService) Apply(ctx context.Context, orderID uuid.UUID, incoming domain.OrderStatus, eventID string) (ApplyResult, error) {
	var result ApplyResult
	var applied *domain.Transition

	err := s.store.WithinTx(ctx, func(ctx context.Context, st repo.Store) error {
		// Take the row lock before reading anything, so two callbacks
		// racing on the same order serialize here and the loser sees
		// the winner's committed status and audit row.
		order, err := st.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}

		seen, err := st.Transitions().FindByEventID(ctx, orderID, eventID)
		if err != nil {
			return err
		}
		if seen != nil {
			result = ApplyResult{Applied: false, ResultingStatus: order.Status}
			return nil
		}

		if !domain.Advances(order.Status, incoming) {
			s.logger.Info("stale transition ignored",
				zap.String("order_id", orderID.String()),
				zap.String("event_id", eventID),
				zap.String("current", string(order.Status)),
				zap.String("incoming", string(incoming)))
			result = ApplyResult{Applied: false, ResultingStatus: order.Status}
			return nil
		}

		tr := &domain.Transition{
			ID:      uuid.New(),
			OrderID: orderID,
			EventID: eventID,
			From:    order.Status,
			To:      incoming,
			At:      time.Now(),
		}
		order.Status = incoming
		order.UpdatedAt = tr.At

		if err := st.Orders().UpdateStatus(ctx, order); err != nil {
			return err
		}
		if err := st.Transitions().Insert(ctx, tr); err != nil {
			return err
		}

		applied = tr
		result = ApplyResult{Applied: true, ResultingStatus: incoming}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	if applied != nil {
		s.logger.Info("order transition applied",
			zap.String("order_id", applied.OrderID.String()),
			zap.String("event_id", applied.EventID),
			zap.String("from", string(applied.From)),
			zap.String("to", string(applied.To)))
		s.publisher.PublishTransition(events.TransitionEvent{
			OrderID: applied.OrderID.String(),
			EventID: applied.EventID,
			From:    string(applied.From),
			To:      string(applied.To),
			At:      applied.At,
		})
		s.invalidator.InvalidateAll("order:" + applied.OrderID.String())
	}
	return result, nil
}

// Cancel records a user abandoning checkout. The event id is derived
// from the order id, so repeated cancel clicks collapse to one entry. A
// late gateway approval may still override the cancellation.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID) (ApplyResult, error) {
	return s.Apply(ctx, orderID, domain.OrderCancelled, "user-cancel-"+orderID.String())
}

func (s *orderService) StatusByOrderID(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", domain.ErrOrderNotFound
	}
	return order.Status, nil
}

// StatusByReference resolves a tracking number through the payment's
// external reference, falling back to the order's own tracking column
// for drafts that never reached the gateway.
func (s *orderService) StatusByReference(ctx context.Context, ref string) (uuid.UUID, domain.OrderStatus, error) {
	p, err := s.store.Payments().FindByExternalReference(ctx, ref)
	if err != nil {
		return uuid.Nil, "", err
	}
	if p != nil {
		status, err := s.StatusByOrderID(ctx, p.OrderID)
		return p.OrderID, status, err
	}

	order, err := s.store.Orders().FindByTrackingNumber(ctx, ref)
	if err != nil {
		return uuid.Nil, "", err
	}
	if order == nil {
		return uuid.Nil, "", domain.ErrOrderNotFound
	}
	return order.ID, order.Status, nil
}

func (s *orderService) Transitions(ctx context.Context, orderID uuid.UUID) ([]domain.Transition, error) {
	return s.store.Transitions().ListByOrder(ctx, orderID)
}
