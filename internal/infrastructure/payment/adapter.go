package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/repo"
)

// InitiateResult is what checkout needs to send the shopper to the
// processor: where to redirect them and the reference the gateway will
// echo back.
type InitiateResult struct {
	RedirectURL       string
	ExternalReference string
	PaymentID         uuid.UUID
}

// Adapter wraps the raw Gateway with this system's semantics: a payment
// row per initiate, bounded retries, callback validation and the
// canonical status mapping.
type Adapter struct {
	gateway Gateway
	store   repo.Store
	logger  *zap.Logger

	retryInitial time.Duration
	maxRetries   uint64
	returnURL    string
}

type AdapterOption func(*Adapter)

// WithRetryPolicy overrides the initiate retry schedule.
func WithRetryPolicy(initial time.Duration, maxRetries uint64) AdapterOption {
	return func(a *Adapter) {
		a.retryInitial = initial
		a.maxRetries = maxRetries
	}
}

// WithSiteURL sets the public storefront URL; every charge request
// then carries an absolute return URL pointing at the gateway
// callback endpoint, so the processor can send the shopper back.
func WithSiteURL(siteURL string) AdapterOption {
	return func(a *Adapter) {
		a.returnURL = strings.TrimSuffix(siteURL, "/") + "/callbacks/gateway"
	}
}

func NewAdapter(gateway Gateway, store repo.Store, logger *zap.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		gateway:      gateway,
		store:        store,
		logger:       logger,
		retryInitial: 200 * time.Millisecond,
		maxRetries:   3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initiate starts a charge for the order. The payment row is created
// once, before the retry loop, so retries never produce duplicate rows.
// After retries exhaust the row stays initiated for the reconciler to
// settle; the caller gets ErrGatewayUnavailable.
func (a *Adapter) Initiate(ctx context.Context, order *domain.Order) (*InitiateResult, error) {
	now := time.Now()
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
	if err := a.store.Payments().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	var charge *ChargeResponse
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := a.gateway.CreateCharge(ctx, ChargeRequest{
			ExternalReference: p.ExternalReference,
			AmountMinor:       p.AmountMinor,
			Currency:          p.Currency,
			ReturnURL:         a.returnURL,
		})
		if err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(err)
			}
			a.logger.Warn("gateway initiate attempt failed",
				zap.String("external_reference", p.ExternalReference),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		charge = resp
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(a.retryInitial),
	), a.maxRetries)

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	p.GatewayTxnID = charge.TransactionID
	p.Status = domain.PaymentProcessing
	p.UpdatedAt = time.Now()
	if err := a.store.Payments().Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	return &InitiateResult{
		RedirectURL:       charge.RedirectURL,
		ExternalReference: p.ExternalReference,
		PaymentID:         p.ID,
	}, nil
}

// ParseCallback decodes gateway query parameters into a canonical
// event. Unknown extra parameters are tolerated; a missing reference or
// status makes the whole callback unrecognized and nothing downstream
// runs.
func (a *Adapter) ParseCallback(params url.Values) (domain.GatewayEvent, error) {
	ref := params.Get("external_reference")
	if ref == "" {
		return domain.GatewayEvent{}, fmt.Errorf("%w: missing external_reference", domain.ErrUnrecognizedCallback)
	}

	status := params.Get("status")
	if status == "" {
		status = params.Get("collection_status")
	}
	if status == "" {
		return domain.GatewayEvent{}, fmt.Errorf("%w: missing status", domain.ErrUnrecognizedCallback)
	}

	return domain.GatewayEvent{
		Reference:     ref,
		GatewayStatus: status,
		TransactionID: params.Get("payment_id"),
	}, nil
}

// Reconcile maps the gateway vocabulary onto canonical statuses. The
// mapping is total: an unknown status lands on pending and is logged so
// the order stays in play until a recognizable event arrives.
func (a *Adapter) Reconcile(event domain.GatewayEvent) domain.OrderStatus {
	switch event.GatewayStatus {
	case "approved":
		return domain.OrderApproved
	case "rejected":
		return domain.OrderRejected
	case "pending", "in_process":
		return domain.OrderPending
	case "refunded", "charged_back":
		// Post-approval adjustments. On an already-approved order the
		// terminal guard records these as stale no-ops.
		return domain.OrderRejected
	default:
		a.logger.Warn("unknown gateway status, treating as pending",
			zap.String("gateway_status", event.GatewayStatus),
			zap.String("external_reference", event.Reference))
		return domain.OrderPending
	}
}
