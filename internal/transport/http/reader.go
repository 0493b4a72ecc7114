package http

import (
	"context"

	"github.com/google/uuid"

	"atelier-checkout/internal/cache"
	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/service"
)

// cachedReader serves status reads through a session cache. Reference
// lookups cache only the stable reference-to-order binding, so a
// transition invalidating "order:<id>" clears every path to the status.
type cachedReader struct {
	svc     service.OrderService
	session *cache.Session
}

func (r cachedReader) StatusByOrderID(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error) {
	v, err := r.session.GetOrFetch("order:"+orderID.String(), func() (any, error) {
		status, err := r.svc.StatusByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return status, nil
	})
	if err != nil {
		return "", err
	}
	return v.(domain.OrderStatus), nil
}

func (r cachedReader) StatusByReference(ctx context.Context, ref string) (uuid.UUID, domain.OrderStatus, error) {
	v, err := r.session.GetOrFetch("ref:"+ref, func() (any, error) {
		orderID, _, err := r.svc.StatusByReference(ctx, ref)
		if err != nil {
			return nil, err
		}
		return orderID, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	orderID := v.(uuid.UUID)
	status, err := r.StatusByOrderID(ctx, orderID)
	return orderID, status, err
}
