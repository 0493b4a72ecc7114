// Package router decides which page a checkout request lands on. It is
// pure routing over store reads: no rendering, no transition logic.
package router

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	"atelier-checkout/internal/domain"
)

type Page string

const (
	PageSuccess Page = "success"
	PageFailure Page = "failure"
	PagePending Page = "pending"
	// PageUnknown is the terminal page for identifiers that match
	// nothing. It is distinct from failure: it must never imply the
	// shopper's money was affected.
	PageUnknown Page = "unknown"
)

type RouteTarget struct {
	Page Page
	Path string
}

// Identifiers is whatever the requesting context could supply; any
// subset may be empty.
type Identifiers struct {
	OrderID        string
	TrackingNumber string
	GatewayQuery   url.Values
}

// StatusReader is the read side the resolver consults; a session cache
// usually sits in front of the store here.
type StatusReader interface {
	StatusByOrderID(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error)
	// StatusByReference also reports the order id the reference
	// resolved to, when one exists.
	StatusByReference(ctx context.Context, ref string) (uuid.UUID, domain.OrderStatus, error)
}

// Validator checks tracking-number format without a lookup.
type Validator interface {
	Validate(candidate string) bool
}

type Resolver struct {
	reader    StatusReader
	validator Validator
}

func NewResolver(reader StatusReader, validator Validator) *Resolver {
	return &Resolver{reader: reader, validator: validator}
}

var unknownTarget = RouteTarget{Page: PageUnknown, Path: "/checkout/unknown"}

// ResolveLanding maps the available identifiers to a landing route. An
// order id wins when present; otherwise the tracking number resolves
// through the payment's external reference (wallet-style flows where
// the gateway never returned an order id). Unresolvable input lands on
// the unknown-checkout page, never an error.
func (r *Resolver) ResolveLanding(ctx context.Context, ids Identifiers) (RouteTarget, error) {
	if ids.OrderID != "" {
		orderID, err := uuid.Parse(ids.OrderID)
		if err != nil {
			return unknownTarget, nil
		}
		status, err := r.reader.StatusByOrderID(ctx, orderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return unknownTarget, nil
		}
		if err != nil {
			return RouteTarget{}, err
		}
		return targetForStatus(status, "/"+ids.OrderID), nil
	}

	ref := ids.TrackingNumber
	if ref == "" && ids.GatewayQuery != nil {
		ref = ids.GatewayQuery.Get("external_reference")
	}
	if ref == "" || !r.validator.Validate(ref) {
		return unknownTarget, nil
	}

	orderID, status, err := r.reader.StatusByReference(ctx, ref)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return unknownTarget, nil
	}
	if err != nil {
		return RouteTarget{}, err
	}
	// Success is always keyed by order id; the reference-keyed forms
	// exist for the interim and failure pages of wallet flows.
	if status == domain.OrderApproved {
		return targetForStatus(status, "/"+orderID.String()), nil
	}
	return targetForStatus(status, "?external_reference="+url.QueryEscape(ref)), nil
}

func targetForStatus(status domain.OrderStatus, suffix string) RouteTarget {
	switch status {
	case domain.OrderApproved:
		return RouteTarget{Page: PageSuccess, Path: "/checkout/success" + suffix}
	case domain.OrderRejected, domain.OrderCancelled:
		return RouteTarget{Page: PageFailure, Path: "/checkout/failure" + suffix}
	default:
		// draft, payment_initiated and pending all wait.
		return RouteTarget{Page: PagePending, Path: "/checkout/pending" + suffix}
	}
}
