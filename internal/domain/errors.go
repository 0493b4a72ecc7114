package domain

import "errors"

var (
	// ErrInvalidTrackingNumber marks malformed input that must never
	// reach the state machine.
	ErrInvalidTrackingNumber = errors.New("invalid tracking number")

	// ErrUnrecognizedCallback marks a gateway event that cannot be tied
	// to any known reference. The event is discarded without a transition.
	ErrUnrecognizedCallback = errors.New("unrecognized gateway callback")

	// ErrGatewayUnavailable is surfaced only after initiate retries are
	// exhausted.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	ErrOrderNotFound = errors.New("order not found")
)
