package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome scripts one mock charge attempt.
type Outcome int

const (
	// OutcomeApprove charges and returns success.
	OutcomeApprove Outcome = iota
	// OutcomeDecline refuses the card.
	OutcomeDecline
	// OutcomeNetwork fails before the gateway saw anything.
	OutcomeNetwork
	// OutcomePhantom charges the money but returns a timeout, the case
	// the reconciliation worker exists for.
	OutcomePhantom
	// OutcomePending accepts the charge but leaves it unsettled.
	OutcomePending
)

var errConnectionTimeout = errors.New("connection timeout")

// MockGateway stands in for the processor in tests and the simulator.
// Charges are deduplicated by external reference, so a retried attempt
// that already went through does not charge twice. With an empty script
// every attempt approves; Randomize picks outcomes by chance instead.
type MockGateway struct {
	mu        sync.RWMutex
	charges   map[string]string // external reference -> gateway status
	script    []Outcome
	Randomize bool
	// Latency is applied to scripted non-network outcomes when set.
	Latency time.Duration
}

func NewMockGateway() *MockGateway {
	return &MockGateway{charges: make(map[string]string)}
}

// Script queues outcomes for upcoming CreateCharge calls.
func (g *MockGateway) Script(outcomes ...Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = append(g.script, outcomes...)
}

func (g *MockGateway) next() Outcome {
	if len(g.script) > 0 {
		out := g.script[0]
		g.script = g.script[1:]
		return out
	}
	if g.Randomize {
		chance := rand.IntN(100)
		switch {
		case chance < 65:
			return OutcomeApprove
		case chance < 80:
			return OutcomeDecline
		case chance < 90:
			return OutcomePending
		default:
			return OutcomePhantom
		}
	}
	return OutcomeApprove
}

func (g *MockGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Idempotency: a reference the gateway already settled keeps its
	// original result on retry.
	if status, exists := g.charges[req.ExternalReference]; exists {
		return &ChargeResponse{
			TransactionID: g.txnID(req.ExternalReference),
			RedirectURL:   "https://fastpay.test/pay/" + req.ExternalReference,
			Status:        status,
		}, nil
	}

	if g.Latency > 0 {
		time.Sleep(g.Latency)
	}

	switch g.next() {
	case OutcomeApprove:
		g.charges[req.ExternalReference] = "approved"
	case OutcomeDecline:
		g.charges[req.ExternalReference] = "rejected"
	case OutcomePending:
		g.charges[req.ExternalReference] = "pending"
	case OutcomeNetwork:
		return nil, errConnectionTimeout
	case OutcomePhantom:
		// The money moved but the caller sees a timeout.
		g.charges[req.ExternalReference] = "approved"
		return nil, errConnectionTimeout
	}

	return &ChargeResponse{
		TransactionID: g.txnID(req.ExternalReference),
		RedirectURL:   "https://fastpay.test/pay/" + req.ExternalReference,
		Status:        g.charges[req.ExternalReference],
	}, nil
}

func (g *MockGateway) ChargeStatus(ctx context.Context, externalReference string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if status, exists := g.charges[externalReference]; exists {
		return status, nil
	}
	// The gateway never saw this reference.
	return "rejected", nil
}

// Settle overrides a reference's status, standing in for asynchronous
// settlement on the processor side.
func (g *MockGateway) Settle(externalReference, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[externalReference] = status
}

func (g *MockGateway) txnID(externalReference string) string {
	return "mock-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(externalReference)).String()
}
