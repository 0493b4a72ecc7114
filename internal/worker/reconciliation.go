package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"atelier-checkout/internal/domain"
	"atelier-checkout/internal/infrastructure/payment"
	"atelier-checkout/internal/repo"
	"atelier-checkout/internal/service"
)

// ReconciliationWorker sweeps orders stuck in payment_initiated or
// pending, asks the gateway what actually happened, and feeds the
// answer through the state machine. It exists for the case where money
// moved but the initiate call saw a timeout.
type ReconciliationWorker struct {
	store     repo.Store
	gateway   payment.Gateway
	orders    service.OrderService
	threshold time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

func NewReconciliationWorker(
	store repo.Store,
	gateway payment.Gateway,
	orders service.OrderService,
	threshold time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		store:     store,
		gateway:   gateway,
		orders:    orders,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rw.Process(ctx); err != nil {
				rw.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Process runs one sweep. Transitions go through HandleCallback, so a
// sweep and a real webhook reporting the same transaction state
// deduplicate against each other.
func (rw *ReconciliationWorker) Process(ctx context.Context) error {
	stuck, err := rw.store.Orders().FindStuck(ctx, rw.threshold)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	rw.logger.Info("found stuck orders", zap.Int("count", len(stuck)))

	for _, order := range stuck {
		p, err := rw.store.Payments().FindLatestByOrder(ctx, order.ID)
		if err != nil {
			rw.logger.Error("load payment for stuck order",
				zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}
		if p == nil {
			// payment_initiated with no payment row should not happen;
			// leave it for inspection rather than guessing.
			rw.logger.Warn("stuck order has no payment",
				zap.String("order_id", order.ID.String()))
			continue
		}

		gatewayStatus, err := rw.gateway.ChargeStatus(ctx, p.ExternalReference)
		if err != nil {
			// Transient; next sweep retries.
			rw.logger.Warn("gateway status check failed",
				zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}

		result, err := rw.orders.HandleCallback(ctx, domain.GatewayEvent{
			Reference:     p.ExternalReference,
			GatewayStatus: gatewayStatus,
			TransactionID: p.GatewayTxnID,
		})
		if err != nil {
			rw.logger.Error("reconcile stuck order",
				zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}
		if result.Applied {
			rw.logger.Info("stuck order reconciled",
				zap.String("order_id", order.ID.String()),
				zap.String("status", string(result.ResultingStatus)))
		}
	}
	return nil
}
