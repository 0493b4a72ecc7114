// Simulates checkouts against the mock gateway with injected declines,
// pending settlements and phantom charges, then lets the reconciliation
// worker sweep up what the callbacks missed.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
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

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	store := repo.NewMemoryStore()
	issuer := tracking.NewIssuer()
	caches := cache.NewRegistry(60 * time.Second)
	gateway := payment.NewMockGateway()
	gateway.Randomize = true
	adapter := payment.NewAdapter(gateway, store, logger)
	orders := service.NewOrderService(store, issuer, adapter, events.Nop(), caches, logger)

	var unsettled []string

	fmt.Println("--- STARTING SIMULATION (20 ORDERS) ---")
	for i := 0; i < 20; i++ {
		order, err := orders.CreateDraft(ctx, uuid.New(), int64(1000+i*250), "EUR")
		if err != nil {
			log.Printf("create failed: %v", err)
			continue
		}

		fmt.Printf("[%d] Checkout %s ... ", i+1, order.TrackingNumber)
		result, err := orders.Checkout(ctx, order.TrackingNumber)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			fmt.Printf("redirect -> %s\n", result.RedirectURL)
			// The happy path gets its callback; failures and phantom
			// charges stay for the worker to find.
			status, _ := gateway.ChargeStatus(ctx, order.TrackingNumber)
			if status == "approved" || status == "rejected" {
				_, _ = orders.HandleCallback(ctx, domain.GatewayEvent{
					Reference:     order.TrackingNumber,
					GatewayStatus: status,
				})
			} else {
				unsettled = append(unsettled, order.TrackingNumber)
			}
		}

		current, _ := orders.StatusByOrderID(ctx, order.ID)
		fmt.Printf("    -> status: %s\n", current)
		fmt.Println("---------------------------------------------------")
		time.Sleep(50 * time.Millisecond)
	}

	// The processor settles the transactions that stayed pending; no
	// webhook arrives for them, so only the worker can catch up.
	for i, tn := range unsettled {
		if i%2 == 0 {
			gateway.Settle(tn, "approved")
		} else {
			gateway.Settle(tn, "rejected")
		}
	}

	fmt.Println("--- RECONCILING STUCK ORDERS ---")
	reconciler := worker.NewReconciliationWorker(store, gateway, orders, 0, time.Second, logger)
	if err := reconciler.Process(ctx); err != nil {
		log.Printf("reconciliation failed: %v", err)
	}
}
