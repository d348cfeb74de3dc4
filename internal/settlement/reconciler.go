package settlement

import (
	"context"
	"time"

	"storefront-be/internal/gateway"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"

	"go.uber.org/zap"
)

const sweepBatchSize = 50

// Reconciler detects orders stuck after gateway registration: a remote
// order exists but the confirmation callback never arrived (client crashed,
// request aborted mid-transition). It re-queries the gateway and applies
// the capture when one happened.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	staleAge time.Duration
}

func NewReconciler(svc *Service, interval, staleAge time.Duration) *Reconciler {
	return &Reconciler{
		svc:      svc,
		interval: interval,
		staleAge: staleAge,
	}
}

// Run sweeps on a ticker until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	log := logger.L().With(zap.String("layer", "reconciler"))
	log.Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("stale_age", r.staleAge),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep processes one batch of stale registered orders.
func (r *Reconciler) Sweep(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "reconciler"))

	stale, err := r.svc.orders.ListStaleRegistered(ctx, r.staleAge, sweepBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	log.Info("reconciling stale orders", zap.Int("count", len(stale)))

	for _, o := range stale {
		if err := r.reconcileOrder(ctx, o); err != nil {
			// One unreachable order must not stall the batch.
			log.Error("failed to reconcile order",
				zap.Uint("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOrder(ctx context.Context, o *order.Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "reconciler"),
		zap.Uint("order_id", o.ID),
		zap.String("gateway_order_ref", o.GatewayOrderRef.String),
	)

	payments, err := r.svc.gw.FetchOrderPayments(ctx, o.GatewayOrderRef.String)
	if err != nil {
		return err
	}

	var captured *gateway.Payment
	for i := range payments {
		if payments[i].Status == gateway.StatusCaptured {
			captured = &payments[i]
			break
		}
	}
	if captured == nil {
		log.Debug("no captured payment on gateway, leaving order for next sweep")
		return nil
	}

	// Same capture path as a confirmed callback. The fetch above is our
	// own authenticated round-trip, so there is no client signature to
	// store alongside the payment ref.
	applied, err := r.svc.orders.MarkPaid(ctx, o.ID, captured.Ref, "")
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	log.Info("orphaned capture recovered",
		zap.String("gateway_payment_ref", captured.Ref),
		zap.Int64("amount_minor", captured.AmountMinor),
	)

	r.svc.recordAttempt(ctx, o.ID, ConfirmRequest{
		GatewayOrderRef:   o.GatewayOrderRef.String,
		GatewayPaymentRef: captured.Ref,
	}, captured.Status, captured.AmountMinor)

	if err := r.svc.invoiceOrder(ctx, o); err != nil {
		log.Error("invoice creation failed during reconciliation", zap.Error(err))
	}
	if err := r.svc.carts.Clear(ctx, o.OwnerID); err != nil {
		log.Error("cart clear failed during reconciliation", zap.Error(err))
	}
	return nil
}
