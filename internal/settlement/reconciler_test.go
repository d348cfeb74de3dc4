package settlement

import (
	"context"
	"testing"
	"time"

	"storefront-be/internal/fault"
	"storefront-be/internal/gateway"
	"storefront-be/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReconciler_Sweep(t *testing.T) {
	ctx := context.Background()
	staleAge := 10 * time.Minute

	t.Run("RecoversOrphanedCapture", func(t *testing.T) {
		f := newFixture()
		rec := NewReconciler(f.service(gateway.VerifyStrict), time.Minute, staleAge)
		o := registeredOrder()

		f.orders.On("ListStaleRegistered", ctx, staleAge, sweepBatchSize).
			Return([]*order.Order{o}, nil)
		f.gw.On("FetchOrderPayments", ctx, "order_A1").Return([]gateway.Payment{
			{Ref: "pay_fail", OrderRef: "order_A1", Status: gateway.StatusFailed},
			{Ref: "pay_ok", OrderRef: "order_A1", Status: gateway.StatusCaptured, AmountMinor: 20000},
		}, nil)
		f.orders.On("MarkPaid", ctx, uint(10), "pay_ok", "").Return(true, nil)
		f.pays.On("RecordAttempt", ctx, mock.Anything).Return(nil)
		// The recovered order carries its full line set, so the invoice
		// must itemize every line, not just the total.
		f.gw.On("CreateInvoice", ctx, mock.MatchedBy(func(req gateway.InvoiceRequest) bool {
			return len(req.Lines) == 2 &&
				req.Lines[0].AmountMinor == 5000 &&
				req.Lines[1].AmountMinor == 10000
		})).Return("inv_R1", nil)
		f.docs.On("Generate", ctx, o).Return("doc", nil)
		f.orders.On("SetInvoiceRefs", ctx, uint(10), "inv_R1", "doc").Return(nil)
		f.carts.On("Clear", ctx, uint(1)).Return(nil)

		err := rec.Sweep(ctx)
		assert.NoError(t, err)
		f.orders.AssertExpectations(t)
		f.carts.AssertNumberOfCalls(t, "Clear", 1)
	})

	t.Run("LeavesOrderWithoutCaptureForNextSweep", func(t *testing.T) {
		f := newFixture()
		rec := NewReconciler(f.service(gateway.VerifyStrict), time.Minute, staleAge)

		f.orders.On("ListStaleRegistered", ctx, staleAge, sweepBatchSize).
			Return([]*order.Order{registeredOrder()}, nil)
		f.gw.On("FetchOrderPayments", ctx, "order_A1").Return([]gateway.Payment{
			{Ref: "pay_auth", OrderRef: "order_A1", Status: gateway.StatusAuthorized},
		}, nil)

		err := rec.Sweep(ctx)
		assert.NoError(t, err)
		f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	})

	t.Run("GatewayErrorOnOneOrderDoesNotStallBatch", func(t *testing.T) {
		f := newFixture()
		rec := NewReconciler(f.service(gateway.VerifyStrict), time.Minute, staleAge)

		first := registeredOrder()
		second := registeredOrder()
		second.ID = 11
		second.GatewayOrderRef = nullStr("order_A2")

		f.orders.On("ListStaleRegistered", ctx, staleAge, sweepBatchSize).
			Return([]*order.Order{first, second}, nil)
		f.gw.On("FetchOrderPayments", ctx, "order_A1").
			Return(nil, fault.New(fault.KindGatewayUnavailable, "gateway timeout"))
		f.gw.On("FetchOrderPayments", ctx, "order_A2").Return([]gateway.Payment{}, nil)

		err := rec.Sweep(ctx)
		assert.NoError(t, err)
		f.gw.AssertNumberOfCalls(t, "FetchOrderPayments", 2)
	})

	t.Run("ConcurrentCaptureSkipsSideEffects", func(t *testing.T) {
		f := newFixture()
		rec := NewReconciler(f.service(gateway.VerifyStrict), time.Minute, staleAge)

		f.orders.On("ListStaleRegistered", ctx, staleAge, sweepBatchSize).
			Return([]*order.Order{registeredOrder()}, nil)
		f.gw.On("FetchOrderPayments", ctx, "order_A1").Return([]gateway.Payment{
			{Ref: "pay_ok", OrderRef: "order_A1", Status: gateway.StatusCaptured, AmountMinor: 20000},
		}, nil)
		f.orders.On("MarkPaid", ctx, uint(10), "pay_ok", "").Return(false, nil)

		err := rec.Sweep(ctx)
		assert.NoError(t, err)
		f.gw.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
		f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	})
}
