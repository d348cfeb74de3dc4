package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-be/internal/cart"
	"storefront-be/internal/fault"
	"storefront-be/internal/gateway"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	currency = "INR"
	provider = "RAZORPAY"
)

// DocumentGenerator renders and persists the invoice document for a
// settled order, returning the stored document ref.
type DocumentGenerator interface {
	Generate(ctx context.Context, o *order.Order) (string, error)
}

// CheckoutDetails is the billing contact the buyer submits with checkout.
// Everything here is snapshotted onto the order and flows through to the
// gateway invoice unchanged.
type CheckoutDetails struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	BillingAddress  string `json:"billing_address"`
	ShippingAddress string `json:"shipping_address"`
}

type CheckoutResult struct {
	OrderID         uint   `json:"order_id"`
	GatewayOrderRef string `json:"gateway_order_ref"`
	GatewayKeyID    string `json:"gateway_key_id"`
}

type ConfirmRequest struct {
	GatewayOrderRef   string          `json:"gateway_order_ref"`
	GatewayPaymentRef string          `json:"gateway_payment_ref"`
	Signature         string          `json:"signature"`
	RawPayload        json.RawMessage `json:"-"`
}

// Service drives the settlement state machine: order creation, gateway
// registration, payment capture, invoicing and cart clearing.
type Service struct {
	carts    cart.Service
	orders   order.Repository
	payments payment.Repository
	gw       gateway.Client
	docs     DocumentGenerator
	policy   gateway.VerificationPolicy
}

func NewService(
	carts cart.Service,
	orders order.Repository,
	payments payment.Repository,
	gw gateway.Client,
	docs DocumentGenerator,
	policy gateway.VerificationPolicy,
) *Service {
	return &Service{
		carts:    carts,
		orders:   orders,
		payments: payments,
		gw:       gw,
		docs:     docs,
		policy:   policy,
	}
}

// Checkout runs transitions 1 and 2 for the owner's current cart. An
// existing unpaid order is resumed rather than duplicated, but only while
// its lines still match the cart; a drifted cart supersedes the open order
// with a fresh one. The cart itself is left untouched either way; it is
// cleared only after capture.
func (s *Service) Checkout(ctx context.Context, ownerID uint, details CheckoutDetails) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "settlement"),
		zap.String("method", "Checkout"),
		zap.Uint("owner_id", ownerID),
	)

	snapshot, err := s.carts.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.FindOpenByOwner(ctx, ownerID)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, "find open order", err)
	}

	if o != nil && !linesMatchSnapshot(o.Lines, snapshot) {
		// Cart changed since this order was cut. Settling it would charge
		// for lines the buyer no longer holds, so void it and start over
		// from the current cart.
		if err := s.orders.Cancel(ctx, o.ID); err != nil {
			return nil, fault.Wrap(fault.KindStorage, "cancel superseded order", err)
		}
		log.Info("open order superseded after cart change", zap.Uint("order_id", o.ID))
		o = nil
	}

	if o == nil {
		o, err = s.createFromCart(ctx, ownerID, snapshot, details)
		switch {
		case errors.Is(err, order.ErrOpenOrderExists):
			// Lost the insert race against a concurrent checkout; resume
			// the order the winner created.
			o, err = s.orders.FindOpenByOwner(ctx, ownerID)
			if err != nil {
				return nil, fault.Wrap(fault.KindStorage, "find open order", err)
			}
			if o == nil {
				return nil, fault.New(fault.KindStorage, "open order settled mid-checkout")
			}
			log.Info("resuming concurrently created order", zap.Uint("order_id", o.ID))
		case err != nil:
			return nil, err
		default:
			log.Info("order created from cart",
				zap.Uint("order_id", o.ID),
				zap.String("total_amount", o.TotalAmount.StringFixed(2)),
			)
		}
	} else {
		log.Info("resuming open order", zap.Uint("order_id", o.ID))
	}

	if !o.Registered() {
		ref, err := s.registerWithGateway(ctx, o)
		if err != nil {
			return nil, err
		}
		o.GatewayOrderRef.String = ref
		o.GatewayOrderRef.Valid = true
	}

	return &CheckoutResult{
		OrderID:         o.ID,
		GatewayOrderRef: o.GatewayOrderRef.String,
		GatewayKeyID:    s.gw.KeyID(),
	}, nil
}

// linesMatchSnapshot reports whether the open order's lines are still the
// cart, line for line. Price is compared too: a repriced variant means the
// fixed total no longer reflects the cart.
func linesMatchSnapshot(lines []order.Line, snapshot []cart.SnapshotLine) bool {
	if len(lines) != len(snapshot) {
		return false
	}

	type key struct {
		variantID string
		quantity  int
	}
	byVariant := make(map[key]decimal.Decimal, len(lines))
	for _, l := range lines {
		byVariant[key{l.VariantID, l.Quantity}] = l.UnitPrice
	}
	for _, item := range snapshot {
		price, ok := byVariant[key{item.VariantID, item.Quantity}]
		if !ok || !price.Equal(item.UnitPrice) {
			return false
		}
	}
	return true
}

// createFromCart is transition 1: persist the order with its lines, cut
// from the given cart snapshot, in one transaction. Fails on an empty
// cart; no order row is left behind on any failure.
func (s *Service) createFromCart(ctx context.Context, ownerID uint, snapshot []cart.SnapshotLine, details CheckoutDetails) (*order.Order, error) {
	if len(snapshot) == 0 {
		return nil, fault.Wrap(fault.KindValidation, "checkout", cart.ErrCartEmpty)
	}

	total := decimal.Zero
	lines := make([]order.Line, 0, len(snapshot))
	for _, item := range snapshot {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, order.Line{
			VariantID:   item.VariantID,
			VariantName: item.VariantName,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	o := &order.Order{
		OwnerID:         ownerID,
		Status:          order.StatusPending,
		TotalAmount:     total,
		CustomerName:    details.CustomerName,
		CustomerEmail:   details.CustomerEmail,
		BillingAddress:  details.BillingAddress,
		ShippingAddress: details.ShippingAddress,
		Lines:           lines,
	}
	if err := s.orders.CreateWithLines(ctx, o); err != nil {
		if errors.Is(err, order.ErrOpenOrderExists) {
			return nil, err
		}
		return nil, fault.Wrap(fault.KindStorage, "create order", err)
	}
	return o, nil
}

// registerWithGateway is transition 2. On gateway failure the order simply
// stays unregistered and the caller may retry; no local state changed yet.
func (s *Service) registerWithGateway(ctx context.Context, o *order.Order) (string, error) {
	receipt := fmt.Sprintf("rcpt_%d_%s", o.ID, uuid.NewString()[:8])

	ref, err := s.gw.CreateRemoteOrder(ctx, gateway.CreateOrderRequest{
		AmountMinor: gateway.MinorUnits(o.TotalAmount),
		Currency:    currency,
		Receipt:     receipt,
	})
	if err != nil {
		return "", err
	}

	err = s.orders.SetGatewayOrderRef(ctx, o.ID, ref)
	if errors.Is(err, order.ErrGatewayRefAssigned) {
		// A concurrent checkout won the registration; use its reference.
		current, getErr := s.orders.GetByID(ctx, o.ID)
		if getErr != nil {
			return "", fault.Wrap(fault.KindStorage, "reload order", getErr)
		}
		return current.GatewayOrderRef.String, nil
	}
	if err != nil {
		return "", fault.Wrap(fault.KindStorage, "store gateway order ref", err)
	}
	return ref, nil
}

// ConfirmPayment runs transition 3, then 4 and 5 on success. Signature
// verification always comes first and is never bypassed. The whole
// operation is idempotent: a replayed confirmation for an already-paid
// order is acknowledged without re-applying any side effect.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "settlement"),
		zap.String("method", "ConfirmPayment"),
		zap.String("gateway_order_ref", req.GatewayOrderRef),
		zap.String("gateway_payment_ref", req.GatewayPaymentRef),
	)

	// Step A: signature. A forged confirmation stops here, before any
	// state is read or written.
	if err := s.gw.VerifySignature(req.GatewayOrderRef, req.GatewayPaymentRef, req.Signature); err != nil {
		log.Warn("payment confirmation signature rejected",
			zap.String("event", "security"),
		)
		return err
	}

	eventID, duplicate, err := s.payments.SaveConfirmationEvent(
		ctx, provider, req.GatewayPaymentRef, req.GatewayOrderRef, req.RawPayload, true,
	)
	if err != nil {
		// Audit row failure must not block settlement; the paid guard on
		// the order still protects against double-apply.
		log.Error("failed to record confirmation event", zap.Error(err))
	}

	o, err := s.orders.GetByGatewayOrderRef(ctx, req.GatewayOrderRef)
	if errors.Is(err, order.ErrOrderNotFound) {
		return fault.Wrap(fault.KindNotFound, "confirm payment", err)
	}
	if err != nil {
		return fault.Wrap(fault.KindStorage, "load order", err)
	}

	if o.PaymentStatus {
		log.Info("order already settled, confirmation replay ignored",
			zap.Uint("order_id", o.ID),
			zap.Bool("duplicate_event", duplicate),
		)
		s.markEventProcessed(ctx, eventID)
		return nil
	}

	// Step B: confirm captured status with the gateway; the payload's word
	// alone is never trusted in strict mode.
	amountMinor := gateway.MinorUnits(o.TotalAmount)
	status := gateway.StatusCaptured

	if s.policy != gateway.VerifyBypassForTesting {
		p, err := s.gw.FetchPayment(ctx, req.GatewayPaymentRef)
		if err != nil {
			s.markEventFailed(ctx, eventID, err.Error())
			return err
		}
		if p.OrderRef != req.GatewayOrderRef {
			s.markEventFailed(ctx, eventID, "payment belongs to another order")
			return fault.New(fault.KindValidation, "payment does not belong to this order")
		}
		status = p.Status
		amountMinor = p.AmountMinor
	}

	s.recordAttempt(ctx, o.ID, req, status, amountMinor)

	if status != gateway.StatusCaptured {
		log.Info("payment not captured",
			zap.Uint("order_id", o.ID),
			zap.String("status", status),
		)
		s.markEventFailed(ctx, eventID, "status "+status)
		return fault.Newf(fault.KindPaymentFailed, "payment not captured (status %s)", status)
	}

	// Step C: the capture transaction. The paid guard makes a concurrent
	// duplicate a no-op.
	applied, err := s.orders.MarkPaid(ctx, o.ID, req.GatewayPaymentRef, req.Signature)
	if err != nil {
		s.markEventFailed(ctx, eventID, err.Error())
		return fault.Wrap(fault.KindStorage, "mark order paid", err)
	}
	if !applied {
		log.Info("capture already applied concurrently", zap.Uint("order_id", o.ID))
		s.markEventProcessed(ctx, eventID)
		return nil
	}

	log.Info("payment captured",
		zap.Uint("order_id", o.ID),
		zap.Int64("amount_minor", amountMinor),
	)

	// Transitions 4 and 5 are best-effort: a documentation or cart failure
	// never reverts the committed payment state.
	if err := s.invoiceOrder(ctx, o); err != nil {
		log.Error("invoice creation failed, payment state kept",
			zap.Uint("order_id", o.ID),
			zap.Error(err),
		)
	}

	if err := s.carts.Clear(ctx, o.OwnerID); err != nil {
		log.Error("cart clear failed after capture",
			zap.Uint("owner_id", o.OwnerID),
			zap.Error(err),
		)
	}

	s.markEventProcessed(ctx, eventID)
	return nil
}

// RetryInvoice re-runs transition 4 for a paid order. Payment is never
// re-verified here.
func (s *Service) RetryInvoice(ctx context.Context, orderID uint) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return fault.Wrap(fault.KindNotFound, "retry invoice", err)
	}
	if err != nil {
		return fault.Wrap(fault.KindStorage, "load order", err)
	}

	if !o.PaymentStatus {
		return fault.New(fault.KindValidation, "order is not paid")
	}
	if o.GatewayInvoiceRef.Valid && o.InvoiceDocRef.Valid {
		return nil
	}

	return s.invoiceOrder(ctx, o)
}

// invoiceOrder is transition 4: gateway invoice first, then the rendered
// document. A partially completed run persists whatever refs it obtained
// so a retry picks up from there.
func (s *Service) invoiceOrder(ctx context.Context, o *order.Order) error {
	invoiceRef := o.GatewayInvoiceRef.String

	if invoiceRef == "" {
		lines := make([]gateway.InvoiceLine, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, gateway.InvoiceLine{
				Name:        l.VariantName,
				Description: l.Description,
				Quantity:    l.Quantity,
				AmountMinor: gateway.MinorUnits(l.UnitPrice),
			})
		}

		customerName := o.CustomerName
		if customerName == "" {
			customerName = fmt.Sprintf("customer-%d", o.OwnerID)
		}

		ref, err := s.gw.CreateInvoice(ctx, gateway.InvoiceRequest{
			OrderRef:        o.GatewayOrderRef.String,
			CustomerName:    customerName,
			CustomerEmail:   o.CustomerEmail,
			BillingAddress:  o.BillingAddress,
			ShippingAddress: o.ShippingAddress,
			Currency:        currency,
			Lines:           lines,
		})
		if err != nil {
			return err
		}
		invoiceRef = ref
	}

	docRef, docErr := s.docs.Generate(ctx, o)

	if err := s.orders.SetInvoiceRefs(ctx, o.ID, invoiceRef, docRef); err != nil {
		return fault.Wrap(fault.KindStorage, "store invoice refs", err)
	}
	return docErr
}

func (s *Service) recordAttempt(ctx context.Context, orderID uint, req ConfirmRequest, status string, amountMinor int64) {
	err := s.payments.RecordAttempt(ctx, &payment.Attempt{
		OrderID:     orderID,
		PaymentRef:  req.GatewayPaymentRef,
		Status:      status,
		AmountMinor: amountMinor,
		RawPayload:  req.RawPayload,
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to record payment attempt",
			zap.Uint("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *Service) markEventProcessed(ctx context.Context, eventID int64) {
	if eventID == 0 {
		return
	}
	if err := s.payments.MarkEventProcessed(ctx, eventID); err != nil {
		logger.FromCtx(ctx).Error("failed to mark event processed", zap.Error(err))
	}
}

func (s *Service) markEventFailed(ctx context.Context, eventID int64, reason string) {
	if eventID == 0 {
		return
	}
	if err := s.payments.MarkEventFailed(ctx, eventID, reason); err != nil {
		logger.FromCtx(ctx).Error("failed to mark event failed", zap.Error(err))
	}
}
