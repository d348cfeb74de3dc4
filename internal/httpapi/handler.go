package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/fault"
	"storefront-be/internal/filestore"
	"storefront-be/internal/invoice"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/settlement"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes bounds confirmation payloads; gateway callbacks are small.
const maxBodyBytes = 64 << 10

type Handler struct {
	settle *settlement.Service
	carts  cart.Service
	orders order.Repository
	inv    *invoice.Generator
	files  filestore.Store
}

func NewHandler(
	settle *settlement.Service,
	carts cart.Service,
	orders order.Repository,
	inv *invoice.Generator,
	files filestore.Store,
) *Handler {
	return &Handler{
		settle: settle,
		carts:  carts,
		orders: orders,
		inv:    inv,
		files:  files,
	}
}

// Routes mounts the API. Everything except the signed file link requires a
// bearer token; the file link carries its own HMAC authorization.
func (h *Handler) Routes(jwtSecret []byte) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logging)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtSecret))
		r.Use(middleware.RateLimit)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Post("/cart/items/{variantID}/increase", h.increaseCartItem)
		r.Post("/cart/items/{variantID}/decrease", h.decreaseCartItem)
		r.Delete("/cart/items/{variantID}", h.removeCartItem)

		r.Post("/checkout", h.checkout)
		r.Post("/payments/confirm", h.confirmPayment)
		r.Get("/orders/{orderID}/invoice", h.orderInvoice)
	})

	r.Get("/files/invoice", h.downloadInvoice)

	return r
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	lines, err := h.carts.Snapshot(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	var body struct {
		VariantID string `json:"variant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" {
		writeError(w, r, fault.New(fault.KindValidation, "variant_id is required"))
		return
	}

	if err := h.carts.Add(r.Context(), ownerID, body.VariantID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) increaseCartItem(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	if err := h.carts.Increase(r.Context(), ownerID, chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decreaseCartItem(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	if err := h.carts.Decrease(r.Context(), ownerID, chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	if err := h.carts.Remove(r.Context(), ownerID, chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fault.New(fault.KindValidation, "unreadable body"))
		return
	}

	// Billing details are optional; an empty body checks out anonymously.
	var details settlement.CheckoutDetails
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &details); err != nil {
			writeError(w, r, fault.New(fault.KindValidation, "malformed checkout payload"))
			return
		}
	}

	res, err := h.settle.Checkout(r.Context(), ownerID, details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fault.New(fault.KindValidation, "unreadable body"))
		return
	}

	var req settlement.ConfirmRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, r, fault.New(fault.KindValidation, "malformed confirmation payload"))
		return
	}
	if req.GatewayOrderRef == "" || req.GatewayPaymentRef == "" || req.Signature == "" {
		writeError(w, r, fault.New(fault.KindValidation, "gateway_order_ref, gateway_payment_ref and signature are required"))
		return
	}
	req.RawPayload = raw

	if err := h.settle.ConfirmPayment(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "captured"})
}

// orderInvoice returns a signed download link for the order's invoice
// document, generating the invoice on the fly when a previous attempt
// failed after capture.
func (h *Handler) orderInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.OwnerIDFromContext(r.Context())

	orderID, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, r, fault.New(fault.KindValidation, "invalid order id"))
		return
	}

	o, err := h.orders.GetByID(r.Context(), uint(orderID))
	if errors.Is(err, order.ErrOrderNotFound) {
		writeError(w, r, fault.Wrap(fault.KindNotFound, "order", err))
		return
	}
	if err != nil {
		writeError(w, r, fault.Wrap(fault.KindStorage, "load order", err))
		return
	}
	// Order existence is not leaked across owners.
	if o.OwnerID != ownerID {
		writeError(w, r, fault.New(fault.KindNotFound, "order not found"))
		return
	}

	if !o.InvoiceDocRef.Valid {
		if err := h.settle.RetryInvoice(r.Context(), o.ID); err != nil {
			writeError(w, r, err)
			return
		}
		if o, err = h.orders.GetByID(r.Context(), o.ID); err != nil {
			writeError(w, r, fault.Wrap(fault.KindStorage, "reload order", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"invoice_url": h.inv.SignedURL(o.InvoiceDocRef.String, time.Now()),
	})
}

func (h *Handler) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, exp, sig := q.Get("ref"), q.Get("exp"), q.Get("sig")

	if !h.inv.VerifySignedURL(ref, exp, sig, time.Now()) {
		http.Error(w, "link expired or invalid", http.StatusForbidden)
		return
	}

	f, err := h.files.Open(r.Context(), ref)
	if err != nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, f); err != nil {
		logger.FromCtx(r.Context()).Error("invoice download interrupted", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)

	log := logger.FromCtx(r.Context()).With(
		zap.String("path", r.URL.Path),
		zap.String("kind", kind.String()),
	)
	switch {
	case kind == fault.KindSignatureInvalid:
		log.Warn("rejected forged payment confirmation",
			zap.String("event", "security"),
		)
	case status >= 500:
		log.Error("request failed", zap.Error(err))
	default:
		log.Info("request rejected", zap.Error(err))
	}

	// Internal failure detail stays out of the response body.
	msg := err.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{
		"error": msg,
		"kind":  kind.String(),
	})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation, fault.KindSignatureInvalid:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindPaymentFailed:
		return http.StatusPaymentRequired
	case fault.KindGatewayRejected:
		return http.StatusUnprocessableEntity
	case fault.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
