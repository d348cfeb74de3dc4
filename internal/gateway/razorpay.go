package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-be/internal/fault"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type razorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret string) Client {
	if keyID == "" || keySecret == "" {
		logger.L().Warn("Razorpay credentials are empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &razorpayClient{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *razorpayClient) KeyID() string { return c.keyID }

func (c *razorpayClient) CreateRemoteOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("receipt", req.Receipt),
		zap.Int64("amount_minor", req.AmountMinor),
		zap.String("currency", req.Currency),
	)

	body := map[string]interface{}{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", body, &res); err != nil {
		log.Error("failed to create remote order", zap.Error(err))
		return "", err
	}

	log.Info("remote order created", zap.String("gateway_order_ref", res.ID))
	return res.ID, nil
}

func (c *razorpayClient) FetchPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	var res struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Amount  int64  `json:"amount"`
		Method  string `json:"method"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentRef, nil, &res); err != nil {
		return nil, err
	}

	return &Payment{
		Ref:         res.ID,
		OrderRef:    res.OrderID,
		Status:      res.Status,
		AmountMinor: res.Amount,
		Method:      res.Method,
	}, nil
}

func (c *razorpayClient) FetchOrderPayments(ctx context.Context, orderRef string) ([]Payment, error) {
	var res struct {
		Items []struct {
			ID      string `json:"id"`
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
			Amount  int64  `json:"amount"`
			Method  string `json:"method"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderRef+"/payments", nil, &res); err != nil {
		return nil, err
	}

	payments := make([]Payment, 0, len(res.Items))
	for _, item := range res.Items {
		payments = append(payments, Payment{
			Ref:         item.ID,
			OrderRef:    item.OrderID,
			Status:      item.Status,
			AmountMinor: item.Amount,
			Method:      item.Method,
		})
	}
	return payments, nil
}

// VerifySignature checks the HMAC-SHA256 of "orderRef|paymentRef" against
// the signature the client presented. Constant-time compare.
func (c *razorpayClient) VerifySignature(orderRef, paymentRef, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fault.New(fault.KindSignatureInvalid, "payment signature mismatch")
	}
	return nil
}

func (c *razorpayClient) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway_order_ref", req.OrderRef),
		zap.Int("line_items", len(req.Lines)),
	)

	lines := make([]map[string]interface{}, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, map[string]interface{}{
			"name":        l.Name,
			"description": l.Description,
			"quantity":    l.Quantity,
			"amount":      l.AmountMinor,
			"currency":    req.Currency,
		})
	}

	body := map[string]interface{}{
		"type":     "invoice",
		"currency": req.Currency,
		"customer": map[string]interface{}{
			"name":             req.CustomerName,
			"email":            req.CustomerEmail,
			"billing_address":  req.BillingAddress,
			"shipping_address": req.ShippingAddress,
		},
		"line_items": lines,
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices", body, &res); err != nil {
		log.Error("failed to create gateway invoice", zap.Error(err))
		return "", err
	}

	log.Info("gateway invoice created", zap.String("invoice_ref", res.ID))
	return res.ID, nil
}

func (c *razorpayClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindGatewayUnavailable, "gateway request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fault.Wrap(fault.KindGatewayUnavailable, "read gateway response", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fault.Newf(fault.KindGatewayUnavailable,
			"gateway returned %d: %s", resp.StatusCode, string(bodyBytes))
	case resp.StatusCode >= http.StatusBadRequest:
		return fault.Newf(fault.KindGatewayRejected,
			"gateway rejected request: %s", gatewayErrorReason(bodyBytes))
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}

func gatewayErrorReason(body []byte) string {
	var res struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err == nil && res.Error.Description != "" {
		return res.Error.Description
	}
	return string(body)
}
