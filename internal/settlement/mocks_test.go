package settlement

import (
	"context"
	"encoding/json"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/gateway"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/stretchr/testify/mock"
)

// MockCartService is a mock implementation of cart.Service
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) Add(ctx context.Context, ownerID uint, variantID string) error {
	args := m.Called(ctx, ownerID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Increase(ctx context.Context, ownerID uint, variantID string) error {
	args := m.Called(ctx, ownerID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Decrease(ctx context.Context, ownerID uint, variantID string) error {
	args := m.Called(ctx, ownerID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Remove(ctx context.Context, ownerID uint, variantID string) error {
	args := m.Called(ctx, ownerID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Snapshot(ctx context.Context, ownerID uint) ([]cart.SnapshotLine, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.SnapshotLine), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, ownerID uint) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateWithLines(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID uint) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByGatewayOrderRef(ctx context.Context, ref string) (*order.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindOpenByOwner(ctx context.Context, ownerID uint) (*order.Order, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) SetGatewayOrderRef(ctx context.Context, orderID uint, ref string) error {
	args := m.Called(ctx, orderID, ref)
	return args.Error(0)
}

func (m *MockOrderRepository) Cancel(ctx context.Context, orderID uint) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, orderID uint, paymentRef, signature string) (bool, error) {
	args := m.Called(ctx, orderID, paymentRef, signature)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SetInvoiceRefs(ctx context.Context, orderID uint, gatewayInvoiceRef, docRef string) error {
	args := m.Called(ctx, orderID, gatewayInvoiceRef, docRef)
	return args.Error(0)
}

func (m *MockOrderRepository) ListStaleRegistered(ctx context.Context, olderThan time.Duration, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

// MockPaymentRepository is a mock implementation of payment.Repository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) RecordAttempt(ctx context.Context, a *payment.Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListAttemptsByOrder(ctx context.Context, orderID uint) ([]*payment.Attempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Attempt), args.Error(1)
}

func (m *MockPaymentRepository) SaveConfirmationEvent(ctx context.Context, provider, paymentRef, orderRef string, payload json.RawMessage, signatureValid bool) (int64, bool, error) {
	args := m.Called(ctx, provider, paymentRef, orderRef, payload, signatureValid)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) MarkEventProcessed(ctx context.Context, eventID int64) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkEventFailed(ctx context.Context, eventID int64, reason string) error {
	args := m.Called(ctx, eventID, reason)
	return args.Error(0)
}

// MockGateway is a mock implementation of gateway.Client
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateRemoteOrder(ctx context.Context, req gateway.CreateOrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentRef string) (*gateway.Payment, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

func (m *MockGateway) FetchOrderPayments(ctx context.Context, orderRef string) ([]gateway.Payment, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Payment), args.Error(1)
}

func (m *MockGateway) VerifySignature(orderRef, paymentRef, signature string) error {
	args := m.Called(orderRef, paymentRef, signature)
	return args.Error(0)
}

func (m *MockGateway) CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) KeyID() string {
	args := m.Called()
	return args.String(0)
}

// MockDocumentGenerator is a mock implementation of DocumentGenerator
type MockDocumentGenerator struct {
	mock.Mock
}

func (m *MockDocumentGenerator) Generate(ctx context.Context, o *order.Order) (string, error) {
	args := m.Called(ctx, o)
	return args.String(0), args.Error(1)
}
