// Package mocks contains testify doubles for the service-layer collaborator
// interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepo struct {
	mock.Mock
}

func NewMockOrderRepo(t *testing.T) *MockOrderRepo {
	m := &MockOrderRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOrderRepo) CreateOrder(ctx context.Context, o entities.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderRepo) GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderRepo) ListOrdersByUser(ctx context.Context, userID string) ([]entities.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Order), args.Error(1)
}

func (m *MockOrderRepo) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error {
	return m.Called(ctx, orderID, upd).Error(0)
}

type MockCartRepo struct {
	mock.Mock
}

func NewMockCartRepo(t *testing.T) *MockCartRepo {
	m := &MockCartRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCartRepo) GetCart(ctx context.Context, cartID string) (entities.Cart, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(entities.Cart), args.Error(1)
}

func (m *MockCartRepo) DeleteCart(ctx context.Context, cartID string) error {
	return m.Called(ctx, cartID).Error(0)
}

type MockInventoryRepo struct {
	mock.Mock
}

func NewMockInventoryRepo(t *testing.T) *MockInventoryRepo {
	m := &MockInventoryRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockInventoryRepo) MarkAdjusted(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockInventoryRepo) AdjustStock(ctx context.Context, items []entities.CartItem) error {
	return m.Called(ctx, items).Error(0)
}

type MockCheckoutGateway struct {
	mock.Mock
}

func NewMockCheckoutGateway(t *testing.T) *MockCheckoutGateway {
	m := &MockCheckoutGateway{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Session), args.Error(1)
}

type MockShipmentCarrier struct {
	mock.Mock
}

func NewMockShipmentCarrier(t *testing.T) *MockShipmentCarrier {
	m := &MockShipmentCarrier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockShipmentCarrier) CreateParcel(ctx context.Context, req carrier.ParcelRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockShipmentCarrier) Parcel(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error) {
	args := m.Called(ctx, trackingNumber)
	return args.Get(0).(carrier.TrackingInfo), args.Error(1)
}

type MockShipments struct {
	mock.Mock
}

func NewMockShipments(t *testing.T) *MockShipments {
	m := &MockShipments{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockShipments) CreateShipment(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockShipments) TrackingInfo(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error) {
	args := m.Called(ctx, trackingNumber)
	return args.Get(0).(carrier.TrackingInfo), args.Error(1)
}

// NopAuditSink discards activity events. Audit publishing is fire-and-forget,
// so most tests only need it to not blow up.
type NopAuditSink struct{}

func (NopAuditSink) Record(ctx context.Context, kind, orderID, actor string, metadata map[string]string) {
}

type MockAuditSink struct {
	mock.Mock
}

func NewMockAuditSink(t *testing.T) *MockAuditSink {
	m := &MockAuditSink{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAuditSink) Record(ctx context.Context, kind, orderID, actor string, metadata map[string]string) {
	m.Called(ctx, kind, orderID, actor, metadata)
}

// NopTrackingCache never hits and drops writes.
type NopTrackingCache struct{}

func (NopTrackingCache) Get(key string) ([]byte, bool) { return nil, false }
func (NopTrackingCache) Set(key string, value []byte)  {}
func (NopTrackingCache) Delete(key string)             {}
