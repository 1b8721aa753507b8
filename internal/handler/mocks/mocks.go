// Package mocks contains testify doubles for the handler-layer service
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

type MockOrderService struct {
	mock.Mock
}

func NewMockOrderService(t *testing.T) *MockOrderService {
	m := &MockOrderService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOrderService) CreateCashOrder(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, error) {
	args := m.Called(ctx, cartID, addr)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) CreateCardCheckout(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, gateway.Session, error) {
	args := m.Called(ctx, cartID, addr)
	return args.Get(0).(entities.Order), args.Get(1).(gateway.Session), args.Error(2)
}

func (m *MockOrderService) ConfirmOrder(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error) {
	args := m.Called(ctx, orderID, actor)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) ConfirmCardPayment(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error) {
	args := m.Called(ctx, orderID, actor)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) ShipOrder(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID, reason string, actor entities.Actor) (entities.Order, error) {
	args := m.Called(ctx, orderID, reason, actor)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) GetTracking(ctx context.Context, orderID string) (entities.Order, *carrier.TrackingInfo, error) {
	args := m.Called(ctx, orderID)
	var info *carrier.TrackingInfo
	if args.Get(1) != nil {
		info = args.Get(1).(*carrier.TrackingInfo)
	}
	return args.Get(0).(entities.Order), info, args.Error(2)
}

func (m *MockOrderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderBySession(ctx context.Context, sessionID string) (entities.Order, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) ListOrdersForUser(ctx context.Context, userID string) ([]entities.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Order), args.Error(1)
}

type MockEventParser struct {
	mock.Mock
}

func NewMockEventParser(t *testing.T) *MockEventParser {
	m := &MockEventParser{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEventParser) ParseEvent(payload []byte, sigHeader string) (gateway.Event, error) {
	args := m.Called(payload, sigHeader)
	return args.Get(0).(gateway.Event), args.Error(1)
}

type MockPaymentEvents struct {
	mock.Mock
}

func NewMockPaymentEvents(t *testing.T) *MockPaymentEvents {
	m := &MockPaymentEvents{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPaymentEvents) HandleEvent(ctx context.Context, ev gateway.Event) error {
	return m.Called(ctx, ev).Error(0)
}

type MockCarrierEvents struct {
	mock.Mock
}

func NewMockCarrierEvents(t *testing.T) *MockCarrierEvents {
	m := &MockCarrierEvents{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCarrierEvents) HandleCarrierEvent(ctx context.Context, orderID, carrierStatus, note string) error {
	return m.Called(ctx, orderID, carrierStatus, note).Error(0)
}
