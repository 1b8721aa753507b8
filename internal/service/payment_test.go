package service_test

import (
	"context"
	"testing"

	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/internal/service"
	mocks "github.com/dzshop/order-orchestrator/internal/service/mocks"
	txMocks "github.com/dzshop/order-orchestrator/pkg/trm/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPaymentService(
	orders *mocks.MockOrderRepo,
	carts *mocks.MockCartRepo,
	inventory *mocks.MockInventoryRepo,
) *service.PaymentService {
	return service.NewPaymentService(testLogger(), txMocks.NopManager{}, orders, carts, inventory, mocks.NopAuditSink{})
}

func TestPaymentService_SessionCompleted(t *testing.T) {
	cart := entities.Cart{
		CartID:     "cart-1",
		UserID:     "user-1",
		Items:      []entities.CartItem{{ProductID: "p1", Quantity: 1, Price: 1500}},
		TotalPrice: 1500,
	}

	event := gateway.Event{
		ID:   "evt_1",
		Type: gateway.EventSessionCompleted,
		Data: gateway.EventData{
			SessionID: "cs_123",
			Amount:    2000,
			Currency:  "DZD",
			Metadata: map[string]string{
				"cart_id": "cart-1",
				"user_id": "user-1",
			},
		},
	}

	t.Run("materializes an order once", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)

		orders.On("GetOrderBySessionID", mock.Anything, "cs_123").
			Return(entities.Order{}, entities.ErrOrderNotFound)
		carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
		orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o entities.Order) bool {
			return o.GatewaySessionID == "cs_123" &&
				o.PaymentMethod == entities.PaymentMethodCard &&
				o.PaymentStatus == entities.PaymentAuthorized &&
				o.TotalOrderPrice == 2000
		})).Return(nil)
		inventory.On("MarkAdjusted", mock.Anything, mock.Anything).Return(true, nil)
		inventory.On("AdjustStock", mock.Anything, cart.Items).Return(nil)
		carts.On("DeleteCart", mock.Anything, "cart-1").Return(nil)

		svc := newPaymentService(orders, carts, inventory)
		require.NoError(t, svc.HandleEvent(context.Background(), event))
	})

	t.Run("duplicate delivery is a no-op", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)

		orders.On("GetOrderBySessionID", mock.Anything, "cs_123").
			Return(entities.Order{OrderID: "order-1", GatewaySessionID: "cs_123"}, nil)

		svc := newPaymentService(orders, carts, inventory)
		require.NoError(t, svc.HandleEvent(context.Background(), event))

		orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		inventory.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything)
	})

	t.Run("concurrent duplicate loses the insert race", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)

		orders.On("GetOrderBySessionID", mock.Anything, "cs_123").
			Return(entities.Order{}, entities.ErrOrderNotFound)
		carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
		orders.On("CreateOrder", mock.Anything, mock.Anything).Return(entities.ErrDuplicateSession)

		svc := newPaymentService(orders, carts, inventory)
		require.NoError(t, svc.HandleEvent(context.Background(), event))

		inventory.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything)
	})

	t.Run("missing metadata is acknowledged and ignored", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)

		orders.On("GetOrderBySessionID", mock.Anything, "cs_123").
			Return(entities.Order{}, entities.ErrOrderNotFound)

		bare := event
		bare.Data.Metadata = nil

		svc := newPaymentService(orders, carts, inventory)
		require.NoError(t, svc.HandleEvent(context.Background(), bare))
	})
}

func TestPaymentService_ChargeCaptured(t *testing.T) {
	event := gateway.Event{
		ID:   "evt_2",
		Type: gateway.EventChargeCaptured,
		Data: gateway.EventData{Reference: "order-1", ChargeID: "ch_1", Amount: 2000},
	}

	type MockBehavior func(orders *mocks.MockOrderRepo)

	testCases := []struct {
		name         string
		mockBehavior MockBehavior
	}{
		{
			name: "authorized payment becomes confirmed",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{
						OrderID:       "order-1",
						PaymentMethod: entities.PaymentMethodCard,
						PaymentStatus: entities.PaymentAuthorized,
					}, nil)
				orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
					return upd.PaymentStatus != nil && *upd.PaymentStatus == entities.PaymentConfirmed &&
						upd.IsPaid != nil && *upd.IsPaid &&
						len(upd.Events) == 1 && upd.Events[0].Status == "payment_captured"
				})).Return(nil)
			},
		},
		{
			name: "already confirmed is a no-op",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{
						OrderID:       "order-1",
						PaymentStatus: entities.PaymentConfirmed,
						IsPaid:        true,
					}, nil)
			},
		},
		{
			name: "unknown order is acknowledged",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{}, entities.ErrOrderNotFound)
			},
		},
		{
			name: "lost conditional update race is a no-op",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{OrderID: "order-1", PaymentStatus: entities.PaymentAuthorized}, nil)
				orders.On("UpdateOrder", mock.Anything, "order-1", mock.Anything).
					Return(entities.ErrInvalidTransition)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orders := mocks.NewMockOrderRepo(t)
			tc.mockBehavior(orders)

			svc := newPaymentService(orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t))
			assert.NoError(t, svc.HandleEvent(context.Background(), event))
		})
	}
}

func TestPaymentService_ChargeRefunded(t *testing.T) {
	event := gateway.Event{
		ID:   "evt_3",
		Type: gateway.EventChargeRefunded,
		Data: gateway.EventData{Reference: "order-1", ChargeID: "ch_1"},
	}

	t.Run("confirmed payment becomes refunded", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", PaymentStatus: entities.PaymentConfirmed, IsPaid: true}, nil)
		orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			return upd.PaymentStatus != nil && *upd.PaymentStatus == entities.PaymentRefunded &&
				upd.IsPaid != nil && !*upd.IsPaid
		})).Return(nil)

		svc := newPaymentService(orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t))
		require.NoError(t, svc.HandleEvent(context.Background(), event))
	})

	t.Run("already refunded is a no-op", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", PaymentStatus: entities.PaymentRefunded}, nil)

		svc := newPaymentService(orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t))
		require.NoError(t, svc.HandleEvent(context.Background(), event))

		orders.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentService_UnknownEvent(t *testing.T) {
	svc := newPaymentService(mocks.NewMockOrderRepo(t), mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t))
	assert.NoError(t, svc.HandleEvent(context.Background(), gateway.Event{Type: "invoice.created"}))
}
