package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/internal/service"
	mocks "github.com/dzshop/order-orchestrator/internal/service/mocks"
	txMocks "github.com/dzshop/order-orchestrator/pkg/trm/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testConfig = service.OrchestratorConfig{
	ShippingPrice: 500,
	Currency:      "DZD",
	SuccessURL:    "http://localhost:5173/order-confirmation",
	CancelURL:     "http://localhost:5173/checkout",
}

func newOrchestrator(
	t *testing.T,
	orders *mocks.MockOrderRepo,
	carts *mocks.MockCartRepo,
	inventory *mocks.MockInventoryRepo,
	checkout *mocks.MockCheckoutGateway,
	shipments *mocks.MockShipments,
) *service.Orchestrator {
	t.Helper()
	return service.NewOrchestrator(
		testLogger(), txMocks.NopManager{},
		orders, carts, inventory,
		checkout, shipments,
		mocks.NopAuditSink{}, mocks.NopTrackingCache{},
		testConfig,
	)
}

func TestOrchestrator_CreateCashOrder(t *testing.T) {
	cart := entities.Cart{
		CartID: "cart-1",
		UserID: "user-1",
		Items: []entities.CartItem{
			{ProductID: "p1", Quantity: 2, Price: 500},
			{ProductID: "p2", Quantity: 1, Price: 500},
		},
		TotalPrice: 1500,
	}

	type MockBehavior func(orders *mocks.MockOrderRepo, carts *mocks.MockCartRepo, inventory *mocks.MockInventoryRepo)

	testCases := []struct {
		name         string
		cartID       string
		mockBehavior MockBehavior
		wantErr      error
		check        func(t *testing.T, order entities.Order)
	}{
		{
			name:   "OK",
			cartID: "cart-1",
			mockBehavior: func(orders *mocks.MockOrderRepo, carts *mocks.MockCartRepo, inventory *mocks.MockInventoryRepo) {
				carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
				orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
				inventory.On("MarkAdjusted", mock.Anything, mock.Anything).Return(true, nil)
				inventory.On("AdjustStock", mock.Anything, cart.Items).Return(nil)
				carts.On("DeleteCart", mock.Anything, "cart-1").Return(nil)
			},
			check: func(t *testing.T, order entities.Order) {
				assert.Equal(t, int64(2000), order.TotalOrderPrice)
				assert.Equal(t, int64(500), order.ShippingPrice)
				assert.Equal(t, int64(2000), order.CODAmount)
				assert.Equal(t, entities.PaymentMethodCash, order.PaymentMethod)
				assert.Equal(t, entities.PaymentPending, order.PaymentStatus)
				assert.Equal(t, entities.DeliveryPending, order.DeliveryStatus)
				assert.False(t, order.IsPaid)
				require.Len(t, order.StatusHistory, 1)
				assert.Equal(t, string(entities.DeliveryPending), order.StatusHistory[0].Status)
				assert.Equal(t, entities.ActorCustomer, order.StatusHistory[0].Actor)
			},
		},
		{
			name:   "cart not found",
			cartID: "missing",
			mockBehavior: func(orders *mocks.MockOrderRepo, carts *mocks.MockCartRepo, inventory *mocks.MockInventoryRepo) {
				carts.On("GetCart", mock.Anything, "missing").Return(entities.Cart{}, entities.ErrCartNotFound)
			},
			wantErr: entities.ErrCartNotFound,
		},
		{
			name:   "empty cart",
			cartID: "cart-1",
			mockBehavior: func(orders *mocks.MockOrderRepo, carts *mocks.MockCartRepo, inventory *mocks.MockInventoryRepo) {
				carts.On("GetCart", mock.Anything, "cart-1").Return(entities.Cart{CartID: "cart-1", UserID: "user-1"}, nil)
			},
			wantErr: entities.ErrEmptyCart,
		},
		{
			name:   "cart delete failure does not fail the order",
			cartID: "cart-1",
			mockBehavior: func(orders *mocks.MockOrderRepo, carts *mocks.MockCartRepo, inventory *mocks.MockInventoryRepo) {
				carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
				orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
				inventory.On("MarkAdjusted", mock.Anything, mock.Anything).Return(true, nil)
				inventory.On("AdjustStock", mock.Anything, cart.Items).Return(nil)
				carts.On("DeleteCart", mock.Anything, "cart-1").Return(errors.New("db error"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orders := mocks.NewMockOrderRepo(t)
			carts := mocks.NewMockCartRepo(t)
			inventory := mocks.NewMockInventoryRepo(t)
			tc.mockBehavior(orders, carts, inventory)

			svc := newOrchestrator(t, orders, carts, inventory, mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

			order, err := svc.CreateCashOrder(context.Background(), tc.cartID, entities.ShippingAddress{
				Details: "12 Rue Didouche", Phone: "+213555000111", City: "Algiers",
			})

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, order)
			}
		})
	}
}

func TestOrchestrator_CreateCardCheckout(t *testing.T) {
	cart := entities.Cart{
		CartID:     "cart-1",
		UserID:     "user-1",
		Items:      []entities.CartItem{{ProductID: "p1", Quantity: 1, Price: 1500}},
		TotalPrice: 1500,
	}

	t.Run("OK", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)
		checkout := mocks.NewMockCheckoutGateway(t)

		carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
		orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
		inventory.On("MarkAdjusted", mock.Anything, mock.Anything).Return(true, nil)
		inventory.On("AdjustStock", mock.Anything, cart.Items).Return(nil)
		carts.On("DeleteCart", mock.Anything, "cart-1").Return(nil)

		checkout.On("CreateSession", mock.Anything, mock.MatchedBy(func(req gateway.SessionRequest) bool {
			return req.Amount == 2000 && req.Currency == "DZD" && req.Reference != "" &&
				req.Metadata["cart_id"] == "cart-1" && req.Metadata["user_id"] == "user-1"
		})).Return(gateway.Session{ID: "cs_123", RedirectURL: "https://gateway.example/cs_123"}, nil)

		orders.On("UpdateOrder", mock.Anything, mock.Anything, mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			return upd.GatewaySessionID != nil && *upd.GatewaySessionID == "cs_123"
		})).Return(nil)

		svc := newOrchestrator(t, orders, carts, inventory, checkout, mocks.NewMockShipments(t))

		order, session, err := svc.CreateCardCheckout(context.Background(), "cart-1", entities.ShippingAddress{
			Details: "12 Rue Didouche", Phone: "+213555000111",
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_123", session.ID)
		assert.Equal(t, "cs_123", order.GatewaySessionID)
		assert.Equal(t, entities.PaymentAuthorized, order.PaymentStatus)
		assert.Zero(t, order.CODAmount)
	})

	t.Run("gateway unavailable", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		carts := mocks.NewMockCartRepo(t)
		inventory := mocks.NewMockInventoryRepo(t)
		checkout := mocks.NewMockCheckoutGateway(t)

		carts.On("GetCart", mock.Anything, "cart-1").Return(cart, nil)
		orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
		inventory.On("MarkAdjusted", mock.Anything, mock.Anything).Return(true, nil)
		inventory.On("AdjustStock", mock.Anything, cart.Items).Return(nil)
		carts.On("DeleteCart", mock.Anything, "cart-1").Return(nil)
		checkout.On("CreateSession", mock.Anything, mock.Anything).
			Return(gateway.Session{}, entities.ErrUpstreamUnavailable)

		svc := newOrchestrator(t, orders, carts, inventory, checkout, mocks.NewMockShipments(t))

		_, _, err := svc.CreateCardCheckout(context.Background(), "cart-1", entities.ShippingAddress{
			Details: "12 Rue Didouche", Phone: "+213555000111",
		})
		assert.ErrorIs(t, err, entities.ErrUpstreamUnavailable)
	})
}

func TestOrchestrator_ConfirmOrder(t *testing.T) {
	type MockBehavior func(orders *mocks.MockOrderRepo)

	testCases := []struct {
		name         string
		mockBehavior MockBehavior
		wantErr      error
	}{
		{
			name: "OK",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryPending}, nil).Once()
				orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
					return upd.DeliveryStatus != nil && *upd.DeliveryStatus == entities.DeliveryConfirmed &&
						len(upd.Events) == 1 && upd.Events[0].Status == string(entities.DeliveryConfirmed)
				})).Return(nil)
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryConfirmed}, nil).Once()
			},
		},
		{
			name: "second confirmation fails",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryConfirmed}, nil)
			},
			wantErr: entities.ErrInvalidTransition,
		},
		{
			name: "order not found",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{}, entities.ErrOrderNotFound)
			},
			wantErr: entities.ErrOrderNotFound,
		},
		{
			name: "lost the race to a concurrent update",
			mockBehavior: func(orders *mocks.MockOrderRepo) {
				orders.On("GetOrderByID", mock.Anything, "order-1").
					Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryPending}, nil)
				orders.On("UpdateOrder", mock.Anything, "order-1", mock.Anything).
					Return(entities.ErrInvalidTransition)
			},
			wantErr: entities.ErrInvalidTransition,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orders := mocks.NewMockOrderRepo(t)
			tc.mockBehavior(orders)

			svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
				mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

			order, err := svc.ConfirmOrder(context.Background(), "order-1", entities.ActorSeller)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entities.DeliveryConfirmed, order.DeliveryStatus)
		})
	}
}

func TestOrchestrator_CancelOrder(t *testing.T) {
	t.Run("card order with authorized payment is refunded", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{
				OrderID:        "order-1",
				DeliveryStatus: entities.DeliveryConfirmed,
				PaymentMethod:  entities.PaymentMethodCard,
				PaymentStatus:  entities.PaymentAuthorized,
			}, nil).Once()
		orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			if upd.DeliveryStatus == nil || *upd.DeliveryStatus != entities.DeliveryCancelled {
				return false
			}
			if upd.PaymentStatus == nil || *upd.PaymentStatus != entities.PaymentRefunded {
				return false
			}
			// The refund and the cancellation are two separate history entries.
			return len(upd.Events) == 2 &&
				upd.Events[0].Status == "payment_refunded" &&
				upd.Events[1].Status == string(entities.DeliveryCancelled)
		})).Return(nil)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{
				OrderID:        "order-1",
				DeliveryStatus: entities.DeliveryCancelled,
				PaymentStatus:  entities.PaymentRefunded,
			}, nil).Once()

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		order, err := svc.CancelOrder(context.Background(), "order-1", "", entities.ActorCustomer)
		require.NoError(t, err)
		assert.Equal(t, entities.DeliveryCancelled, order.DeliveryStatus)
		assert.Equal(t, entities.PaymentRefunded, order.PaymentStatus)
	})

	t.Run("cash order keeps its payment axis", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{
				OrderID:        "order-1",
				DeliveryStatus: entities.DeliveryPending,
				PaymentMethod:  entities.PaymentMethodCash,
				PaymentStatus:  entities.PaymentPending,
			}, nil).Once()
		orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			return upd.PaymentStatus == nil && len(upd.Events) == 1 &&
				upd.Events[0].Status == string(entities.DeliveryCancelled) &&
				upd.Events[0].Note == "changed my mind"
		})).Return(nil)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryCancelled}, nil).Once()

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		_, err := svc.CancelOrder(context.Background(), "order-1", "changed my mind", entities.ActorCustomer)
		require.NoError(t, err)
	})

	t.Run("shipped order cannot be cancelled", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryShipped}, nil)

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		_, err := svc.CancelOrder(context.Background(), "order-1", "", entities.ActorCustomer)
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})
}

func TestOrchestrator_ConfirmCardPayment(t *testing.T) {
	t.Run("not a card order", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", PaymentMethod: entities.PaymentMethodCash}, nil)

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		_, err := svc.ConfirmCardPayment(context.Background(), "order-1", entities.ActorSeller)
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("OK", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{
				OrderID:       "order-1",
				PaymentMethod: entities.PaymentMethodCard,
				PaymentStatus: entities.PaymentAuthorized,
			}, nil).Once()
		orders.On("UpdateOrder", mock.Anything, "order-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			return upd.PaymentStatus != nil && *upd.PaymentStatus == entities.PaymentConfirmed &&
				upd.DeliveryStatus != nil && *upd.DeliveryStatus == entities.DeliveryConfirmed &&
				upd.IsPaid != nil && *upd.IsPaid && upd.PaidAt != nil
		})).Return(nil)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{
				OrderID:        "order-1",
				PaymentStatus:  entities.PaymentConfirmed,
				DeliveryStatus: entities.DeliveryConfirmed,
				IsPaid:         true,
			}, nil).Once()

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		order, err := svc.ConfirmCardPayment(context.Background(), "order-1", entities.ActorSeller)
		require.NoError(t, err)
		assert.True(t, order.IsPaid)
	})
}

func TestOrchestrator_ShipOrder(t *testing.T) {
	t.Run("delegates to the delivery adapter", func(t *testing.T) {
		shipments := mocks.NewMockShipments(t)
		shipments.On("CreateShipment", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryShipped, TrackingNumber: "TRK1"}, nil)

		svc := newOrchestrator(t, mocks.NewMockOrderRepo(t), mocks.NewMockCartRepo(t),
			mocks.NewMockInventoryRepo(t), mocks.NewMockCheckoutGateway(t), shipments)

		order, err := svc.ShipOrder(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Equal(t, "TRK1", order.TrackingNumber)
	})

	t.Run("shipment failure propagates", func(t *testing.T) {
		shipments := mocks.NewMockShipments(t)
		shipments.On("CreateShipment", mock.Anything, "order-1").
			Return(entities.Order{}, entities.ErrInvalidTransition)

		svc := newOrchestrator(t, mocks.NewMockOrderRepo(t), mocks.NewMockCartRepo(t),
			mocks.NewMockInventoryRepo(t), mocks.NewMockCheckoutGateway(t), shipments)

		_, err := svc.ShipOrder(context.Background(), "order-1")
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
	})
}

func TestOrchestrator_GetTracking(t *testing.T) {
	t.Run("order without tracking number", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", DeliveryStatus: entities.DeliveryPending}, nil)

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), mocks.NewMockShipments(t))

		order, info, err := svc.GetTracking(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Equal(t, "order-1", order.OrderID)
	})

	t.Run("carrier snapshot returned", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		shipments := mocks.NewMockShipments(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", TrackingNumber: "TRK1"}, nil)
		shipments.On("TrackingInfo", mock.Anything, "TRK1").
			Return(carrier.TrackingInfo{TrackingNumber: "TRK1", Status: "in_transit"}, nil)

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), shipments)

		_, info, err := svc.GetTracking(context.Background(), "order-1")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "in_transit", info.Status)
	})

	t.Run("carrier failure degrades to order only", func(t *testing.T) {
		orders := mocks.NewMockOrderRepo(t)
		shipments := mocks.NewMockShipments(t)
		orders.On("GetOrderByID", mock.Anything, "order-1").
			Return(entities.Order{OrderID: "order-1", TrackingNumber: "TRK1"}, nil)
		shipments.On("TrackingInfo", mock.Anything, "TRK1").
			Return(carrier.TrackingInfo{}, entities.ErrUpstreamUnavailable)

		svc := newOrchestrator(t, orders, mocks.NewMockCartRepo(t), mocks.NewMockInventoryRepo(t),
			mocks.NewMockCheckoutGateway(t), shipments)

		order, info, err := svc.GetTracking(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Equal(t, "order-1", order.OrderID)
	})
}
