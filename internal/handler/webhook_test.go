package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/internal/handler"
	mocks "github.com/dzshop/order-orchestrator/internal/handler/mocks"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newWebhookRouter(t *testing.T, parser *mocks.MockEventParser, payments *mocks.MockPaymentEvents, deliveries *mocks.MockCarrierEvents) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewWebhookHandler(logger, parser, payments, deliveries)
	r := chi.NewRouter()
	h.Init(r)
	return r
}

func TestWebhookHandler_PaymentWebhook(t *testing.T) {
	event := gateway.Event{ID: "evt_1", Type: gateway.EventChargeCaptured}

	t.Run("valid delivery is acknowledged", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		parser.On("ParseEvent", mock.Anything, "sig").Return(event, nil).Once()
		payments.On("HandleEvent", mock.Anything, event).Return(nil).Once()

		r := newWebhookRouter(t, parser, payments, deliveries)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
		req.Header.Set(gateway.SignatureHeader, "sig")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"received":true`)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		parser.On("ParseEvent", mock.Anything, "bad").
			Return(gateway.Event{}, entities.ErrInvalidSignature).Once()

		r := newWebhookRouter(t, parser, payments, deliveries)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
		req.Header.Set(gateway.SignatureHeader, "bad")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		payments.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
	})

	t.Run("processing failure is still acknowledged", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		parser.On("ParseEvent", mock.Anything, "sig").Return(event, nil).Once()
		payments.On("HandleEvent", mock.Anything, event).Return(assert.AnError).Once()

		r := newWebhookRouter(t, parser, payments, deliveries)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
		req.Header.Set(gateway.SignatureHeader, "sig")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestWebhookHandler_DeliveryWebhook(t *testing.T) {
	t.Run("status update is dispatched", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		deliveries.On("HandleCarrierEvent", mock.Anything, "order-1", "in_transit", "left the hub").
			Return(nil).Once()

		r := newWebhookRouter(t, parser, payments, deliveries)

		body := `{"event":"parcel.status.updated","data":{"order_id":"order-1","status":"in_transit","note":"left the hub"}}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"success":true`)
	})

	t.Run("malformed payload is still acknowledged", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		r := newWebhookRouter(t, parser, payments, deliveries)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", strings.NewReader(`{not json`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		deliveries.AssertNotCalled(t, "HandleCarrierEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unrelated carrier event is ignored", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		r := newWebhookRouter(t, parser, payments, deliveries)

		body := `{"event":"parcel.created","data":{"order_id":"order-1"}}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		deliveries.AssertNotCalled(t, "HandleCarrierEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("processing failure is still acknowledged", func(t *testing.T) {
		parser := mocks.NewMockEventParser(t)
		payments := mocks.NewMockPaymentEvents(t)
		deliveries := mocks.NewMockCarrierEvents(t)

		deliveries.On("HandleCarrierEvent", mock.Anything, "order-1", "delivered", "").
			Return(assert.AnError).Once()

		r := newWebhookRouter(t, parser, payments, deliveries)

		body := `{"event":"parcel.status.updated","data":{"order_id":"order-1","status":"delivered"}}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
