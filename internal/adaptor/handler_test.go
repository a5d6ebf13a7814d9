package adaptor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"payment-service/internal/adaptor"
	"payment-service/internal/data/entity"
	"payment-service/internal/dto/request"
	"payment-service/internal/dto/response"
	"payment-service/pkg/apperror"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPayments struct {
	err        error
	lastStatus string
}

func (s *stubPayments) CreatePreference(_ context.Context, req *request.PaymentRequest) (*response.PreferenceResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &response.PreferenceResponse{TransactionID: "tx-1", PreferenceID: "pref-1", RedirectURL: "https://gw/init/pref-1"}, nil
}

func (s *stubPayments) ProcessPayment(_ context.Context, req *request.PaymentRequest) (*response.TransactionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &response.TransactionResponse{ID: "tx-1", OrderCode: req.OrderCode, Amount: "85.00", Status: entity.TransactionStatusApproved}, nil
}

func (s *stubPayments) GetStatus(_ context.Context, paymentID string) (*response.TransactionResponse, error) {
	s.lastStatus = paymentID
	if s.err != nil {
		return nil, s.err
	}
	return &response.TransactionResponse{ID: "tx-1", Status: entity.TransactionStatusApproved}, nil
}

func (s *stubPayments) ListByOrder(_ context.Context, orderCode string) ([]response.TransactionResponse, error) {
	return []response.TransactionResponse{{ID: "tx-1", OrderCode: orderCode}}, s.err
}

func (s *stubPayments) ListActiveMethods(context.Context) ([]response.PaymentMethodResponse, error) {
	return []response.PaymentMethodResponse{{ID: "CASH", Name: "Cash", IsActive: true}}, s.err
}

type stubWebhooks struct {
	received  []*request.WebhookNotification
	requestID string
	err       error
}

func (s *stubWebhooks) HandleNotification(_ context.Context, requestID string, n *request.WebhookNotification) (*entity.Transaction, error) {
	s.received = append(s.received, n)
	s.requestID = requestID
	if s.err != nil {
		return nil, s.err
	}
	return &entity.Transaction{ID: uuid.New()}, nil
}

type signatureOn struct{}

func (signatureOn) Enabled() bool { return true }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newRouter(payments *stubPayments, webhooks *stubWebhooks, db pinger) http.Handler {
	log := zap.NewNop()
	ph := adaptor.NewPaymentHandler(payments, log)
	wh := adaptor.NewWebhookHandler(webhooks, signatureOn{}, log)
	ch := adaptor.NewCheckoutHandler(payments, log)
	rh := adaptor.NewRootHandler(db, log)

	r := chi.NewRouter()
	r.Get("/", rh.Index)
	r.Get("/health", rh.Health)
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/preference", ph.CreatePreference)
		r.Post("/process", ph.ProcessPayment)
		r.Get("/status/{paymentId}", ph.GetStatus)
		r.Get("/methods", ph.GetMethods)
		r.Get("/order/{orderCode}", ph.GetByOrder)
		r.Post("/webhook", wh.Receive)
		r.Get("/webhook", wh.Ping)
		r.Get("/webhook/verify", wh.Verify)
		r.Get("/success", ch.Success)
		r.Get("/failure", ch.Failure)
		r.Get("/pending", ch.Pending)
	})
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func Test_PaymentHandler_ErrorMapping(t *testing.T) {
	type Test struct {
		Name   string
		Err    error
		Expect int
	}
	tests := []Test{
		{Name: "Validation", Err: apperror.NewValidation("amount must be positive"), Expect: http.StatusBadRequest},
		{Name: "Gateway", Err: &apperror.GatewayError{Code: "bad_request", Message: "invalid token", StatusCode: 401}, Expect: http.StatusBadRequest},
		{Name: "Not found", Err: apperror.NewNotFound("payment", "999"), Expect: http.StatusNotFound},
		{Name: "Unexpected", Err: errors.New("pq: connection reset"), Expect: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			h := newRouter(&stubPayments{err: test.Err}, &stubWebhooks{}, pinger{})

			rec := do(h, http.MethodGet, "/api/payments/status/999", "")

			assert.Equal(t, test.Expect, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Status)
			if test.Expect == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "connection reset")
			}
		})
	}
}

func Test_PaymentHandler_Routes(t *testing.T) {
	t.Run("Preference", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodPost, "/api/payments/preference", `{"order_code":"ORD-1","payment_method_id":"CREDIT_CARD","amount":100}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var pref response.PreferenceResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &pref))
		assert.Equal(t, "https://gw/init/pref-1", pref.RedirectURL)
	})
	t.Run("Bad body", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})
		rec := do(h, http.MethodPost, "/api/payments/process", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("Process", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodPost, "/api/payments/process", `{"order_code":"ORD-1","payment_method_id":"CASH","amount":"100.00"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(decode(t, rec).Data), `"amount":85.00`)
	})
	t.Run("Status uses path param", func(t *testing.T) {
		payments := &stubPayments{}
		h := newRouter(payments, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodGet, "/api/payments/status/1319580470", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1319580470", payments.lastStatus)
	})
	t.Run("Methods and order", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})

		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/payments/methods", "").Code)
		rec := do(h, http.MethodGet, "/api/payments/order/ORD-9", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ORD-9")
	})
}

func Test_WebhookHandler(t *testing.T) {
	t.Run("Always acknowledges", func(t *testing.T) {
		webhooks := &stubWebhooks{err: errors.New("gateway down")}
		h := newRouter(&stubPayments{}, webhooks, pinger{})

		rec := do(h, http.MethodPost, "/api/payments/webhook", `{"type":"payment","action":"payment.updated","data":{"id":"123"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
		require.Len(t, webhooks.received, 1)
		assert.Equal(t, "123", webhooks.received[0].Data.ID.String())
		assert.Equal(t, "req-1", webhooks.requestID)
	})
	t.Run("Numeric data id", func(t *testing.T) {
		webhooks := &stubWebhooks{}
		h := newRouter(&stubPayments{}, webhooks, pinger{})

		do(h, http.MethodPost, "/api/payments/webhook", `{"type":"payment","data":{"id":1319580470}}`)

		require.Len(t, webhooks.received, 1)
		assert.Equal(t, "1319580470", webhooks.received[0].Data.ID.String())
	})
	t.Run("Query string form", func(t *testing.T) {
		webhooks := &stubWebhooks{}
		h := newRouter(&stubPayments{}, webhooks, pinger{})

		rec := do(h, http.MethodPost, "/api/payments/webhook?topic=payment&id=42", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, webhooks.received, 1)
		assert.Equal(t, "42", webhooks.received[0].Data.ID.String())
		assert.True(t, webhooks.received[0].IsPayment())
	})
	t.Run("Garbage is acknowledged", func(t *testing.T) {
		webhooks := &stubWebhooks{}
		h := newRouter(&stubPayments{}, webhooks, pinger{})

		rec := do(h, http.MethodPost, "/api/payments/webhook", `not json`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, webhooks.received)
	})
	t.Run("Verification endpoints", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodGet, "/api/payments/webhook", "")
		assert.Equal(t, "Webhook is working", rec.Body.String())

		var status response.WebhookStatusResponse
		require.NoError(t, json.Unmarshal(decode(t, do(h, http.MethodGet, "/api/payments/webhook/verify", "")).Data, &status))
		assert.Equal(t, "active", status.Status)
		assert.True(t, status.SignatureVerification)
	})
}

func Test_CheckoutHandler(t *testing.T) {
	t.Run("Success reconciles", func(t *testing.T) {
		payments := &stubPayments{}
		h := newRouter(payments, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodGet, "/api/payments/success?payment_id=555&status=approved&external_reference=ORD-1", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "555", payments.lastStatus)
		assert.Contains(t, rec.Body.String(), `"transaction"`)
	})
	t.Run("Success tolerates lookup failure", func(t *testing.T) {
		h := newRouter(&stubPayments{err: errors.New("boom")}, &stubWebhooks{}, pinger{})

		rec := do(h, http.MethodGet, "/api/payments/success?payment_id=555", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode(t, rec).Status)
	})
	t.Run("Failure and pending", func(t *testing.T) {
		h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/payments/failure?payment_id=1", "").Code)
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/payments/pending", "").Code)
	})
}

func Test_RootHandler(t *testing.T) {
	h := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{})
	rec := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment-service")

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)

	down := newRouter(&stubPayments{}, &stubWebhooks{}, pinger{err: errors.New("refused")})
	assert.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/health", "").Code)
}
