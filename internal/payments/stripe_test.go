package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newStripeTestProcessor(t *testing.T, handler http.HandlerFunc) *StripeProcessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeProcessor("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeProcessor_GetPaymentIntent(t *testing.T) {
	p := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "pi_123",
			"object": "payment_intent",
			"status": "succeeded",
			"currency": "cad",
			"amount": 2500,
			"amount_received": 2500,
			"client_secret": "pi_123_secret",
			"customer": "cus_1",
			"payment_method": "pm_1",
			"metadata": {"purpose": "wallet_topup", "user_id": "user-1"}
		}`))
	})

	intent, err := p.GetPaymentIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, intent.Status)
	assert.Equal(t, "cad", intent.Currency)
	assert.Equal(t, int64(2500), intent.ReceivedCents())
	assert.Equal(t, "cus_1", intent.CustomerID)
	assert.Equal(t, "pm_1", intent.PaymentMethodID)
	assert.Equal(t, "wallet_topup", intent.Metadata["purpose"])
}

func TestStripeProcessor_CardErrorIsCardError(t *testing.T) {
	p := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error": {"type": "card_error", "code": "card_declined", "message": "Your card was declined."}}`))
	})

	_, err := p.CreatePaymentIntent(context.Background(), IntentParams{Amount: 500, Currency: Currency, Confirm: true})
	require.Error(t, err)

	var card *CardError
	require.True(t, errors.As(err, &card))
	assert.Equal(t, "card_declined", card.Code)
	assert.Equal(t, "Your card was declined.", card.Message)
}

func TestStripeProcessor_InvalidRequestIsPlainError(t *testing.T) {
	p := newStripeTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such payment_intent: 'pi_x'"}}`))
	})

	_, err := p.GetPaymentIntent(context.Background(), "pi_x")
	require.Error(t, err)

	var card *CardError
	assert.False(t, errors.As(err, &card))
	var se *stripe.Error
	assert.True(t, errors.As(err, &se))
}

func TestIntent_ReceivedCentsFallsBack(t *testing.T) {
	assert.Equal(t, int64(700), (&Intent{Amount: 700}).ReceivedCents())
	assert.Equal(t, int64(650), (&Intent{Amount: 700, AmountReceived: 650}).ReceivedCents())
}
