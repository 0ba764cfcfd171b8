package database

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyMarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(Wallet{ID: "w", UserID: "u", Balance: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"balance":12.5`)
}

func TestJSONColumns(t *testing.T) {
	var hours Hours
	require.NoError(t, hours.Scan([]byte(`{"monday":{"open":"07:00","close":"18:00"}}`)))
	assert.Equal(t, "18:00", hours["monday"].Close)

	var opts CustomizationOptions
	require.NoError(t, opts.Scan(nil))
	assert.Nil(t, opts)

	v, err := CustomizationOptions(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var data JSONObject
	assert.Error(t, data.Scan(42))
}

func TestOrderUpdateFields(t *testing.T) {
	status := OrderStatusReady
	fields := OrderUpdate{Status: &status}.fields()
	assert.Equal(t, "ready", fields["status"])
	_, hasPayment := fields["stripe_payment_id"]
	assert.False(t, hasPayment)
	assert.Contains(t, fields, "updated_at")
}

func TestNewCode(t *testing.T) {
	code := NewCode("GIFT-", 8)
	assert.Regexp(t, `^GIFT-[0-9A-F]{8}$`, code)
	assert.NotEqual(t, code, NewCode("GIFT-", 8))
	assert.Regexp(t, `^ORD-[0-9A-F]{6}$`, NewCode("ORD-", 6))
}
