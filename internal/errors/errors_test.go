package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapToStatus(t *testing.T) {
	cause := stderrors.New("boom")
	cases := []struct {
		err    *ServiceError
		status int
		code   ErrorCode
	}{
		{Validation("bad"), http.StatusBadRequest, CodeValidation},
		{NotFound("missing"), http.StatusNotFound, CodeNotFound},
		{Conflict("dup"), http.StatusConflict, CodeConflict},
		{PaymentDeclined("card declined", cause), http.StatusPaymentRequired, CodePaymentDeclined},
		{ServiceUnavailable("off"), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{Internal("oops", cause), http.StatusInternalServerError, CodeInternal},
		{RateLimitExceeded(10, "1s"), http.StatusTooManyRequests, CodeRateLimitExceeded},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus, string(tc.code))
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	base := NotFound("Order not found")
	wrapped := fmt.Errorf("update status: %w", base)

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, "Order not found", se.Message)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
	assert.True(t, IsCode(wrapped, CodeNotFound))
}

func TestHTTPStatusDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain")))
	assert.Nil(t, GetServiceError(stderrors.New("plain")))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("network down")
	err := Internal("datastore failure", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network down")
}

func TestWithDetails(t *testing.T) {
	err := Validation("bad amount").WithDetails("field", "amount")
	assert.Equal(t, "amount", err.Details["field"])
}
