package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/internal/payments"
)

type setupIntentRequest struct {
	UserID string  `json:"user_id"`
	Email  *string `json:"email"`
}

type confirmPaymentResponse struct {
	Success bool            `json:"success"`
	Order   *database.Order `json:"order"`
}

// =============================================================================
// Payments
// =============================================================================

func (s *Server) handleStripeConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.svc.Payments.Config())
}

func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req payments.CreateIntentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Payments.CreatePaymentIntent(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	intentID, orderID := q.Get("payment_intent_id"), q.Get("order_id")
	if intentID == "" || orderID == "" {
		s.fail(w, r, svcerrors.Validation("payment_intent_id and order_id are required"))
		return
	}
	order, err := s.svc.Payments.ConfirmPayment(r.Context(), intentID, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, confirmPaymentResponse{Success: true, Order: order})
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Payments.ListPaymentMethods(r.Context(), mux.Vars(r)["user"], r.URL.Query().Get("email"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateSetupIntent(w http.ResponseWriter, r *http.Request) {
	var req setupIntentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.fail(w, r, svcerrors.Validation("user_id is required"))
		return
	}
	res, err := s.svc.Payments.CreateSetupIntent(r.Context(), req.UserID, valueOf(req.Email))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handlePayWithSavedMethod(w http.ResponseWriter, r *http.Request) {
	var req payments.SavedMethodChargeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Payments.PayWithSavedMethod(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
