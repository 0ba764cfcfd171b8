package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/internal/loyalty"
	"github.com/beanhop/backend/internal/wallet"
)

type topUpIntentRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Email  *string         `json:"email"`
}

// =============================================================================
// Wallet
// =============================================================================

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Wallet.Balance(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateTopUpIntent(w http.ResponseWriter, r *http.Request) {
	var req topUpIntentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.fail(w, r, svcerrors.Validation("user_id is required"))
		return
	}
	res, err := s.svc.Payments.CreateTopUpIntent(r.Context(), req.UserID, req.Amount, valueOf(req.Email))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req wallet.TopUpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Wallet.TopUp(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// handleWalletPay reads user_id, amount and order_id from the query string.
func (s *Server) handleWalletPay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	if userID == "" {
		s.fail(w, r, svcerrors.Validation("user_id is required"))
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
	if err != nil {
		s.fail(w, r, svcerrors.Validation("amount must be a number"))
		return
	}

	res, err := s.svc.Wallet.Pay(r.Context(), userID, amount, httputil.OptionalQuery(r, "order_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// =============================================================================
// Loyalty & rewards
// =============================================================================

func (s *Server) handleLoyaltyPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.svc.Loyalty.Points(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, points)
}

func (s *Server) handleLoyaltyTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", loyalty.DefaultTransactionLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.svc.Loyalty.Transactions(r.Context(), mux.Vars(r)["user"], limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, txs)
}

func (s *Server) handleRedeemReward(w http.ResponseWriter, r *http.Request) {
	var req loyalty.RedeemRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Loyalty.Redeem(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := s.svc.Loyalty.Vouchers(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vouchers)
}
