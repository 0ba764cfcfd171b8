package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beanhop/backend/internal/gifts"
	"github.com/beanhop/backend/internal/httputil"
)

func (s *Server) handleSendGift(w http.ResponseWriter, r *http.Request) {
	var req gifts.SendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Gifts.Send(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleRedeemGift(w http.ResponseWriter, r *http.Request) {
	var req gifts.RedeemRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Gifts.Redeem(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleListGifts(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Gifts.List(r.Context(), mux.Vars(r)["user"], r.URL.Query().Get("user_email"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
