package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/internal/orders"
)

// =============================================================================
// Orders
// =============================================================================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	order, err := s.svc.Orders.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Orders.List(r.Context(),
		httputil.OptionalQuery(r, "user_id"),
		httputil.OptionalQuery(r, "status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

// handleUpdateOrderStatus takes the status from ?status= or a {"status"} body.
func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" && r.Body != nil && r.ContentLength != 0 {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			status = strings.TrimSpace(body.Status)
		}
	}
	if status == "" {
		s.fail(w, r, svcerrors.Validation("status is required"))
		return
	}

	res, err := s.svc.Orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
