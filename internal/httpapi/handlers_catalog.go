package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beanhop/backend/internal/catalog"
	"github.com/beanhop/backend/internal/httputil"
)

// =============================================================================
// Shops & menu
// =============================================================================

func (s *Server) handleListShops(w http.ResponseWriter, r *http.Request) {
	active, err := httputil.QueryBool(r, "is_active", true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shops, err := s.svc.Catalog.ListShops(r.Context(), httputil.OptionalQuery(r, "city"), active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shops)
}

func (s *Server) handleGetShop(w http.ResponseWriter, r *http.Request) {
	shop, err := s.svc.Catalog.GetShop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (s *Server) handleCreateShop(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateShopRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	shop, err := s.svc.Catalog.CreateShop(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (s *Server) handleShopMenu(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Catalog.ShopMenu(r.Context(), mux.Vars(r)["id"], httputil.OptionalQuery(r, "category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Catalog.GetMenuItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateMenuItemRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	item, err := s.svc.Catalog.CreateMenuItem(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}
