package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/internal/notifications"
	"github.com/beanhop/backend/internal/platform/migrations"
	"github.com/beanhop/backend/internal/search"
)

const defaultDashboardURL = "https://supabase.com/dashboard"

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type setupInstructions struct {
	Message      string `json:"message"`
	DashboardURL string `json:"dashboard_url"`
	SQL          string `json:"sql"`
}

// =============================================================================
// Root & health
// =============================================================================

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, rootResponse{Message: "Welcome to BeanHop API", Version: apiVersion})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: s.now().UTC()})
}

// =============================================================================
// Notifications & promos
// =============================================================================

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", notifications.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.svc.Notifications.List(r.Context(), mux.Vars(r)["user"], limit))
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notifications.CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	n, err := s.svc.Notifications.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ack, err := s.svc.Notifications.MarkRead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ack)
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ack, err := s.svc.Notifications.MarkAllRead(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ack)
}

func (s *Server) handlePromos(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.svc.Promos.Active(r.Context()))
}

// =============================================================================
// Search & setup
// =============================================================================

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", search.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.svc.Search.Search(r.Context(), r.URL.Query().Get("q"), limit))
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Seeder.Run(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetupInstructions(w http.ResponseWriter, r *http.Request) {
	sql, err := migrations.SetupSQL()
	if err != nil {
		s.fail(w, r, svcerrors.Internal(err.Error(), err))
		return
	}
	dashboard := s.opts.DashboardURL
	if dashboard == "" {
		dashboard = defaultDashboardURL
	}
	httputil.WriteJSON(w, http.StatusOK, setupInstructions{
		Message:      "Copy and run this SQL in your Supabase SQL Editor",
		DashboardURL: dashboard,
		SQL:          sql,
	})
}
