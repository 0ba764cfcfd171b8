// Package httpapi mounts the BeanHop REST API on a gorilla/mux router.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/beanhop/backend/internal/catalog"
	"github.com/beanhop/backend/internal/gifts"
	"github.com/beanhop/backend/internal/httputil"
	"github.com/beanhop/backend/internal/loyalty"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/internal/middleware"
	"github.com/beanhop/backend/internal/notifications"
	"github.com/beanhop/backend/internal/orders"
	"github.com/beanhop/backend/internal/payments"
	"github.com/beanhop/backend/internal/promos"
	"github.com/beanhop/backend/internal/search"
	"github.com/beanhop/backend/internal/seed"
	"github.com/beanhop/backend/internal/wallet"
	"github.com/beanhop/backend/pkg/logger"
)

const (
	serviceName = "beanhop-api"
	apiVersion  = "1.0.0"
)

// Services bundles the domain services the handlers call into.
type Services struct {
	Catalog       *catalog.Service
	Orders        *orders.Service
	Loyalty       *loyalty.Service
	Payments      *payments.Service
	Wallet        *wallet.Service
	Gifts         *gifts.Service
	Notifications *notifications.Service
	Promos        *promos.Service
	Search        *search.Service
	Seeder        *seed.Seeder
}

// Options configures the edge middleware.
type Options struct {
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies []*net.IPNet
	// DashboardURL is echoed by /setup-instructions.
	DashboardURL string
}

// Server owns the router and its middleware chain.
type Server struct {
	svc     Services
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
	router  *mux.Router
	limiter *middleware.RateLimiter
	now     func() time.Time
}

// New builds the router. m must not be nil.
func New(svc Services, opts Options, log *logger.Logger, m *metrics.Metrics) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 2 * opts.RateLimitRPS
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		svc:     svc,
		opts:    opts,
		log:     log,
		metrics: m,
		router:  mux.NewRouter(),
		limiter: middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, log,
			middleware.WithTrustedProxies(opts.TrustedProxies)),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped in the edge middleware. CORS sits
// outside the router so preflights never reach method matching.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.limiter.Handler(h)
	h = middleware.NewCORSMiddleware(s.opts.AllowedOrigins).Handler(h)
	h = middleware.NewTracingMiddleware(s.log).Handler(h)
	return h
}

// SweepRateLimits drops idle rate-limit buckets every interval until ctx is done.
func (s *Server) SweepRateLimits(ctx context.Context, interval time.Duration) {
	s.limiter.Run(ctx, interval)
}

// =============================================================================
// Routes
// =============================================================================

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.MetricsMiddleware(serviceName, s.metrics))
	r.Use(middleware.Recovery(s.log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api", s.handleRoot).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Catalog
	api.HandleFunc("/shops", s.handleListShops).Methods(http.MethodGet)
	api.HandleFunc("/shops", s.handleCreateShop).Methods(http.MethodPost)
	api.HandleFunc("/shops/{id}", s.handleGetShop).Methods(http.MethodGet)
	api.HandleFunc("/shops/{id}/menu", s.handleShopMenu).Methods(http.MethodGet)
	api.HandleFunc("/menu-items", s.handleCreateMenuItem).Methods(http.MethodPost)
	api.HandleFunc("/menu-items/{id}", s.handleGetMenuItem).Methods(http.MethodGet)

	// Orders
	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.handleUpdateOrderStatus).Methods(http.MethodPatch)

	// Payments
	api.HandleFunc("/stripe/config", s.handleStripeConfig).Methods(http.MethodGet)
	api.HandleFunc("/stripe/create-payment-intent", s.handleCreatePaymentIntent).Methods(http.MethodPost)
	api.HandleFunc("/stripe/confirm-payment", s.handleConfirmPayment).Methods(http.MethodPost)
	api.HandleFunc("/stripe/pay-with-saved-method", s.handlePayWithSavedMethod).Methods(http.MethodPost)
	api.HandleFunc("/payments/methods/{user}", s.handleListPaymentMethods).Methods(http.MethodGet)
	api.HandleFunc("/payments/setup-intent", s.handleCreateSetupIntent).Methods(http.MethodPost)

	// Loyalty & rewards
	api.HandleFunc("/loyalty/{user}/points", s.handleLoyaltyPoints).Methods(http.MethodGet)
	api.HandleFunc("/loyalty/{user}/transactions", s.handleLoyaltyTransactions).Methods(http.MethodGet)
	api.HandleFunc("/rewards/redeem", s.handleRedeemReward).Methods(http.MethodPost)
	api.HandleFunc("/rewards/{user}/vouchers", s.handleVouchers).Methods(http.MethodGet)

	// Wallet
	api.HandleFunc("/wallet/topup/create-payment-intent", s.handleCreateTopUpIntent).Methods(http.MethodPost)
	api.HandleFunc("/wallet/topup", s.handleTopUp).Methods(http.MethodPost)
	api.HandleFunc("/wallet/pay", s.handleWalletPay).Methods(http.MethodPost)
	api.HandleFunc("/wallet/{user}", s.handleGetWallet).Methods(http.MethodGet)

	// Gifts
	api.HandleFunc("/gifts/send", s.handleSendGift).Methods(http.MethodPost)
	api.HandleFunc("/gifts/redeem", s.handleRedeemGift).Methods(http.MethodPost)
	api.HandleFunc("/gifts/{user}", s.handleListGifts).Methods(http.MethodGet)

	// Notifications & promos
	api.HandleFunc("/notifications", s.handleCreateNotification).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{user}", s.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", s.handleMarkNotificationRead).Methods(http.MethodPatch)
	api.HandleFunc("/notifications/{user}/read-all", s.handleMarkAllNotificationsRead).Methods(http.MethodPatch)
	api.HandleFunc("/promos", s.handlePromos).Methods(http.MethodGet)

	// Search & setup
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/seed", s.handleSeed).Methods(http.MethodPost)
	api.HandleFunc("/setup-instructions", s.handleSetupInstructions).Methods(http.MethodGet)
}

// fail writes err through the error taxonomy.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteServiceError(w, r, s.log, err)
}
