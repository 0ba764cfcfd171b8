// Package promos serves the home-screen promotion carousel.
package promos

import (
	"context"

	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/pkg/logger"
)

// Defaults are shown when the datastore has no active promos.
var Defaults = []database.Promo{
	{ID: "promo-1", Title: "Exclusive Offer", Subtitle: "Save up to 30% off", DiscountText: "30% OFF", BgColor: "#FFF8DC", AccentColor: "#FF9800", Type: "discount", IsActive: true},
	{ID: "promo-2", Title: "Happy Hour", Subtitle: "2-5 PM Daily", DiscountText: "BOGO", BgColor: "#E3F2FD", AccentColor: "#1E88E5", Type: "bogo", IsActive: true, SortOrder: 1},
	{ID: "promo-3", Title: "New: Summer Menu", Subtitle: "Try our new cold brews", DiscountText: "NEW", BgColor: "#E8F5E9", AccentColor: "#4CAF50", Type: "announcement", IsActive: true, SortOrder: 2},
	{ID: "promo-4", Title: "Double Points", Subtitle: "Earn 2x beans this weekend", DiscountText: "2X", BgColor: "#FFF3E0", AccentColor: "#FF5722", Type: "rewards", IsActive: true, SortOrder: 3},
}

type Service struct {
	repo database.PromoRepository
	log  *logger.Logger
}

func NewService(repo database.PromoRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Active returns active promos by sort_order. It never fails: an empty
// datastore yields Defaults and an error yields the first default only.
func (s *Service) Active(ctx context.Context) []database.Promo {
	promos, err := s.repo.ListActivePromos(ctx)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("listing promos failed, serving fallback")
		return []database.Promo{Defaults[0]}
	}
	if len(promos) == 0 {
		out := make([]database.Promo, len(Defaults))
		copy(out, Defaults)
		return out
	}
	return promos
}
