// Package loyalty keeps the points ledger: earning on orders, redeeming for
// rewards, and issuing the vouchers redemptions produce.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/pkg/logger"
)

// DefaultTransactionLimit is the page size for Transactions.
const DefaultTransactionLimit = 50

// ErrInsufficientPoints is returned when a redemption costs more than the balance.
var ErrInsufficientPoints = errors.New("insufficient points")

// Loyalty levels
const (
	LevelBronze   = "Bronze"
	LevelSilver   = "Silver"
	LevelGold     = "Gold"
	LevelPlatinum = "Platinum"
)

// Level returns the tier for a points total.
func Level(points int) string {
	switch {
	case points >= 2000:
		return LevelPlatinum
	case points >= 500:
		return LevelGold
	case points >= 100:
		return LevelSilver
	default:
		return LevelBronze
	}
}

// Total folds a ledger into its points balance.
func Total(txs []database.LoyaltyTransaction) int {
	total := 0
	for _, tx := range txs {
		total += tx.PointsChange
	}
	return total
}

// PointsFor returns the points an order subtotal earns: one per whole dollar.
func PointsFor(subtotal decimal.Decimal) int {
	return int(subtotal.Floor().IntPart())
}

// Reward is a redeemable reward type.
type Reward struct {
	Type        string
	Cost        int
	Description string
}

// Rewards lists every redeemable reward by type.
var Rewards = map[string]Reward{
	"free_drink":   {Type: "free_drink", Cost: 500, Description: "Redeemed: Free Drink"},
	"size_upgrade": {Type: "size_upgrade", Cost: 100, Description: "Redeemed: Size Upgrade"},
	"free_pastry":  {Type: "free_pastry", Cost: 300, Description: "Redeemed: Free Pastry"},
}

// VoucherExpiry returns midnight UTC on the first day of the month after next.
func VoucherExpiry(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+2, 1, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// Service
// =============================================================================

// Points is the points summary for a user.
type Points struct {
	UserID       string `json:"user_id"`
	TotalPoints  int    `json:"total_points"`
	LoyaltyLevel string `json:"loyalty_level"`
}

type RedeemRequest struct {
	UserID     string `json:"user_id"`
	RewardType string `json:"reward_type"`
	// PointsCost is accepted from clients but the server-side cost is authoritative.
	PointsCost int `json:"points_cost"`
}

type RedeemResult struct {
	Success         bool   `json:"success"`
	VoucherCode     string `json:"voucher_code"`
	RewardType      string `json:"reward_type"`
	PointsDeducted  int    `json:"points_deducted"`
	RemainingPoints int    `json:"remaining_points"`
}

type Service struct {
	repo    database.LoyaltyRepository
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo database.LoyaltyRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, log: log, metrics: m, now: time.Now}
}

// Points returns the user's total and tier.
func (s *Service) Points(ctx context.Context, userID string) (*Points, error) {
	total, err := s.total(ctx, userID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &Points{UserID: userID, TotalPoints: total, LoyaltyLevel: Level(total)}, nil
}

func (s *Service) total(ctx context.Context, userID string) (int, error) {
	txs, err := s.repo.ListLoyaltyTransactions(ctx, userID, 0)
	if err != nil {
		return 0, fmt.Errorf("list loyalty transactions: %w", err)
	}
	return Total(txs), nil
}

// Transactions returns up to limit ledger rows, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]database.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	txs, err := s.repo.ListLoyaltyTransactions(ctx, userID, limit)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return txs, nil
}

// Earn records the points an order earned. Nothing is written for zero points.
func (s *Service) Earn(ctx context.Context, order *database.Order) error {
	if order.PointsEarned <= 0 {
		return nil
	}
	shopID, orderID := order.ShopID, order.ID
	tx := &database.LoyaltyTransaction{
		ID:              uuid.New().String(),
		UserID:          order.UserID,
		ShopID:          &shopID,
		OrderID:         &orderID,
		PointsChange:    order.PointsEarned,
		TransactionType: database.LoyaltyEarn,
		Description:     "Order #" + order.OrderNumber,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.CreateLoyaltyTransaction(ctx, tx); err != nil {
		return fmt.Errorf("create loyalty transaction: %w", err)
	}
	s.metrics.RecordLoyaltyPoints(database.LoyaltyEarn, order.PointsEarned)
	return nil
}

// Redeem spends points on a reward and issues a voucher for it.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	reward, ok := Rewards[req.RewardType]
	if !ok {
		return nil, svcerrors.Validation("Invalid reward type")
	}

	total, err := s.total(ctx, req.UserID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	if total < reward.Cost {
		return nil, svcerrors.Wrap(ErrInsufficientPoints, svcerrors.CodeValidation,
			fmt.Sprintf("Insufficient points. You have %d, need %d", total, reward.Cost),
			http.StatusBadRequest)
	}

	now := s.now().UTC()
	tx := &database.LoyaltyTransaction{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		PointsChange:    -reward.Cost,
		TransactionType: database.LoyaltyRedeem,
		Description:     reward.Description,
		CreatedAt:       now,
	}
	if err := s.repo.CreateLoyaltyTransaction(ctx, tx); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	s.metrics.RecordLoyaltyPoints(database.LoyaltyRedeem, reward.Cost)

	voucher := &database.RewardVoucher{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		RewardType: reward.Type,
		Code:       database.NewCode("RWD-", 8),
		Status:     database.VoucherActive,
		ExpiresAt:  VoucherExpiry(now),
		CreatedAt:  now,
	}
	if err := s.repo.CreateRewardVoucher(ctx, voucher); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":     req.UserID,
		"reward_type": reward.Type,
		"cost":        reward.Cost,
	}).Info("reward redeemed")

	return &RedeemResult{
		Success:         true,
		VoucherCode:     voucher.Code,
		RewardType:      reward.Type,
		PointsDeducted:  reward.Cost,
		RemainingPoints: total - reward.Cost,
	}, nil
}

// Vouchers returns the user's active vouchers.
func (s *Service) Vouchers(ctx context.Context, userID string) ([]database.RewardVoucher, error) {
	vouchers, err := s.repo.ListActiveVouchers(ctx, userID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return vouchers, nil
}
