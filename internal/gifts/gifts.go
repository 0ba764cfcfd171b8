// Package gifts moves wallet value between users as redeemable gift cards.
package gifts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/internal/wallet"
	"github.com/beanhop/backend/pkg/logger"
)

// ErrAlreadyRedeemed is returned when redeeming a gift that is no longer pending.
var ErrAlreadyRedeemed = errors.New("gift already redeemed")

type SendRequest struct {
	SenderID       string          `json:"sender_id"`
	RecipientEmail string          `json:"recipient_email"`
	Amount         decimal.Decimal `json:"amount"`
	Message        *string         `json:"message"`
}

type SendResult struct {
	Success          bool            `json:"success"`
	GiftID           string          `json:"gift_id"`
	GiftCode         string          `json:"gift_code"`
	Amount           decimal.Decimal `json:"amount"`
	NewWalletBalance decimal.Decimal `json:"new_wallet_balance"`
}

type RedeemRequest struct {
	GiftID string `json:"gift_id"`
	UserID string `json:"user_id"`
}

type RedeemResult struct {
	Success          bool            `json:"success"`
	AmountAdded      decimal.Decimal `json:"amount_added"`
	NewWalletBalance decimal.Decimal `json:"new_wallet_balance"`
}

// Listing is a user's sent and received gifts.
type Listing struct {
	Sent     []database.Gift `json:"sent"`
	Received []database.Gift `json:"received"`
}

type Service struct {
	repo    database.GiftRepository
	ledger  *wallet.Ledger
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo database.GiftRepository, ledger *wallet.Ledger, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, ledger: ledger, log: log, metrics: m, now: time.Now}
}

// Send debits the sender and creates a pending gift for the recipient.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if !req.Amount.IsPositive() {
		return nil, svcerrors.Validation("Amount must be greater than 0")
	}
	if req.SenderID == "" || req.RecipientEmail == "" {
		return nil, svcerrors.Validation("sender_id and recipient_email are required")
	}

	debit, err := s.ledger.Debit(ctx, req.SenderID, req.Amount, wallet.Entry{
		Type:        database.WalletTxGiftSent,
		Description: "Gift sent to " + req.RecipientEmail,
	})
	if err != nil {
		return nil, wallet.MapLedgerError(err, "Wallet not found. Please add funds first.")
	}

	gift := &database.Gift{
		ID:             uuid.New().String(),
		SenderID:       req.SenderID,
		RecipientEmail: req.RecipientEmail,
		Amount:         req.Amount,
		Message:        req.Message,
		Code:           database.NewCode("GIFT-", 8),
		Status:         database.GiftPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateGift(ctx, gift); err != nil {
		s.refundSender(ctx, req)
		return nil, svcerrors.Internal(err.Error(), err)
	}
	s.metrics.RecordGiftEvent("sent")

	return &SendResult{
		Success:          true,
		GiftID:           gift.ID,
		GiftCode:         gift.Code,
		Amount:           req.Amount,
		NewWalletBalance: debit.Balance,
	}, nil
}

// Redeem claims a pending gift into the redeemer's wallet.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	gift, err := s.repo.GetGift(ctx, req.GiftID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound("Gift not found")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	if gift.Status != database.GiftPending {
		return nil, alreadyRedeemed()
	}

	// Claim the gift first so a concurrent redeem cannot also credit it.
	if err := s.repo.MarkGiftRedeemed(ctx, gift.ID, req.UserID, s.now().UTC()); err != nil {
		if database.IsConflict(err) {
			return nil, alreadyRedeemed()
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}

	credit, err := s.ledger.Credit(ctx, req.UserID, gift.Amount, wallet.Entry{
		Type:        database.WalletTxGiftReceived,
		Description: "Gift card redeemed - " + wallet.FormatAmount(gift.Amount),
	})
	if err != nil {
		s.release(ctx, gift.ID, req.UserID)
		return nil, wallet.MapLedgerError(err, "Wallet not found")
	}
	s.metrics.RecordGiftEvent("redeemed")

	return &RedeemResult{Success: true, AmountAdded: gift.Amount, NewWalletBalance: credit.Balance}, nil
}

// List returns the gifts a user sent and, when email is given, received.
func (s *Service) List(ctx context.Context, userID, email string) (*Listing, error) {
	sent, err := s.repo.ListGiftsBySender(ctx, userID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	received := []database.Gift{}
	if email != "" {
		received, err = s.repo.ListGiftsByRecipient(ctx, email)
		if err != nil {
			return nil, svcerrors.Internal(err.Error(), err)
		}
	}
	return &Listing{Sent: sent, Received: received}, nil
}

// refundSender credits back a debit whose gift row was never written.
func (s *Service) refundSender(ctx context.Context, req SendRequest) {
	_, err := s.ledger.Credit(ctx, req.SenderID, req.Amount, wallet.Entry{
		Type:        database.WalletTxRefund,
		Description: "Gift to " + req.RecipientEmail + " not sent - refund",
	})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).
			WithField("user_id", req.SenderID).
			WithField("amount", req.Amount.String()).
			Error("failed to refund sender after gift insert failure")
	}
}

// release hands a claimed gift back to pending after the credit failed.
func (s *Service) release(ctx context.Context, giftID, userID string) {
	if err := s.repo.ReleaseGift(ctx, giftID, userID); err != nil {
		s.log.WithContext(ctx).WithError(err).
			WithField("gift_id", giftID).
			Error("failed to release gift after wallet credit failure")
	}
}

func alreadyRedeemed() error {
	return svcerrors.Wrap(ErrAlreadyRedeemed, svcerrors.CodeConflict,
		"Gift has already been redeemed or expired", http.StatusConflict)
}
