package wallet

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/locks"
	"github.com/beanhop/backend/internal/payments"
	"github.com/beanhop/backend/pkg/logger"
)

// topUpLockTTL bounds how long one top-up may hold its payment intent lock.
const topUpLockTTL = 30 * time.Second

// IntentSource verifies processor payment intents.
type IntentSource interface {
	Configured() bool
	GetPaymentIntent(ctx context.Context, id string) (*payments.Intent, error)
	PinDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
}

// Service implements the wallet endpoints.
type Service struct {
	ledger  *Ledger
	intents IntentSource
	locker  locks.Locker
	log     *logger.Logger
}

// NewService creates the wallet service.
func NewService(ledger *Ledger, intents IntentSource, locker locks.Locker, log *logger.Logger) *Service {
	return &Service{ledger: ledger, intents: intents, locker: locker, log: log}
}

type TopUpRequest struct {
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentIntentID string          `json:"payment_intent_id"`
}

type TopUpResult struct {
	Success         bool            `json:"success"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	TransactionID   string          `json:"transaction_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
}

type PayResult struct {
	Success    bool            `json:"success"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// Balance returns the wallet summary for userID.
func (s *Service) Balance(ctx context.Context, userID string) (*Summary, error) {
	summary, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return summary, nil
}

// TopUp credits a wallet with a succeeded payment intent, at most once per intent.
func (s *Service) TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error) {
	if !req.Amount.IsPositive() {
		return nil, svcerrors.Validation("Amount must be greater than 0")
	}
	if s.intents == nil || !s.intents.Configured() {
		return nil, svcerrors.Wrap(payments.ErrNotConfigured, svcerrors.CodeServiceUnavailable,
			"Stripe is not configured on the server", http.StatusServiceUnavailable)
	}
	if req.PaymentIntentID == "" {
		return nil, svcerrors.Validation("payment_intent_id is required")
	}

	lock, err := s.locker.TryLock(ctx, "wallet-topup:"+req.PaymentIntentID, topUpLockTTL)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, svcerrors.Conflict("This payment is already being applied")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("failed to release top-up lock")
		}
	}()

	intent, err := s.verifyTopUpIntent(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.intents.PinDefaultPaymentMethod(ctx, intent.CustomerID, intent.PaymentMethodID); err != nil {
		return nil, err
	}

	amount := payments.FromCents(intent.ReceivedCents())
	intentID := req.PaymentIntentID
	res, err := s.ledger.Credit(ctx, req.UserID, amount, Entry{
		Type:            database.WalletTxTopUp,
		Description:     "Added " + FormatAmount(amount) + " to wallet",
		PaymentIntentID: &intentID,
	})
	if err != nil {
		return nil, MapLedgerError(err, "Wallet not found")
	}

	return &TopUpResult{
		Success:         true,
		NewBalance:      res.Balance,
		TransactionID:   res.Transaction.ID,
		PaymentIntentID: req.PaymentIntentID,
	}, nil
}

func (s *Service) verifyTopUpIntent(ctx context.Context, req TopUpRequest) (*payments.Intent, error) {
	applied, err := s.ledger.repo.PaymentIntentApplied(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	if applied {
		return nil, alreadyApplied(ErrAlreadyApplied)
	}

	intent, err := s.intents.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payments.StatusSucceeded {
		return nil, svcerrors.Validation("Payment is not completed")
	}
	if intent.Currency != payments.Currency {
		return nil, svcerrors.Validation("Unsupported payment currency")
	}
	if intent.Metadata["purpose"] != payments.PurposeWalletTopUp || intent.Metadata["user_id"] != req.UserID {
		return nil, svcerrors.Validation("Payment intent does not match this wallet top-up")
	}
	if intent.ReceivedCents() != payments.ToCents(req.Amount) {
		return nil, svcerrors.Validation("Payment amount mismatch")
	}
	return intent, nil
}

// Pay debits the wallet for an order.
func (s *Service) Pay(ctx context.Context, userID string, amount decimal.Decimal, orderID *string) (*PayResult, error) {
	if !amount.IsPositive() {
		return nil, svcerrors.Validation("Amount must be greater than 0")
	}
	res, err := s.ledger.Debit(ctx, userID, amount, Entry{
		Type:        database.WalletTxPayment,
		Description: "Order payment - " + FormatAmount(amount),
		OrderID:     orderID,
	})
	if err != nil {
		return nil, MapLedgerError(err, "Wallet not found")
	}
	return &PayResult{Success: true, NewBalance: res.Balance}, nil
}

// =============================================================================
// Error mapping
// =============================================================================

// MapLedgerError maps ledger failures onto API errors. notFound is the
// message used when the wallet does not exist.
func MapLedgerError(err error, notFound string) error {
	switch {
	case svcerrors.GetServiceError(err) != nil:
		return err
	case errors.Is(err, ErrAlreadyApplied):
		return alreadyApplied(err)
	case errors.Is(err, ErrInsufficientFunds):
		return svcerrors.Wrap(err, svcerrors.CodeValidation, "Insufficient wallet balance", http.StatusBadRequest)
	case database.IsNotFound(err):
		return svcerrors.Wrap(err, svcerrors.CodeValidation, notFound, http.StatusBadRequest)
	case database.IsConflict(err):
		return svcerrors.Wrap(err, svcerrors.CodeConflict, "Wallet balance changed, please retry", http.StatusConflict)
	default:
		return svcerrors.Internal(err.Error(), err)
	}
}

func alreadyApplied(err error) error {
	return svcerrors.Wrap(err, svcerrors.CodeConflict, "This payment has already been applied", http.StatusConflict)
}
