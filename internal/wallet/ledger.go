// Package wallet manages stored-value balances.
//
// Balance flow:
//  1. Read the current wallet row
//  2. Check funds (debits only)
//  3. Write the new balance, conditional on the balance read in step 1
//  4. Append a signed wallet transaction
//
// A write that loses a race surfaces as database.ErrConflict instead of
// overwriting the concurrent change.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/pkg/logger"
)

// RecentTransactions is how many transactions Balance returns.
const RecentTransactions = 20

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrAlreadyApplied    = errors.New("payment intent already applied")
)

// Entry describes the transaction row written with a balance change.
type Entry struct {
	Type            string
	Description     string
	PaymentIntentID *string
	OrderID         *string
}

// Result is the outcome of a credit or debit.
type Result struct {
	Balance     decimal.Decimal
	Transaction database.WalletTransaction
}

// Summary is a wallet balance with its most recent transactions.
type Summary struct {
	Balance      decimal.Decimal              `json:"balance"`
	Transactions []database.WalletTransaction `json:"transactions"`
}

// Ledger applies balance changes to wallets.
type Ledger struct {
	repo    database.WalletRepository
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLedger creates a wallet ledger.
func NewLedger(repo database.WalletRepository, log *logger.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, log: log, metrics: m, now: time.Now}
}

// =============================================================================
// Reads
// =============================================================================

// Balance returns the balance and recent transactions, creating an empty wallet on first access.
func (l *Ledger) Balance(ctx context.Context, userID string) (*Summary, error) {
	w, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := l.repo.ListWalletTransactions(ctx, userID, RecentTransactions)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return &Summary{Balance: w.Balance, Transactions: txs}, nil
}

// GetOrCreate returns the user's wallet, creating a zero-balance one if missing.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*database.Wallet, error) {
	w, err := l.repo.GetWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	now := l.now().UTC()
	w = &database.Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.repo.CreateWallet(ctx, w); err != nil {
		// Another request created it first.
		if database.IsConflict(err) {
			return l.repo.GetWallet(ctx, userID)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// =============================================================================
// Writes
// =============================================================================

// Credit adds amount to the user's wallet, creating it if needed. When the
// entry carries a payment intent id that was already applied, Credit fails
// with ErrAlreadyApplied and nothing is written.
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, entry Entry) (*Result, error) {
	if entry.PaymentIntentID != nil {
		applied, err := l.repo.PaymentIntentApplied(ctx, *entry.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("check payment intent: %w", err)
		}
		if applied {
			return nil, ErrAlreadyApplied
		}
	}

	w, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	res, err := l.apply(ctx, w, amount, entry)
	if err != nil {
		return nil, err
	}
	l.metrics.RecordWalletCredit(entry.Type)
	return res, nil
}

// Debit subtracts amount from an existing wallet.
func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, entry Entry) (*Result, error) {
	w, err := l.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if w.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	res, err := l.apply(ctx, w, amount.Neg(), entry)
	if err != nil {
		return nil, err
	}
	l.metrics.RecordWalletDebit(entry.Type)
	return res, nil
}

// apply writes balance+delta and appends the transaction row.
func (l *Ledger) apply(ctx context.Context, w *database.Wallet, delta decimal.Decimal, entry Entry) (*Result, error) {
	now := l.now().UTC()
	newBalance := w.Balance.Add(delta)

	if err := l.repo.UpdateWalletBalance(ctx, w.UserID, w.Balance, newBalance, now); err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}

	tx := database.WalletTransaction{
		ID:              uuid.New().String(),
		UserID:          w.UserID,
		Amount:          delta,
		Type:            entry.Type,
		Description:     entry.Description,
		PaymentIntentID: entry.PaymentIntentID,
		OrderID:         entry.OrderID,
		CreatedAt:       now,
	}
	if err := l.repo.CreateWalletTransaction(ctx, &tx); err != nil {
		l.revert(ctx, w, newBalance)
		if database.IsConflict(err) && entry.PaymentIntentID != nil {
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("create wallet transaction: %w", err)
	}

	l.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": w.UserID,
		"type":    entry.Type,
		"amount":  delta.String(),
		"balance": newBalance.String(),
	}).Info("wallet balance updated")

	return &Result{Balance: newBalance, Transaction: tx}, nil
}

// revert restores the balance read before a failed transaction insert.
func (l *Ledger) revert(ctx context.Context, w *database.Wallet, written decimal.Decimal) {
	if err := l.repo.UpdateWalletBalance(ctx, w.UserID, written, w.Balance, l.now().UTC()); err != nil {
		l.log.WithContext(ctx).WithError(err).
			WithField("user_id", w.UserID).
			Error("failed to revert wallet balance after transaction insert failure")
	}
}

// FormatAmount renders amount as dollars with two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
