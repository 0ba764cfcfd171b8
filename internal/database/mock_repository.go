package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory implementation of RepositoryInterface for testing.
type MockRepository struct {
	mu sync.RWMutex

	// Data stores
	shops         map[string]*Shop
	menuItems     map[string]*MenuItem
	orders        map[string]*Order
	loyaltyTxs    []*LoyaltyTransaction
	vouchers      []*RewardVoucher
	wallets       map[string]*Wallet
	walletTxs     []*WalletTransaction
	gifts         map[string]*Gift
	notifications []*Notification
	promos        []*Promo

	// Error injection for testing error paths
	ErrorOnNextCall error
}

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	m := &MockRepository{}
	m.reset()
	return m
}

// checkError returns and clears any injected error. Callers hold m.mu.
func (m *MockRepository) checkError() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return nil
}

// FailNext makes the next repository call return err.
func (m *MockRepository) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorOnNextCall = err
}

// Reset clears all data in the mock repository.
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MockRepository) reset() {
	m.shops = make(map[string]*Shop)
	m.menuItems = make(map[string]*MenuItem)
	m.orders = make(map[string]*Order)
	m.loyaltyTxs = nil
	m.vouchers = nil
	m.wallets = make(map[string]*Wallet)
	m.walletTxs = nil
	m.gifts = make(map[string]*Gift)
	m.notifications = nil
	m.promos = nil
	m.ErrorOnNextCall = nil
}

// AddPromo seeds a promo row.
func (m *MockRepository) AddPromo(p Promo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos = append(m.promos, &p)
}

// WalletTransactions returns every wallet ledger row in insertion order.
func (m *MockRepository) WalletTransactions() []WalletTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WalletTransaction, 0, len(m.walletTxs))
	for _, tx := range m.walletTxs {
		out = append(out, *tx)
	}
	return out
}

// Ensure MockRepository implements RepositoryInterface
var _ RepositoryInterface = (*MockRepository)(nil)

func (m *MockRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkError()
}

// =============================================================================
// Catalog
// =============================================================================

func (m *MockRepository) ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []Shop{}
	for _, s := range m.shops {
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		if filter.City != nil && s.City != *filter.City {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) GetShop(ctx context.Context, id string) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	s, ok := m.shops[id]
	if !ok {
		return nil, fmt.Errorf("get shop %s: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) CreateShops(ctx context.Context, shops []Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	for i := range shops {
		if _, exists := m.shops[shops[i].ID]; exists {
			return fmt.Errorf("create shop %s: %w", shops[i].ID, ErrConflict)
		}
	}
	for i := range shops {
		s := shops[i]
		m.shops[s.ID] = &s
	}
	return nil
}

func (m *MockRepository) DeleteAllShops(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	m.shops = make(map[string]*Shop)
	return nil
}

func (m *MockRepository) ListMenuItems(ctx context.Context, filter MenuFilter) ([]MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []MenuItem{}
	for _, it := range m.menuItems {
		if filter.ShopID != nil && it.ShopID != *filter.ShopID {
			continue
		}
		if filter.AvailableOnly && !it.IsAvailable {
			continue
		}
		if filter.Category != nil && it.Category != *filter.Category {
			continue
		}
		out = append(out, *it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRepository) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	it, ok := m.menuItems[id]
	if !ok {
		return nil, fmt.Errorf("get menu item %s: %w", id, ErrNotFound)
	}
	cp := *it
	return &cp, nil
}

func (m *MockRepository) CreateMenuItems(ctx context.Context, items []MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	for i := range items {
		if _, exists := m.menuItems[items[i].ID]; exists {
			return fmt.Errorf("create menu item %s: %w", items[i].ID, ErrConflict)
		}
	}
	for i := range items {
		it := items[i]
		m.menuItems[it.ID] = &it
	}
	return nil
}

func (m *MockRepository) DeleteAllMenuItems(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	m.menuItems = make(map[string]*MenuItem)
	return nil
}

// =============================================================================
// Orders
// =============================================================================

func (m *MockRepository) CreateOrder(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if _, exists := m.orders[order.ID]; exists {
		return fmt.Errorf("create order %s: %w", order.ID, ErrConflict)
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("get order %s: %w", id, ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (m *MockRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []Order{}
	for _, o := range m.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockRepository) UpdateOrder(ctx context.Context, id string, update OrderUpdate) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("update order %s: %w", id, ErrNotFound)
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.StripePaymentID != nil {
		pid := *update.StripePaymentID
		o.StripePaymentID = &pid
	}
	o.UpdatedAt = update.UpdatedAt
	return cloneOrder(o), nil
}

// cloneOrder copies o including its item snapshot.
func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = o.Items.Clone()
	return &cp
}

// =============================================================================
// Loyalty
// =============================================================================

func (m *MockRepository) CreateLoyaltyTransaction(ctx context.Context, tx *LoyaltyTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	cp := *tx
	m.loyaltyTxs = append(m.loyaltyTxs, &cp)
	return nil
}

func (m *MockRepository) ListLoyaltyTransactions(ctx context.Context, userID string, limit int) ([]LoyaltyTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []LoyaltyTransaction{}
	for i := len(m.loyaltyTxs) - 1; i >= 0; i-- {
		if m.loyaltyTxs[i].UserID == userID {
			out = append(out, *m.loyaltyTxs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) CreateRewardVoucher(ctx context.Context, voucher *RewardVoucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	cp := *voucher
	m.vouchers = append(m.vouchers, &cp)
	return nil
}

func (m *MockRepository) ListActiveVouchers(ctx context.Context, userID string) ([]RewardVoucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []RewardVoucher{}
	for _, v := range m.vouchers {
		if v.UserID == userID && v.Status == VoucherActive {
			out = append(out, *v)
		}
	}
	return out, nil
}

// =============================================================================
// Wallet
// =============================================================================

func (m *MockRepository) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	w, ok := m.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("get wallet %s: %w", userID, ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (m *MockRepository) CreateWallet(ctx context.Context, wallet *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if _, exists := m.wallets[wallet.UserID]; exists {
		return fmt.Errorf("create wallet %s: %w", wallet.UserID, ErrConflict)
	}
	cp := *wallet
	m.wallets[wallet.UserID] = &cp
	return nil
}

func (m *MockRepository) UpdateWalletBalance(ctx context.Context, userID string, expected, newBalance decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	w, ok := m.wallets[userID]
	if !ok || !w.Balance.Equal(expected) {
		return fmt.Errorf("update wallet balance for %s: %w", userID, ErrConflict)
	}
	w.Balance = newBalance
	w.UpdatedAt = at
	return nil
}

func (m *MockRepository) CreateWalletTransaction(ctx context.Context, tx *WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if tx.PaymentIntentID != nil {
		for _, existing := range m.walletTxs {
			if existing.PaymentIntentID != nil && *existing.PaymentIntentID == *tx.PaymentIntentID {
				return fmt.Errorf("create wallet transaction: %w", ErrConflict)
			}
		}
	}
	cp := *tx
	m.walletTxs = append(m.walletTxs, &cp)
	return nil
}

func (m *MockRepository) ListWalletTransactions(ctx context.Context, userID string, limit int) ([]WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []WalletTransaction{}
	for i := len(m.walletTxs) - 1; i >= 0; i-- {
		if m.walletTxs[i].UserID == userID {
			out = append(out, *m.walletTxs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) PaymentIntentApplied(ctx context.Context, paymentIntentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return false, err
	}
	for _, tx := range m.walletTxs {
		if tx.PaymentIntentID != nil && *tx.PaymentIntentID == paymentIntentID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// Gifts
// =============================================================================

func (m *MockRepository) CreateGift(ctx context.Context, gift *Gift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	cp := *gift
	m.gifts[gift.ID] = &cp
	return nil
}

func (m *MockRepository) GetGift(ctx context.Context, id string) (*Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	g, ok := m.gifts[id]
	if !ok {
		return nil, fmt.Errorf("get gift %s: %w", id, ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (m *MockRepository) MarkGiftRedeemed(ctx context.Context, id, redeemedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	g, ok := m.gifts[id]
	if !ok || g.Status != GiftPending {
		return fmt.Errorf("redeem gift %s: %w", id, ErrConflict)
	}
	g.Status = GiftRedeemed
	g.RedeemedBy = &redeemedBy
	g.RedeemedAt = &at
	return nil
}

func (m *MockRepository) ReleaseGift(ctx context.Context, id, redeemedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	g, ok := m.gifts[id]
	if !ok || g.Status != GiftRedeemed || g.RedeemedBy == nil || *g.RedeemedBy != redeemedBy {
		return fmt.Errorf("release gift %s: %w", id, ErrConflict)
	}
	g.Status = GiftPending
	g.RedeemedBy = nil
	g.RedeemedAt = nil
	return nil
}

func (m *MockRepository) listGifts(match func(*Gift) bool) []Gift {
	out := []Gift{}
	for _, g := range m.gifts {
		if match(g) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockRepository) ListGiftsBySender(ctx context.Context, senderID string) ([]Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	return m.listGifts(func(g *Gift) bool { return g.SenderID == senderID }), nil
}

func (m *MockRepository) ListGiftsByRecipient(ctx context.Context, email string) ([]Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	return m.listGifts(func(g *Gift) bool { return g.RecipientEmail == email }), nil
}

// =============================================================================
// Notifications & Promos
// =============================================================================

func (m *MockRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []Notification{}
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserID == userID {
			out = append(out, *m.notifications[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) CreateNotification(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *MockRepository) MarkNotificationRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	for _, n := range m.notifications {
		if n.ID == id {
			n.Read = true
		}
	}
	return nil
}

func (m *MockRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	for _, n := range m.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (m *MockRepository) ListActivePromos(ctx context.Context) ([]Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []Promo{}
	for _, p := range m.promos {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}
