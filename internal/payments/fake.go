package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeProcessor is an in-memory Processor for tests.
type FakeProcessor struct {
	mu sync.Mutex

	customers      map[string]*Customer
	paymentMethods map[string]*PaymentMethod
	intents        map[string]*Intent
	seq            int

	// CreatedIntents and SetupIntents record every create call.
	CreatedIntents []IntentParams
	SetupIntents   []SetupIntentParams

	// Error injection
	SearchErr error
	ListErr   error
	ChargeErr error // returned by confirming CreatePaymentIntent calls

	// ConfirmStatus is the status given to confirmed intents; defaults to succeeded.
	ConfirmStatus string
}

// NewFakeProcessor creates an empty fake processor.
func NewFakeProcessor() *FakeProcessor {
	return &FakeProcessor{
		customers:      make(map[string]*Customer),
		paymentMethods: make(map[string]*PaymentMethod),
		intents:        make(map[string]*Intent),
	}
}

func (f *FakeProcessor) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

// AddCustomer registers a customer tagged with userID.
func (f *FakeProcessor) AddCustomer(userID, email string) *Customer {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &Customer{ID: f.nextID("cus"), Email: email, Metadata: map[string]string{userIDMetadataKey: userID}}
	f.customers[c.ID] = c
	cp := *c
	return &cp
}

// AddPaymentMethod attaches a card to a customer.
func (f *FakeProcessor) AddPaymentMethod(customerID, brand, last4 string) *PaymentMethod {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm := &PaymentMethod{ID: f.nextID("pm"), CustomerID: customerID, Brand: brand, Last4: last4, ExpMonth: 12, ExpYear: 2030}
	f.paymentMethods[pm.ID] = pm
	cp := *pm
	return &cp
}

// AddIntent stores an intent as if the client had completed it.
func (f *FakeProcessor) AddIntent(intent Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.ID] = &intent
}

// DefaultPaymentMethod returns the customer's default method id.
func (f *FakeProcessor) DefaultPaymentMethod(customerID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.customers[customerID]; ok {
		return c.DefaultPaymentMethodID
	}
	return ""
}

// CustomerCount returns the number of customers.
func (f *FakeProcessor) CustomerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customers)
}

// =============================================================================
// Processor
// =============================================================================

func (f *FakeProcessor) SearchCustomers(ctx context.Context, query string, limit int64) ([]Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	// metadata['user_id']:'<id>'
	want := strings.TrimSuffix(strings.TrimPrefix(query, "metadata['user_id']:'"), "'")
	var out []Customer
	for _, c := range f.customers {
		if c.Metadata[userIDMetadataKey] == want && int64(len(out)) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *FakeProcessor) ListCustomers(ctx context.Context, email string, limit int64) ([]Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []Customer
	for _, c := range f.customers {
		if email != "" && c.Email != email {
			continue
		}
		if int64(len(out)) >= limit {
			break
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *FakeProcessor) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	c := &Customer{ID: f.nextID("cus"), Email: email, Metadata: md}
	f.customers[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *FakeProcessor) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return fmt.Errorf("no such customer: %s", customerID)
	}
	c.DefaultPaymentMethodID = paymentMethodID
	return nil
}

func (f *FakeProcessor) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.paymentMethods[id]
	if !ok {
		return nil, fmt.Errorf("no such payment_method: %s", id)
	}
	cp := *pm
	return &cp, nil
}

func (f *FakeProcessor) ListCardPaymentMethods(ctx context.Context, customerID string, limit int64) ([]PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []PaymentMethod{}
	for _, pm := range f.paymentMethods {
		if pm.CustomerID == customerID && int64(len(out)) < limit {
			out = append(out, *pm)
		}
	}
	return out, nil
}

func (f *FakeProcessor) CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedIntents = append(f.CreatedIntents, params)
	if params.Confirm && f.ChargeErr != nil {
		return nil, f.ChargeErr
	}

	intent := &Intent{
		ID:              f.nextID("pi"),
		Status:          "requires_payment_method",
		Currency:        params.Currency,
		Amount:          params.Amount,
		CustomerID:      params.CustomerID,
		PaymentMethodID: params.PaymentMethodID,
		Metadata:        params.Metadata,
	}
	intent.ClientSecret = intent.ID + "_secret"
	if params.Confirm {
		intent.Status = StatusSucceeded
		if f.ConfirmStatus != "" {
			intent.Status = f.ConfirmStatus
		}
		if intent.Status == StatusSucceeded {
			intent.AmountReceived = params.Amount
		}
	}
	f.intents[intent.ID] = intent
	cp := *intent
	return &cp, nil
}

func (f *FakeProcessor) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", id)
	}
	cp := *intent
	return &cp, nil
}

func (f *FakeProcessor) CreateSetupIntent(ctx context.Context, params SetupIntentParams) (*SetupIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetupIntents = append(f.SetupIntents, params)
	id := f.nextID("seti")
	return &SetupIntent{ID: id, ClientSecret: id + "_secret"}, nil
}
