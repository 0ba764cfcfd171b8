package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor implements Processor on top of the Stripe API.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor creates a Stripe-backed processor. A nil backends value
// uses the live Stripe endpoints.
func NewStripeProcessor(secretKey string, backends *stripe.Backends) *StripeProcessor {
	return &StripeProcessor{api: client.New(secretKey, backends)}
}

// =============================================================================
// Customers
// =============================================================================

func (p *StripeProcessor) SearchCustomers(ctx context.Context, query string, limit int64) ([]Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{Query: query, Limit: stripe.Int64(limit)},
	}
	params.Context = ctx

	var out []Customer
	iter := p.api.Customers.Search(params)
	for iter.Next() && int64(len(out)) < limit {
		out = append(out, customerFromStripe(iter.Customer()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("search customers", err)
	}
	return out, nil
}

func (p *StripeProcessor) ListCustomers(ctx context.Context, email string, limit int64) ([]Customer, error) {
	params := &stripe.CustomerListParams{}
	params.Limit = stripe.Int64(limit)
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}

	var out []Customer
	iter := p.api.Customers.List(params)
	for iter.Next() && int64(len(out)) < limit {
		out = append(out, customerFromStripe(iter.Customer()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("list customers", err)
	}
	return out, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := p.api.Customers.New(params)
	if err != nil {
		return nil, wrapStripeError("create customer", err)
	}
	out := customerFromStripe(c)
	return &out, nil
}

func (p *StripeProcessor) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx

	if _, err := p.api.Customers.Update(customerID, params); err != nil {
		return wrapStripeError("set default payment method", err)
	}
	return nil
}

// =============================================================================
// Payment methods
// =============================================================================

func (p *StripeProcessor) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := p.api.PaymentMethods.Get(id, params)
	if err != nil {
		return nil, wrapStripeError("get payment method", err)
	}
	out := paymentMethodFromStripe(pm)
	return &out, nil
}

func (p *StripeProcessor) ListCardPaymentMethods(ctx context.Context, customerID string, limit int64) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Limit = stripe.Int64(limit)
	params.Context = ctx

	var out []PaymentMethod
	iter := p.api.PaymentMethods.List(params)
	for iter.Next() && int64(len(out)) < limit {
		out = append(out, paymentMethodFromStripe(iter.PaymentMethod()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("list payment methods", err)
	}
	return out, nil
}

// =============================================================================
// Intents
// =============================================================================

func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, in IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
	}
	params.Context = ctx
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	if in.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(in.PaymentMethodID)
	}
	if in.SetupFutureUsage != "" {
		params.SetupFutureUsage = stripe.String(in.SetupFutureUsage)
	}
	if in.AutomaticPaymentMethods {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if in.Confirm {
		params.Confirm = stripe.Bool(true)
	}
	if in.OffSession {
		params.OffSession = stripe.Bool(true)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}
	return intentFromStripe(pi), nil
}

func (p *StripeProcessor) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapStripeError("get payment intent", err)
	}
	return intentFromStripe(pi), nil
}

func (p *StripeProcessor) CreateSetupIntent(ctx context.Context, in SetupIntentParams) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(in.CustomerID),
		AutomaticPaymentMethods: &stripe.SetupIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if in.Usage != "" {
		params.Usage = stripe.String(in.Usage)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	si, err := p.api.SetupIntents.New(params)
	if err != nil {
		return nil, wrapStripeError("create setup intent", err)
	}
	return &SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

// =============================================================================
// Conversions
// =============================================================================

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return &CardError{Code: string(se.Code), Message: se.Msg, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func customerFromStripe(c *stripe.Customer) Customer {
	out := Customer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
	if c.InvoiceSettings != nil && c.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = c.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func paymentMethodFromStripe(pm *stripe.PaymentMethod) PaymentMethod {
	out := PaymentMethod{ID: pm.ID}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = pm.Card.ExpMonth
		out.ExpYear = pm.Card.ExpYear
	}
	return out
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	out := &Intent{
		ID:             pi.ID,
		ClientSecret:   pi.ClientSecret,
		Status:         string(pi.Status),
		Currency:       string(pi.Currency),
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Metadata:       pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
	}
	return out
}
