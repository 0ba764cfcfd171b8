package payments

import (
	"context"
	"fmt"

	"github.com/beanhop/backend/pkg/logger"
)

const userIDMetadataKey = "user_id"

// CustomerLookup is one strategy for finding the processor customer of an app user.
// It returns nil, nil when the strategy ran but found nothing.
type CustomerLookup interface {
	Name() string
	Find(ctx context.Context, p Processor, userID, email string) (*Customer, error)
}

// SearchByTag finds the customer through a metadata search on user_id.
type SearchByTag struct{}

func (SearchByTag) Name() string { return "search_by_tag" }

func (SearchByTag) Find(ctx context.Context, p Processor, userID, email string) (*Customer, error) {
	customers, err := p.SearchCustomers(ctx, fmt.Sprintf("metadata['%s']:'%s'", userIDMetadataKey, userID), 1)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// ListByEmail scans customers registered with the given email. Skipped without an email.
type ListByEmail struct{}

func (ListByEmail) Name() string { return "list_by_email" }

func (ListByEmail) Find(ctx context.Context, p Processor, userID, email string) (*Customer, error) {
	if email == "" {
		return nil, nil
	}
	customers, err := p.ListCustomers(ctx, email, 10)
	if err != nil {
		return nil, err
	}
	return matchUserID(customers, userID), nil
}

// ListAll scans the first page of customers.
type ListAll struct{}

func (ListAll) Name() string { return "list_all" }

func (ListAll) Find(ctx context.Context, p Processor, userID, email string) (*Customer, error) {
	customers, err := p.ListCustomers(ctx, "", 100)
	if err != nil {
		return nil, err
	}
	return matchUserID(customers, userID), nil
}

func matchUserID(customers []Customer, userID string) *Customer {
	for i := range customers {
		if customers[i].Metadata[userIDMetadataKey] == userID {
			return &customers[i]
		}
	}
	return nil
}

// =============================================================================
// Resolver
// =============================================================================

// CustomerResolver maps app users to processor customers.
type CustomerResolver struct {
	processor Processor
	lookups   []CustomerLookup
	log       *logger.Logger
}

// DefaultLookups is the lookup order used when none is given.
func DefaultLookups() []CustomerLookup {
	return []CustomerLookup{SearchByTag{}, ListByEmail{}, ListAll{}}
}

func NewCustomerResolver(p Processor, log *logger.Logger, lookups ...CustomerLookup) *CustomerResolver {
	if len(lookups) == 0 {
		lookups = DefaultLookups()
	}
	return &CustomerResolver{processor: p, lookups: lookups, log: log}
}

// Find returns the first customer any lookup finds, or nil.
// A failing lookup is logged and the next one is tried.
func (r *CustomerResolver) Find(ctx context.Context, userID, email string) *Customer {
	for _, lookup := range r.lookups {
		customer, err := lookup.Find(ctx, r.processor, userID, email)
		if err != nil {
			r.log.WithContext(ctx).WithError(err).
				WithField("lookup", lookup.Name()).
				Warn("customer lookup failed, trying next")
			continue
		}
		if customer != nil {
			return customer
		}
	}
	return nil
}

// GetOrCreate returns the user's customer, creating one tagged with user_id when missing.
func (r *CustomerResolver) GetOrCreate(ctx context.Context, userID, email string) (*Customer, error) {
	if customer := r.Find(ctx, userID, email); customer != nil {
		return customer, nil
	}
	customer, err := r.processor.CreateCustomer(ctx, email, map[string]string{userIDMetadataKey: userID})
	if err != nil {
		return nil, err
	}
	r.log.WithContext(ctx).WithField("customer_id", customer.ID).Info("created processor customer")
	return customer, nil
}
