// Package orders creates and tracks pickup orders.
package orders

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/loyalty"
	"github.com/beanhop/backend/pkg/logger"
)

// UnknownShop is the snapshot name used when the shop lookup fails.
const UnknownShop = "Unknown Shop"

// PointsEarner records the points an order earns.
type PointsEarner interface {
	Earn(ctx context.Context, order *database.Order) error
}

type CreateRequest struct {
	UserID              string               `json:"user_id"`
	ShopID              string               `json:"shop_id"`
	Items               []database.OrderItem `json:"items"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	Tax                 decimal.Decimal      `json:"tax"`
	Total               decimal.Decimal      `json:"total"`
	PickupTime          *string              `json:"pickup_time"`
	SpecialInstructions *string              `json:"special_instructions"`
}

func (r CreateRequest) validate() error {
	if r.UserID == "" {
		return svcerrors.Validation("user_id is required")
	}
	if r.ShopID == "" {
		return svcerrors.Validation("shop_id is required")
	}
	if r.Items == nil {
		return svcerrors.Validation("items is required")
	}
	return nil
}

// StatusUpdate is the response to a status change.
type StatusUpdate struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Service struct {
	orders  database.OrderRepository
	shops   database.CatalogRepository
	loyalty PointsEarner
	log     *logger.Logger
	now     func() time.Time
}

func NewService(orders database.OrderRepository, shops database.CatalogRepository, earner PointsEarner, log *logger.Logger) *Service {
	return &Service{orders: orders, shops: shops, loyalty: earner, log: log, now: time.Now}
}

// Create places a pending order and credits its loyalty points.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*database.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	shopName := UnknownShop
	if shop, err := s.shops.GetShop(ctx, req.ShopID); err == nil {
		shopName = shop.Name
	} else {
		s.log.WithContext(ctx).WithError(err).WithField("shop_id", req.ShopID).Warn("shop lookup failed for order")
	}

	now := s.now().UTC()
	order := &database.Order{
		ID:                  uuid.New().String(),
		OrderNumber:         database.NewCode("ORD-", 6),
		UserID:              req.UserID,
		ShopID:              req.ShopID,
		ShopName:            shopName,
		Items:               database.OrderItems(req.Items).Clone(),
		Status:              database.OrderStatusPending,
		Subtotal:            req.Subtotal,
		Tax:                 req.Tax,
		Discount:            decimal.Zero,
		Total:               req.Total,
		PickupTime:          req.PickupTime,
		SpecialInstructions: req.SpecialInstructions,
		PointsEarned:        loyalty.PointsFor(req.Subtotal),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for i := range order.Items {
		if order.Items[i].Customizations == nil {
			order.Items[i].Customizations = map[string]string{}
		}
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}

	// The order stands even if the ledger write fails; retrying would duplicate it.
	if err := s.loyalty.Earn(ctx, order); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("order_id", order.ID).Error("failed to record loyalty points")
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"shop_id":      order.ShopID,
	}).Info("order created")
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (*database.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound("Order not found")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return order, nil
}

// List returns orders newest first, optionally filtered by user and status.
func (s *Service) List(ctx context.Context, userID, status *string) ([]database.Order, error) {
	orders, err := s.orders.ListOrders(ctx, database.OrderFilter{UserID: userID, Status: status})
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return orders, nil
}

// UpdateStatus moves an order to any valid status. Transitions are not checked.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*StatusUpdate, error) {
	if !slices.Contains(database.OrderStatuses, status) {
		return nil, svcerrors.Validation(fmt.Sprintf("Invalid status. Must be one of: %v", database.OrderStatuses))
	}

	_, err := s.orders.UpdateOrder(ctx, id, database.OrderUpdate{Status: &status, UpdatedAt: s.now().UTC()})
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound("Order not found")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &StatusUpdate{Message: "Order status updated", Status: status}, nil
}
