package service

import (
	"context"
	"fmt"
	"strings"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService handles inventory business logic.
type InventoryService struct {
	repo   repository.InventoryRepository
	audit  *AuditService
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(repo repository.InventoryRepository, audit *AuditService, logger *zap.Logger) *InventoryService {
	return &InventoryService{repo: repo, audit: audit, logger: logger.Named("inventory")}
}

// NewItem is the input for onboarding an item.
type NewItem struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Unit       string          `json:"unit"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrentQty int             `json:"current_qty"`
	MinQty     int             `json:"min_qty"`
}

func (n *NewItem) validate() error {
	n.SKU = strings.TrimSpace(n.SKU)
	n.Name = strings.TrimSpace(n.Name)
	n.Category = strings.TrimSpace(n.Category)
	switch {
	case n.SKU == "":
		return apperr.InvalidInput("sku", "is required")
	case n.Name == "":
		return apperr.InvalidInput("name", "is required")
	case n.Category == "":
		return apperr.InvalidInput("category", "is required")
	case n.CurrentQty < 0:
		return apperr.InvalidInput("current_qty", "must not be negative")
	case n.MinQty < 0:
		return apperr.InvalidInput("min_qty", "must not be negative")
	case n.UnitPrice.IsNegative():
		return apperr.InvalidInput("unit_price", "must not be negative")
	}
	return nil
}

// GetItem returns an item with its status derived from current quantities.
func (s *InventoryService) GetItem(ctx context.Context, id int64) (*model.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return item.Refresh(), nil
}

// ListItems returns all items in creation order.
func (s *InventoryService) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Refresh()
	}
	return items, nil
}

// AdjustQuantity applies delta to an item. It fails with InsufficientStock,
// leaving the item untouched, if the result would be negative.
func (s *InventoryService) AdjustQuantity(ctx context.Context, id int64, delta int) (*model.InventoryItem, error) {
	item, err := s.repo.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	return item.Refresh(), nil
}

// CreateItem onboards a new item.
func (s *InventoryService) CreateItem(ctx context.Context, actor model.Actor, in NewItem) (*model.InventoryItem, error) {
	if err := policy.Require(actor, policy.Admin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	item := &model.InventoryItem{
		SKU:        in.SKU,
		Name:       in.Name,
		Category:   in.Category,
		Unit:       in.Unit,
		UnitPrice:  in.UnitPrice,
		CurrentQty: in.CurrentQty,
		MinQty:     in.MinQty,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item created", zap.Int64("item_id", item.ID), zap.String("sku", item.SKU))
	s.audit.recordCommitted(ctx, actor, model.ActionItemCreated,
		fmt.Sprintf("%s cadastrou o item %s (%s)", actor.Name, item.Name, item.SKU))
	return item.Refresh(), nil
}

// SetMinQuantity changes an item's minimum quantity.
func (s *InventoryService) SetMinQuantity(ctx context.Context, actor model.Actor, id int64, minQty int) (*model.InventoryItem, error) {
	if err := policy.Require(actor, policy.Admin); err != nil {
		return nil, err
	}
	if minQty < 0 {
		return nil, apperr.InvalidInput("min_qty", "must not be negative")
	}

	item, err := s.repo.SetMinQuantity(ctx, id, minQty)
	if err != nil {
		return nil, err
	}

	s.audit.recordCommitted(ctx, actor, model.ActionMinQtyChanged,
		fmt.Sprintf("%s alterou o estoque mínimo de %s para %d", actor.Name, item.Name, minQty))
	return item.Refresh(), nil
}
