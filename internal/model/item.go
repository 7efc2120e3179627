package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the stock-health status derived from quantities.
type ItemStatus string

const (
	ItemStatusNormal   ItemStatus = "Normal"
	ItemStatusCritical ItemStatus = "Crítico"
)

// DeriveStatus returns Crítico iff current is below min.
func DeriveStatus(current, min int) ItemStatus {
	if current < min {
		return ItemStatusCritical
	}
	return ItemStatusNormal
}

// InventoryItem is a material kept in stock.
type InventoryItem struct {
	ID         int64           `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Unit       string          `json:"unit"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrentQty int             `json:"current_qty"`
	MinQty     int             `json:"min_qty"`
	Status     ItemStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Refresh re-derives Status from the current quantities. Status is never
// persisted, so every read path calls this before handing an item out.
func (i *InventoryItem) Refresh() *InventoryItem {
	i.Status = DeriveStatus(i.CurrentQty, i.MinQty)
	return i
}

// StockValue is unit price times quantity on hand.
func (i *InventoryItem) StockValue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.CurrentQty)))
}
