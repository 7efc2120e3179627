package handler

import (
	"net/http"

	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/response"

	"github.com/shopspring/decimal"
)

// InventoryHandler handles inventory item HTTP requests.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// itemView hides the unit price from roles without financial visibility.
type itemView struct {
	*model.InventoryItem
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

func viewItem(actor model.Actor, item *model.InventoryItem) itemView {
	v := itemView{InventoryItem: item}
	if policy.Can(actor.Role, policy.ViewFinancials) {
		price := item.UnitPrice
		v.UnitPrice = &price
	}
	return v
}

// ListItems handles GET /api/v1/items
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	items, err := h.inventory.ListItems(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}

	category := r.URL.Query().Get("category")
	views := make([]itemView, 0, len(items))
	for i := range items {
		if category != "" && category != service.AllCategories && items[i].Category != category {
			continue
		}
		views = append(views, viewItem(actor, &items[i]))
	}
	response.List(w, views)
}

// GetItem handles GET /api/v1/items/{id}
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.inventory.GetItem(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, viewItem(actor, item))
}

// CreateItem handles POST /api/v1/items
func (h *InventoryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	var body service.NewItem
	if !decodeJSON(w, r, &body) {
		return
	}

	item, err := h.inventory.CreateItem(r.Context(), actor, body)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, viewItem(actor, item))
}

type minQuantityRequest struct {
	MinQty *int `json:"min_qty"`
}

// SetMinQuantity handles PUT /api/v1/items/{id}/min-quantity
func (h *InventoryHandler) SetMinQuantity(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body minQuantityRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.MinQty == nil {
		response.Error(w, errMissingField("min_qty"))
		return
	}

	item, err := h.inventory.SetMinQuantity(r.Context(), actor, id, *body.MinQty)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, viewItem(actor, item))
}
