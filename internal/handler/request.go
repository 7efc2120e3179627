package handler

import (
	"net/http"
	"slices"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/response"

	"github.com/shopspring/decimal"
)

// RequestHandler handles material request HTTP requests.
type RequestHandler struct {
	workflow *service.RequestWorkflow
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(workflow *service.RequestWorkflow) *RequestHandler {
	return &RequestHandler{workflow: workflow}
}

type proposedItemBody struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// CreateRequestBody is the body of POST /requests. Exactly one of ItemID and
// ProposedItem must be set.
type CreateRequestBody struct {
	ItemID       *int64            `json:"item_id"`
	ProposedItem *proposedItemBody `json:"proposed_item"`
	Quantity     int               `json:"quantity"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	Observation  string            `json:"observation"`
}

func (b CreateRequestBody) target() (model.ItemTarget, error) {
	switch {
	case b.ItemID != nil && b.ProposedItem != nil:
		return nil, apperr.InvalidInput("item_id", "must not be combined with proposed_item")
	case b.ItemID != nil:
		return model.ExistingItem{ItemID: *b.ItemID}, nil
	case b.ProposedItem != nil:
		return model.ProposedItem{Name: b.ProposedItem.Name, Category: b.ProposedItem.Category}, nil
	}
	return nil, apperr.InvalidInput("item_id", "item_id or proposed_item is required")
}

// Create handles POST /api/v1/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	var body CreateRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	target, err := body.target()
	if err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.workflow.Create(r.Context(), actor, service.NewRequest{
		Target:      target,
		Quantity:    body.Quantity,
		UnitPrice:   body.UnitPrice,
		Observation: body.Observation,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, res)
}

// List handles GET /api/v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	requesterID, errRequester := queryInt64(r, "requester_id")
	from, errFrom := queryTime(r, "from", false)
	to, errTo := queryTime(r, "to", true)
	if err := firstErr(errRequester, errFrom, errTo); err != nil {
		response.Error(w, err)
		return
	}
	q := r.URL.Query()
	filter := model.RequestFilter{
		RequesterID: requesterID,
		From:        from,
		To:          to,
		Status:      model.RequestStatus(q.Get("status")),
	}
	if c := q.Get("category"); c != service.AllCategories {
		filter.Category = c
	}

	seq, err := h.workflow.List(r.Context(), actor, filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.List(w, slices.Collect(seq))
}

// Get handles GET /api/v1/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := h.workflow.Get(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, req)
}

// Approve handles POST /api/v1/requests/{id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := h.workflow.Approve(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, req)
}

type rejectBody struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/v1/requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body rejectBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := h.workflow.Reject(r.Context(), actor, id, body.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, req)
}

// Fulfill handles POST /api/v1/requests/{id}/fulfill
func (h *RequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.workflow.Fulfill(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, res)
}
