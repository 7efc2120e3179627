package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the state of a material request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDENTE"
	RequestApproved  RequestStatus = "APROVADO"
	RequestRejected  RequestStatus = "REJEITADO"
	RequestPurchased RequestStatus = "COMPRADO"
)

// DefaultProposedCategory is used when a proposed item arrives without a category.
const DefaultProposedCategory = "Geral"

// UncategorizedLabel is reported for requests whose item can no longer be resolved.
const UncategorizedLabel = "Outros"

var transitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestPurchased},
}

// Valid reports whether s is one of the four known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestPurchased:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the request state machine.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemTarget is what a request asks for: either an existing inventory item
// or a proposed item that has not been onboarded yet.
type ItemTarget interface {
	isItemTarget()
}

// ExistingItem references an item in the inventory.
type ExistingItem struct {
	ItemID int64
}

// ProposedItem describes a material that does not exist in the inventory.
type ProposedItem struct {
	Name     string
	Category string
}

func (ExistingItem) isItemTarget() {}
func (ProposedItem) isItemTarget() {}

// MaterialRequest is a request for material for a production job.
type MaterialRequest struct {
	ID              int64
	Target          ItemTarget
	Quantity        int
	UnitPrice       decimal.Decimal
	Observation     string
	RequesterID     int64
	RequesterName   string
	Status          RequestStatus
	RejectionReason string
	ReviewedByID    int64
	ReviewedByName  string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ItemID returns the referenced item id when the request targets an existing item.
func (r *MaterialRequest) ItemID() (int64, bool) {
	if t, ok := r.Target.(ExistingItem); ok {
		return t.ItemID, true
	}
	return 0, false
}

// Proposed returns the proposed item payload when the request targets a new item.
func (r *MaterialRequest) Proposed() (ProposedItem, bool) {
	t, ok := r.Target.(ProposedItem)
	return t, ok
}

// Total is unit price times quantity.
func (r *MaterialRequest) Total() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

type proposedItemJSON struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type materialRequestJSON struct {
	ID              int64             `json:"id"`
	ItemID          *int64            `json:"item_id,omitempty"`
	ProposedItem    *proposedItemJSON `json:"proposed_item,omitempty"`
	Quantity        int               `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	Total           decimal.Decimal   `json:"total"`
	Observation     string            `json:"observation,omitempty"`
	RequesterID     int64             `json:"requester_id"`
	RequesterName   string            `json:"requester_name"`
	Status          RequestStatus     `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ReviewedByID    int64             `json:"reviewed_by_id,omitempty"`
	ReviewedByName  string            `json:"reviewed_by_name,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MarshalJSON flattens the target into item_id or proposed_item.
func (r MaterialRequest) MarshalJSON() ([]byte, error) {
	out := materialRequestJSON{
		ID:              r.ID,
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		Total:           r.Total(),
		Observation:     r.Observation,
		RequesterID:     r.RequesterID,
		RequesterName:   r.RequesterName,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		ReviewedByID:    r.ReviewedByID,
		ReviewedByName:  r.ReviewedByName,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	switch t := r.Target.(type) {
	case ExistingItem:
		id := t.ItemID
		out.ItemID = &id
	case ProposedItem:
		out.ProposedItem = &proposedItemJSON{Name: t.Name, Category: t.Category}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *MaterialRequest) UnmarshalJSON(data []byte) error {
	var in materialRequestJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.ItemID != nil && in.ProposedItem != nil:
		return errors.New("request has both item_id and proposed_item")
	case in.ItemID != nil:
		r.Target = ExistingItem{ItemID: *in.ItemID}
	case in.ProposedItem != nil:
		r.Target = ProposedItem{Name: in.ProposedItem.Name, Category: in.ProposedItem.Category}
	default:
		r.Target = nil
	}
	r.ID = in.ID
	r.Quantity = in.Quantity
	r.UnitPrice = in.UnitPrice
	r.Observation = in.Observation
	r.RequesterID = in.RequesterID
	r.RequesterName = in.RequesterName
	r.Status = in.Status
	r.RejectionReason = in.RejectionReason
	r.ReviewedByID = in.ReviewedByID
	r.ReviewedByName = in.ReviewedByName
	r.Version = in.Version
	r.CreatedAt = in.CreatedAt
	r.UpdatedAt = in.UpdatedAt
	return nil
}

// RequestFilter narrows a request listing. Zero values mean "any".
type RequestFilter struct {
	RequesterID int64
	From        time.Time
	To          time.Time
	Category    string
	Status      RequestStatus
}

// MatchesStored reports whether r passes the filter fields that do not need
// item resolution (everything but Category).
func (f RequestFilter) MatchesStored(r *MaterialRequest) bool {
	if f.RequesterID != 0 && r.RequesterID != f.RequesterID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
