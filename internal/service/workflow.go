package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultHighVolumeMultiplier flags a request when stock after receipt would
// exceed this many times the item's minimum.
const DefaultHighVolumeMultiplier = 6

// WarningHighVolume is the code of the high-volume advisory.
const WarningHighVolume = "high_volume"

// WorkflowConfig tunes the request workflow.
type WorkflowConfig struct {
	HighVolumeMultiplier int
	// Clock stamps new requests and transitions. Defaults to time.Now.
	Clock func() time.Time
}

// RequestWorkflow owns the material request state machine.
type RequestWorkflow struct {
	requests repository.RequestRepository
	items    repository.InventoryRepository
	audit    *AuditService
	cfg      WorkflowConfig
	logger   *zap.Logger
}

// NewRequestWorkflow creates a request workflow.
func NewRequestWorkflow(
	requests repository.RequestRepository,
	items repository.InventoryRepository,
	audit *AuditService,
	cfg WorkflowConfig,
	logger *zap.Logger,
) *RequestWorkflow {
	if cfg.HighVolumeMultiplier <= 0 {
		cfg.HighVolumeMultiplier = DefaultHighVolumeMultiplier
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &RequestWorkflow{
		requests: requests,
		items:    items,
		audit:    audit,
		cfg:      cfg,
		logger:   logger.Named("workflow"),
	}
}

// NewRequest is the input for creating a request.
type NewRequest struct {
	Target      model.ItemTarget
	Quantity    int
	UnitPrice   decimal.Decimal
	Observation string
}

// Warning is an advisory returned alongside a successful operation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Request  *model.MaterialRequest `json:"request"`
	Warnings []Warning              `json:"warnings,omitempty"`
}

// FulfillResult is the outcome of Fulfill. Item is nil for proposed-item requests.
type FulfillResult struct {
	Request *model.MaterialRequest `json:"request"`
	Item    *model.InventoryItem   `json:"item,omitempty"`
}

func (w *RequestWorkflow) now() time.Time {
	return w.cfg.Clock().UTC()
}

// Create files a new PENDENTE request for actor.
func (w *RequestWorkflow) Create(ctx context.Context, actor model.Actor, in NewRequest) (*CreateResult, error) {
	if err := policy.Require(actor, policy.CreateRequest); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, apperr.InvalidInput("quantity", "must be greater than zero")
	}

	price := in.UnitPrice
	if !policy.Can(actor.Role, policy.SetPrice) {
		price = decimal.Zero
	} else if !price.IsPositive() {
		return nil, apperr.InvalidInput("unit_price", "must be greater than zero")
	}

	var (
		label    string
		warnings []Warning
	)
	switch t := in.Target.(type) {
	case model.ExistingItem:
		item, err := w.items.GetItem(ctx, t.ItemID)
		if err != nil {
			return nil, err
		}
		label = item.Name
		if w.highVolume(item, in.Quantity) {
			warnings = append(warnings, Warning{
				Code:    WarningHighVolume,
				Message: "Alto volume solicitado. Por favor, verifique se esta é uma reposição urgente.",
			})
		}
	case model.ProposedItem:
		t.Name = strings.TrimSpace(t.Name)
		t.Category = strings.TrimSpace(t.Category)
		if t.Name == "" {
			return nil, apperr.InvalidInput("proposed_item.name", "is required")
		}
		if t.Category == "" {
			t.Category = model.DefaultProposedCategory
		}
		in.Target = t
		label = t.Name + " (novo item)"
	default:
		return nil, apperr.InvalidInput("target", "request must reference an item or propose one")
	}

	now := w.now()
	req := &model.MaterialRequest{
		Target:        in.Target,
		Quantity:      in.Quantity,
		UnitPrice:     price,
		Observation:   strings.TrimSpace(in.Observation),
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		Status:        model.RequestPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	w.logger.Info("request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("requester_id", actor.ID),
		zap.Int("quantity", req.Quantity),
		zap.Int("warnings", len(warnings)))
	w.audit.recordCommitted(ctx, actor, model.ActionRequestCreated,
		fmt.Sprintf("%s solicitou %d un. de %s", actor.Name, req.Quantity, label))

	return &CreateResult{Request: req, Warnings: warnings}, nil
}

func (w *RequestWorkflow) highVolume(item *model.InventoryItem, qty int) bool {
	return item.CurrentQty+qty > w.cfg.HighVolumeMultiplier*item.MinQty
}

// Approve moves a PENDENTE request to APROVADO.
func (w *RequestWorkflow) Approve(ctx context.Context, actor model.Actor, id int64) (*model.MaterialRequest, error) {
	if err := policy.Require(actor, policy.ReviewRequests); err != nil {
		return nil, err
	}

	req, err := w.transition(ctx, actor, id, model.RequestPending, model.RequestApproved, "")
	if err != nil {
		return nil, err
	}

	w.audit.recordCommitted(ctx, actor, model.ActionRequestApproved,
		fmt.Sprintf("%s aprovou a solicitação #%d de %s", actor.Name, req.ID, req.RequesterName))
	return req, nil
}

// Reject moves a PENDENTE request to REJEITADO, storing reason verbatim.
func (w *RequestWorkflow) Reject(ctx context.Context, actor model.Actor, id int64, reason string) (*model.MaterialRequest, error) {
	if err := policy.Require(actor, policy.ReviewRequests); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.InvalidInput("reason", "is required to reject a request")
	}

	req, err := w.transition(ctx, actor, id, model.RequestPending, model.RequestRejected, reason)
	if err != nil {
		return nil, err
	}

	w.audit.recordCommitted(ctx, actor, model.ActionRequestRejected,
		fmt.Sprintf("%s rejeitou a solicitação #%d: %s", actor.Name, req.ID, reason))
	return req, nil
}

// Fulfill moves an APROVADO request to COMPRADO. For an existing item the
// requested quantity is received into stock in the same transaction; a
// proposed item completes without touching the inventory.
func (w *RequestWorkflow) Fulfill(ctx context.Context, actor model.Actor, id int64) (*FulfillResult, error) {
	if err := policy.Require(actor, policy.ReviewRequests); err != nil {
		return nil, err
	}

	current, err := w.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.RequestApproved {
		return nil, apperr.InvalidState("request", id, "cannot fulfill a %s request", current.Status)
	}

	req, item, err := w.requests.FulfillRequest(ctx, repository.Transition{
		RequestID: id,
		From:      model.RequestApproved,
		To:        model.RequestPurchased,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		At:        w.now(),
	})
	if err != nil {
		w.logger.Warn("fulfill failed", zap.Int64("request_id", id), zap.Error(err))
		return nil, err
	}

	description := fmt.Sprintf("%s confirmou a compra da solicitação #%d", actor.Name, req.ID)
	if item != nil {
		item.Refresh()
		description = fmt.Sprintf("%s confirmou a compra de %d un. de %s (estoque: %d)",
			actor.Name, req.Quantity, item.Name, item.CurrentQty)
	}
	w.audit.recordCommitted(ctx, actor, model.ActionRequestPurchased, description)

	return &FulfillResult{Request: req, Item: item}, nil
}

func (w *RequestWorkflow) transition(ctx context.Context, actor model.Actor, id int64, from, to model.RequestStatus, reason string) (*model.MaterialRequest, error) {
	current, err := w.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != from || !model.CanTransition(from, to) {
		return nil, apperr.InvalidState("request", id, "cannot move from %s to %s", current.Status, to)
	}

	req, err := w.requests.TransitionRequest(ctx, repository.Transition{
		RequestID: id,
		From:      from,
		To:        to,
		Reason:    reason,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		At:        w.now(),
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("request transitioned",
		zap.Int64("request_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actor.ID))
	return req, nil
}

// Get returns a request. Actors who cannot review requests only see their own.
func (w *RequestWorkflow) Get(ctx context.Context, actor model.Actor, id int64) (*model.MaterialRequest, error) {
	req, err := w.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actor.ID && !policy.Can(actor.Role, policy.ReviewRequests) {
		return nil, apperr.Forbidden("request %d belongs to another user", id)
	}
	return req, nil
}

// List returns requests matching filter, newest first. Actors who cannot
// review requests are scoped to their own.
func (w *RequestWorkflow) List(ctx context.Context, actor model.Actor, filter model.RequestFilter) (iter.Seq[model.MaterialRequest], error) {
	if !policy.Can(actor.Role, policy.ReviewRequests) {
		filter.RequesterID = actor.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.InvalidInput("status", "unknown status %q", filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperr.InvalidInput("to", "must not be before from")
	}

	requests, err := w.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	return slices.Values(requests), nil
}
