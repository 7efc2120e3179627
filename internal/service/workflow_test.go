package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"

	"github.com/shopspring/decimal"
)

func TestCreate_OperatorPriceForcedToZero(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)

	res, err := env.workflow.Create(context.Background(), operator, NewRequest{
		Target:    model.ExistingItem{ItemID: item.ID},
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("999.99"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !res.Request.UnitPrice.IsZero() {
		t.Errorf("expected operator price forced to 0, got %s", res.Request.UnitPrice)
	}
	if res.Request.Status != model.RequestPending {
		t.Errorf("expected PENDENTE, got %s", res.Request.Status)
	}
	if !res.Request.CreatedAt.Equal(env.clock.Now()) {
		t.Errorf("expected creation stamped with clock time, got %v", res.Request.CreatedAt)
	}
	if res.Request.RequesterID != operator.ID || res.Request.RequesterName != operator.Name {
		t.Errorf("unexpected requester %d/%s", res.Request.RequesterID, res.Request.RequesterName)
	}

	actions := env.auditActions(t)
	if len(actions) != 2 || actions[0] != model.ActionRequestCreated {
		t.Errorf("expected one Solicitação Criada after item onboarding, got %v", actions)
	}
}

func TestCreate_ManagerPriceMustBePositive(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)

	_, err := env.workflow.Create(context.Background(), manager, NewRequest{
		Target:   model.ExistingItem{ItemID: item.ID},
		Quantity: 1,
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInvalidInput || appErr.Field != "unit_price" {
		t.Fatalf("expected invalid unit_price, got %v", err)
	}

	res, err := env.workflow.Create(context.Background(), manager, NewRequest{
		Target:    model.ExistingItem{ItemID: item.ID},
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("150.50"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !res.Request.Total().Equal(decimal.RequireFromString("301")) {
		t.Errorf("expected total 301, got %s", res.Request.Total())
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewRequest
		kind apperr.Kind
	}{
		{"zero quantity", NewRequest{Target: model.ExistingItem{ItemID: item.ID}, Quantity: 0}, apperr.KindInvalidInput},
		{"negative quantity", NewRequest{Target: model.ExistingItem{ItemID: item.ID}, Quantity: -2}, apperr.KindInvalidInput},
		{"no target", NewRequest{Quantity: 1}, apperr.KindInvalidInput},
		{"blank proposal", NewRequest{Target: model.ProposedItem{Name: "  "}, Quantity: 1}, apperr.KindInvalidInput},
		{"unknown item", NewRequest{Target: model.ExistingItem{ItemID: 404}, Quantity: 1}, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.workflow.Create(ctx, operator, tt.in)
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	list, _ := env.store.ListRequests(ctx, model.RequestFilter{})
	if len(list) != 0 {
		t.Errorf("expected no requests stored after failures, got %d", len(list))
	}
}

func TestCreate_ProposedItemDefaultsCategory(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.workflow.Create(context.Background(), operator, NewRequest{
		Target:   model.ProposedItem{Name: " Cadeira Gamer "},
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	proposed, ok := res.Request.Proposed()
	if !ok {
		t.Fatalf("expected proposed target, got %#v", res.Request.Target)
	}
	if proposed.Name != "Cadeira Gamer" || proposed.Category != model.DefaultProposedCategory {
		t.Errorf("unexpected proposal %+v", proposed)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no high volume check for proposals, got %v", res.Warnings)
	}
}

func TestCreate_HighVolumeWarning(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Parafuso", "Ferragens", 10, 5) // threshold 6 x 5 = 30

	tests := []struct {
		qty  int
		warn bool
	}{
		{20, false}, // 30, not above
		{21, true},
	}
	for _, tt := range tests {
		res, err := env.workflow.Create(context.Background(), operator, NewRequest{
			Target:   model.ExistingItem{ItemID: item.ID},
			Quantity: tt.qty,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		got := len(res.Warnings) == 1 && res.Warnings[0].Code == WarningHighVolume
		if got != tt.warn {
			t.Errorf("qty %d: expected warning %v, got %v", tt.qty, tt.warn, res.Warnings)
		}
	}
}

func TestApprove_ForbiddenBeforeState(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)
	req := env.request(t, operator, item.ID, 2)
	ctx := context.Background()

	if _, err := env.workflow.Approve(ctx, operator, req.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for operator, got %v", err)
	}
	if _, err := env.workflow.Approve(ctx, manager, req.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// Still forbidden rather than invalid state once the request has moved on.
	if _, err := env.workflow.Approve(ctx, operator, req.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden to win over invalid state, got %v", err)
	}
	if _, err := env.workflow.Approve(ctx, manager, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state on second approve, got %v", err)
	}
	if _, err := env.workflow.Approve(ctx, manager, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReject_RequiresReasonAndStoresIt(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)
	req := env.request(t, operator, item.ID, 2)
	ctx := context.Background()

	_, err := env.workflow.Reject(ctx, manager, req.ID, "   ")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInvalidInput || appErr.Field != "reason" {
		t.Fatalf("expected invalid reason, got %v", err)
	}
	got, _ := env.store.GetRequest(ctx, req.ID)
	if got.Status != model.RequestPending {
		t.Fatalf("expected request to stay PENDENTE, got %s", got.Status)
	}

	reason := "  Fornecedor sem estoque; reavaliar em abril.  "
	rejected, err := env.workflow.Reject(ctx, manager, req.ID, reason)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != model.RequestRejected || rejected.RejectionReason != reason {
		t.Errorf("expected verbatim reason, got %s / %q", rejected.Status, rejected.RejectionReason)
	}

	stored, _ := env.store.GetRequest(ctx, req.ID)
	if stored.RejectionReason != reason {
		t.Errorf("expected stored reason %q, got %q", reason, stored.RejectionReason)
	}
	if stored.ReviewedByID != manager.ID {
		t.Errorf("expected reviewer %d, got %d", manager.ID, stored.ReviewedByID)
	}

	// Terminal: nothing leaves REJEITADO.
	if _, err := env.workflow.Approve(ctx, manager, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state approving a rejected request, got %v", err)
	}
	if _, err := env.workflow.Fulfill(ctx, manager, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state fulfilling a rejected request, got %v", err)
	}
}

func TestFulfill_AddsStockAndRederivesStatus(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 8, 10)
	if item.Status != model.ItemStatusCritical {
		t.Fatalf("expected Crítico at 8/10, got %s", item.Status)
	}
	req := env.request(t, operator, item.ID, 5)
	ctx := context.Background()

	// PENDENTE cannot jump straight to COMPRADO.
	if _, err := env.workflow.Fulfill(ctx, manager, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state fulfilling a pending request, got %v", err)
	}

	env.workflow.Approve(ctx, manager, req.ID)
	res, err := env.workflow.Fulfill(ctx, manager, req.ID)
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if res.Request.Status != model.RequestPurchased {
		t.Errorf("expected COMPRADO, got %s", res.Request.Status)
	}
	if res.Item.CurrentQty != 13 || res.Item.Status != model.ItemStatusNormal {
		t.Errorf("expected 13/Normal, got %d/%s", res.Item.CurrentQty, res.Item.Status)
	}

	got, _ := env.inventory.GetItem(ctx, item.ID)
	if got.CurrentQty != 13 || got.Status != model.ItemStatusNormal {
		t.Errorf("expected stored 13/Normal, got %d/%s", got.CurrentQty, got.Status)
	}

	if _, err := env.workflow.Fulfill(ctx, manager, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state on second fulfill, got %v", err)
	}
	got, _ = env.inventory.GetItem(ctx, item.ID)
	if got.CurrentQty != 13 {
		t.Errorf("expected quantity unchanged by second fulfill, got %d", got.CurrentQty)
	}

	actions := env.auditActions(t)
	want := []string{model.ActionRequestPurchased, model.ActionRequestApproved, model.ActionRequestCreated}
	for i, a := range want {
		if actions[i] != a {
			t.Errorf("audit[%d] = %s, want %s", i, actions[i], a)
		}
	}
}

func TestFulfill_ProposedItemCompletesWithoutInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.workflow.Create(ctx, manager, NewRequest{
		Target:    model.ProposedItem{Name: "Verniz Marítimo", Category: "Químicos"},
		Quantity:  4,
		UnitPrice: decimal.RequireFromString("80"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	env.workflow.Approve(ctx, manager, res.Request.ID)

	out, err := env.workflow.Fulfill(ctx, admin, res.Request.ID)
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if out.Item != nil || out.Request.Status != model.RequestPurchased {
		t.Errorf("expected COMPRADO without item, got %+v", out)
	}
	items, _ := env.inventory.ListItems(ctx)
	if len(items) != 0 {
		t.Errorf("expected no onboarding, got %d items", len(items))
	}
}

func TestApprove_ConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)
	req := env.request(t, operator, item.ID, 2)

	const racers = 16
	var wins, losses int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.workflow.Approve(context.Background(), manager, req.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrConflict):
				atomic.AddInt32(&losses, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 || losses != racers-1 {
		t.Errorf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}

	approvals := 0
	for _, a := range env.auditActions(t) {
		if a == model.ActionRequestApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Errorf("expected one approval audit entry, got %d", approvals)
	}
}

func TestTransition_AuditFailureDoesNotUndoChange(t *testing.T) {
	env := newTestEnvWithAudit(t, failingAudit{})
	ctx := context.Background()

	item := &model.InventoryItem{SKU: "X", Name: "Chapa", Category: "Madeira", CurrentQty: 10, MinQty: 5}
	if err := env.store.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	req := env.request(t, operator, item.ID, 2)

	got, err := env.workflow.Approve(ctx, manager, req.ID)
	if err != nil {
		t.Fatalf("expected approve to succeed despite audit failure, got %v", err)
	}
	if got.Status != model.RequestApproved {
		t.Errorf("expected APROVADO, got %s", got.Status)
	}
}

func TestList_ScopesOperatorsAndFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wood := env.addItem(t, "Chapa", "Madeira", 10, 5)
	screws := env.addItem(t, "Parafuso", "Ferragens", 10, 5)

	other := model.Actor{ID: 9, Name: "Outro", Role: model.RoleOperator}
	env.request(t, operator, wood.ID, 1)
	env.clock.Advance(time.Hour)
	env.request(t, operator, screws.ID, 1)
	env.clock.Advance(time.Hour)
	env.request(t, other, wood.ID, 1)

	seq, err := env.workflow.List(ctx, operator, model.RequestFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var mine []model.MaterialRequest
	for r := range seq {
		mine = append(mine, r)
	}
	if len(mine) != 2 || mine[0].CreatedAt.Before(mine[1].CreatedAt) {
		t.Fatalf("expected operator's two requests newest first, got %+v", mine)
	}

	// Operators cannot widen the scope by passing another requester.
	seq, _ = env.workflow.List(ctx, operator, model.RequestFilter{RequesterID: other.ID})
	for r := range seq {
		if r.RequesterID != operator.ID {
			t.Errorf("operator saw request %d of user %d", r.ID, r.RequesterID)
		}
	}

	count := 0
	seq, _ = env.workflow.List(ctx, manager, model.RequestFilter{Category: "Madeira"})
	for range seq {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 Madeira requests for manager, got %d", count)
	}

	if _, err := env.workflow.List(ctx, manager, model.RequestFilter{Status: "PERDIDO"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected invalid status filter, got %v", err)
	}
}

func TestGet_OperatorsSeeOnlyOwn(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem(t, "Chapa", "Madeira", 10, 5)
	req := env.request(t, operator, item.ID, 1)
	ctx := context.Background()

	if _, err := env.workflow.Get(ctx, operator, req.ID); err != nil {
		t.Errorf("expected owner to read request, got %v", err)
	}
	stranger := model.Actor{ID: 77, Role: model.RoleOperator}
	if _, err := env.workflow.Get(ctx, stranger, req.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for another operator, got %v", err)
	}
	if _, err := env.workflow.Get(ctx, manager, req.ID); err != nil {
		t.Errorf("expected manager to read request, got %v", err)
	}
}
