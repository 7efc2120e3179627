package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		current, min int
		want         ItemStatus
	}{
		{8, 10, ItemStatusCritical},
		{13, 10, ItemStatusNormal},
		{10, 10, ItemStatusNormal},
		{0, 0, ItemStatusNormal},
		{0, 1, ItemStatusCritical},
	}

	for _, tt := range tests {
		if got := DeriveStatus(tt.current, tt.min); got != tt.want {
			t.Errorf("DeriveStatus(%d, %d) = %s, want %s", tt.current, tt.min, got, tt.want)
		}
	}
}

func TestInventoryItem_RefreshAfterMinChange(t *testing.T) {
	item := &InventoryItem{CurrentQty: 8, MinQty: 5}
	if item.Refresh().Status != ItemStatusNormal {
		t.Fatalf("expected Normal, got %s", item.Status)
	}

	item.MinQty = 10
	if item.Refresh().Status != ItemStatusCritical {
		t.Errorf("expected Crítico after min change, got %s", item.Status)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]RequestStatus]bool{
		{RequestPending, RequestApproved}:   true,
		{RequestPending, RequestRejected}:   true,
		{RequestApproved, RequestPurchased}: true,
	}
	statuses := []RequestStatus{RequestPending, RequestApproved, RequestRejected, RequestPurchased}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]RequestStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}

	if !RequestRejected.Terminal() || !RequestPurchased.Terminal() {
		t.Error("expected REJEITADO and COMPRADO to be terminal")
	}
	if RequestPending.Terminal() || RequestApproved.Terminal() {
		t.Error("expected PENDENTE and APROVADO to be non-terminal")
	}
}

func TestMaterialRequest_JSONRoundTripKeepsTarget(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := MaterialRequest{
		ID:          9,
		Target:      ProposedItem{Name: "Cadeira Gamer", Category: "Móveis"},
		Quantity:    2,
		UnitPrice:   decimal.RequireFromString("150.50"),
		RequesterID: 3,
		Status:      RequestPending,
		CreatedAt:   created,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw failed: %v", err)
	}
	if _, ok := raw["item_id"]; ok {
		t.Error("expected no item_id for a proposed item")
	}
	if raw["total"] != "301" {
		t.Errorf("expected total 301, got %v", raw["total"])
	}

	var decoded MaterialRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	proposed, ok := decoded.Proposed()
	if !ok || proposed.Name != "Cadeira Gamer" {
		t.Errorf("expected proposed target to survive, got %#v", decoded.Target)
	}
}

func TestMaterialRequest_UnmarshalRejectsBothTargets(t *testing.T) {
	var r MaterialRequest
	err := json.Unmarshal([]byte(`{"item_id":1,"proposed_item":{"name":"x"}}`), &r)
	if err == nil {
		t.Error("expected error when both targets are present")
	}
}

func TestRequestFilter_MatchesStored(t *testing.T) {
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	r := &MaterialRequest{RequesterID: 2, Status: RequestApproved, CreatedAt: base}

	tests := []struct {
		name   string
		filter RequestFilter
		want   bool
	}{
		{"empty filter", RequestFilter{}, true},
		{"other requester", RequestFilter{RequesterID: 3}, false},
		{"status match", RequestFilter{Status: RequestApproved}, true},
		{"status mismatch", RequestFilter{Status: RequestPending}, false},
		{"inside range", RequestFilter{From: base.Add(-time.Hour), To: base.Add(time.Hour)}, true},
		{"before range", RequestFilter{From: base.Add(time.Minute)}, false},
		{"after range", RequestFilter{To: base.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.MatchesStored(r); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"GESTOR":     RoleManager,
		"adm_master": RoleAdmMaster,
		"OPERADOR":   RoleOperator,
		"":           RoleOperator,
		"CHEFE":      RoleOperator,
	}
	for in, want := range tests {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAuditNewerFirst(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := &AuditLogEntry{ID: 5, Timestamp: ts}
	newer := &AuditLogEntry{ID: 1, Timestamp: ts.Add(time.Second)}
	tie := &AuditLogEntry{ID: 6, Timestamp: ts}

	if !AuditNewerFirst(newer, older) {
		t.Error("expected newer entry first")
	}
	if !AuditNewerFirst(tie, older) {
		t.Error("expected higher id first on equal timestamps")
	}
	if AuditNewerFirst(older, tie) {
		t.Error("expected lower id after on equal timestamps")
	}
}
