package policy

import (
	"errors"
	"testing"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
)

func TestCapabilities_Table(t *testing.T) {
	tests := []struct {
		role model.Role
		caps map[Capability]bool
	}{
		{
			role: model.RoleOperator,
			caps: map[Capability]bool{
				CreateRequest: true, SetPrice: false, ReviewRequests: false,
				ViewFinancials: false, ViewReports: false, Admin: false,
			},
		},
		{
			role: model.RoleManager,
			caps: map[Capability]bool{
				CreateRequest: true, SetPrice: true, ReviewRequests: true,
				ViewFinancials: true, ViewReports: true, Admin: false,
			},
		},
		{
			role: model.RoleAdmMaster,
			caps: map[Capability]bool{
				CreateRequest: true, SetPrice: true, ReviewRequests: true,
				ViewFinancials: true, ViewReports: true, Admin: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for c, want := range tt.caps {
				if got := Can(tt.role, c); got != want {
					t.Errorf("Can(%s, %s) = %v, want %v", tt.role, c, got, want)
				}
			}
		})
	}
}

func TestCapabilities_UnknownRoleIsOperator(t *testing.T) {
	if Can("SUPERVISOR", ReviewRequests) {
		t.Error("unknown role must not review requests")
	}
	if !Can("", CreateRequest) {
		t.Error("empty role must be able to create requests")
	}
}

func TestRequire(t *testing.T) {
	op := model.Actor{ID: 1, Name: "Ana", Role: model.RoleOperator}
	err := Require(op, ReviewRequests)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	mgr := model.Actor{ID: 2, Name: "Bruno", Role: model.RoleManager}
	if err := Require(mgr, ReviewRequests); err != nil {
		t.Errorf("expected manager to review, got %v", err)
	}
}

func TestCapabilitySet_List(t *testing.T) {
	list := Capabilities(model.RoleOperator).List()
	if len(list) != 1 || list[0] != CreateRequest {
		t.Errorf("unexpected operator capabilities %v", list)
	}
	if len(Capabilities(model.RoleAdmMaster).List()) != 6 {
		t.Error("expected six admin capabilities")
	}
}
