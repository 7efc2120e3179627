// Package policy maps roles to capabilities. It is the single place where
// role checks are decided; services and handlers ask it instead of comparing
// roles themselves.
package policy

import (
	"sort"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
)

// Capability is an operation a role may be allowed to perform.
type Capability string

const (
	CreateRequest  Capability = "create_request"
	SetPrice       Capability = "set_price"
	ReviewRequests Capability = "review_requests" // approve, reject, fulfill
	ViewFinancials Capability = "view_financials"
	ViewReports    Capability = "view_reports"
	Admin          Capability = "admin"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func setOf(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var (
	operatorCaps = setOf(CreateRequest)
	managerCaps  = setOf(CreateRequest, SetPrice, ReviewRequests, ViewFinancials, ViewReports)
	adminCaps    = setOf(CreateRequest, SetPrice, ReviewRequests, ViewFinancials, ViewReports, Admin)
)

// Capabilities returns the capability set of role. Unknown roles get the
// OPERADOR set.
func Capabilities(role model.Role) CapabilitySet {
	switch model.ParseRole(string(role)) {
	case model.RoleAdmMaster:
		return adminCaps
	case model.RoleManager:
		return managerCaps
	default:
		return operatorCaps
	}
}

// Can reports whether role holds capability c.
func Can(role model.Role, c Capability) bool {
	return Capabilities(role).Has(c)
}

// Require returns a Forbidden error unless actor holds c.
func Require(actor model.Actor, c Capability) error {
	if Can(actor.Role, c) {
		return nil
	}
	return apperr.Forbidden("role %s lacks capability %s", model.ParseRole(string(actor.Role)), c)
}
