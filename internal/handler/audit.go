package handler

import (
	"net/http"

	"cruzeta-api/internal/model"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/response"
)

// AuditHandler exposes the activity log.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Query handles GET /api/v1/audit
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	from, errFrom := queryTime(r, "from", false)
	to, errTo := queryTime(r, "to", true)
	userID, errUser := queryInt64(r, "user_id")
	limit, errLimit := queryInt64(r, "limit")
	if err := firstErr(errFrom, errTo, errUser, errLimit); err != nil {
		response.Error(w, err)
		return
	}

	entries, err := h.audit.Query(r.Context(), actor, model.AuditFilter{
		From:   from,
		To:     to,
		UserID: userID,
		Limit:  int(limit),
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.List(w, entries)
}
