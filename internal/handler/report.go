package handler

import (
	"net/http"

	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ReportHandler serves the dashboard and reports.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Dashboard handles GET /api/v1/dashboard
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	m, err := h.reports.Dashboard(r.Context(), actor, r.URL.Query().Get("category"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, m)
}

// StockReport handles GET /api/v1/reports/stock
func (h *ReportHandler) StockReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rows, err := h.reports.StockReport(r.Context(), actor, service.StockReportFilter{
		Category: q.Get("category"),
		Status:   service.StockDisplayStatus(q.Get("status")),
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.List(w, rows)
}

type exportBody struct {
	Format string `json:"format"`
}

// RecordExport handles POST /api/v1/reports/{report}/exports
func (h *ReportHandler) RecordExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	var body exportBody
	if !decodeJSON(w, r, &body) {
		return
	}

	entry, err := h.reports.RecordExport(r.Context(), actor, chi.URLParam(r, "report"), body.Format)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, entry)
}
