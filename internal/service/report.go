package service

import (
	"context"
	"fmt"
	"sort"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/repository"

	"github.com/shopspring/decimal"
)

// AllCategories selects every category in dashboard and report filters.
const AllCategories = "Todas"

// StockDisplayStatus is the reporting view of an item's health. It adds
// "Em Reposição" for critical items with an approved replenishment.
type StockDisplayStatus string

const (
	DisplayNormal        StockDisplayStatus = "Normal"
	DisplayCritical      StockDisplayStatus = "Crítico"
	DisplayReplenishment StockDisplayStatus = "Em Reposição"
)

// ReportService computes dashboard metrics and reports.
type ReportService struct {
	items    repository.InventoryRepository
	requests repository.RequestRepository
	audit    *AuditService
}

// NewReportService creates a report service.
func NewReportService(items repository.InventoryRepository, requests repository.RequestRepository, audit *AuditService) *ReportService {
	return &ReportService{items: items, requests: requests, audit: audit}
}

// DashboardMetrics summarizes stock and requests for one category (or all).
// Financial figures are nil unless the viewer may see them.
type DashboardMetrics struct {
	Category        string           `json:"category"`
	Categories      []string         `json:"categories"`
	ItemCount       int              `json:"item_count"`
	CriticalItems   int              `json:"critical_items"`
	PendingRequests int              `json:"pending_requests"`
	AvgMinQty       int              `json:"avg_min_qty"`
	ProductionValue *decimal.Decimal `json:"production_value,omitempty"`
	StockValue      *decimal.Decimal `json:"stock_value,omitempty"`
}

func allCategories(category string) bool {
	return category == "" || category == AllCategories
}

// Dashboard computes the metrics for category.
func (s *ReportService) Dashboard(ctx context.Context, actor model.Actor, category string) (*DashboardMetrics, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	filter := model.RequestFilter{}
	if !allCategories(category) {
		filter.Category = category
	}
	requests, err := s.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}

	m := &DashboardMetrics{Category: AllCategories}
	if !allCategories(category) {
		m.Category = category
	}

	seen := map[string]bool{}
	stockValue := decimal.Zero
	totalMin := 0
	for i := range items {
		item := items[i].Refresh()
		if !seen[item.Category] {
			seen[item.Category] = true
			m.Categories = append(m.Categories, item.Category)
		}
		if !allCategories(category) && item.Category != category {
			continue
		}
		m.ItemCount++
		totalMin += item.MinQty
		if item.Status == model.ItemStatusCritical {
			m.CriticalItems++
		}
		stockValue = stockValue.Add(item.StockValue())
	}
	sort.Strings(m.Categories)
	if m.ItemCount > 0 {
		m.AvgMinQty = (totalMin + m.ItemCount - 1) / m.ItemCount
	}

	productionValue := decimal.Zero
	for i := range requests {
		switch requests[i].Status {
		case model.RequestPending:
			m.PendingRequests++
		case model.RequestApproved:
			productionValue = productionValue.Add(requests[i].Total())
		}
	}

	if policy.Can(actor.Role, policy.ViewFinancials) {
		m.ProductionValue = &productionValue
		m.StockValue = &stockValue
	}
	return m, nil
}

// StockReportFilter narrows the stock report. Zero values mean "any".
type StockReportFilter struct {
	Category string
	Status   StockDisplayStatus
}

// StockReportRow is one line of the stock report.
type StockReportRow struct {
	model.InventoryItem
	DisplayStatus StockDisplayStatus `json:"display_status"`
	StockValue    decimal.Decimal    `json:"stock_value"`
}

// StockReport lists items with their reporting status.
func (s *ReportService) StockReport(ctx context.Context, actor model.Actor, filter StockReportFilter) ([]StockReportRow, error) {
	if err := policy.Require(actor, policy.ViewReports); err != nil {
		return nil, err
	}
	switch filter.Status {
	case "", DisplayNormal, DisplayCritical, DisplayReplenishment:
	default:
		return nil, apperr.InvalidInput("status", "unknown status %q", filter.Status)
	}

	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := s.requests.ListRequests(ctx, model.RequestFilter{Status: model.RequestApproved})
	if err != nil {
		return nil, err
	}
	replenishing := map[int64]bool{}
	for i := range approved {
		if id, ok := approved[i].ItemID(); ok {
			replenishing[id] = true
		}
	}

	rows := []StockReportRow{}
	for i := range items {
		item := items[i].Refresh()
		if !allCategories(filter.Category) && item.Category != filter.Category {
			continue
		}

		status := DisplayNormal
		if item.Status == model.ItemStatusCritical {
			status = DisplayCritical
			if replenishing[item.ID] {
				status = DisplayReplenishment
			}
		}
		if filter.Status != "" && status != filter.Status {
			continue
		}
		rows = append(rows, StockReportRow{InventoryItem: *item, DisplayStatus: status, StockValue: item.StockValue()})
	}
	return rows, nil
}

var reportNames = map[string]string{
	"stock":  "Relatório de Estoque Atual",
	"orders": "Relatório de Pedidos de Produção",
	"logs":   "Relatório de Log de Atividades",
}

// RecordExport audits that actor downloaded a report. Rendering the file is
// left to the client.
func (s *ReportService) RecordExport(ctx context.Context, actor model.Actor, report, format string) (*model.AuditLogEntry, error) {
	if err := policy.Require(actor, policy.ViewReports); err != nil {
		return nil, err
	}
	name, ok := reportNames[report]
	if !ok {
		return nil, apperr.InvalidInput("report", "unknown report %q", report)
	}

	var action string
	switch format {
	case "pdf":
		action = model.ActionExportPDF
	case "csv":
		action = model.ActionExportCSV
	default:
		return nil, apperr.InvalidInput("format", "must be pdf or csv")
	}

	return s.audit.Record(ctx, actor, action, fmt.Sprintf("%s baixou o relatório: %s", actor.Name, name))
}
