package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestViewItem_RedactsPrice(t *testing.T) {
	item := &model.InventoryItem{ID: 1, Name: "Cola", UnitPrice: decimal.RequireFromString("12.50")}

	data, _ := json.Marshal(viewItem(model.Actor{Role: model.RoleOperator}, item))
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	if _, ok := raw["unit_price"]; ok {
		t.Errorf("expected no unit_price for operator, got %s", data)
	}

	data, _ = json.Marshal(viewItem(model.Actor{Role: model.RoleManager}, item))
	raw = nil
	json.Unmarshal(data, &raw)
	if raw["unit_price"] != "12.5" {
		t.Errorf("expected unit_price for manager, got %s", data)
	}
}

func TestQueryTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01&to=2026-03-01&at=2026-03-01T10:00:00-03:00&bad=ontem", nil)

	from, err := queryTime(r, "from", false)
	if err != nil || !from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from %v / %v", from, err)
	}
	to, _ := queryTime(r, "to", true)
	if to.Day() != 1 || to.Hour() != 23 {
		t.Errorf("expected end of day, got %v", to)
	}
	at, _ := queryTime(r, "at", false)
	if at.Hour() != 13 {
		t.Errorf("expected UTC conversion, got %v", at)
	}
	if _, err := queryTime(r, "bad", false); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if missing, err := queryTime(r, "missing", false); err != nil || !missing.IsZero() {
		t.Errorf("expected zero time for a missing parameter, got %v / %v", missing, err)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReady_Unavailable(t *testing.T) {
	monitor := service.NewReadinessMonitor(map[string]service.Pinger{"store": downPinger{}}, time.Hour, zap.NewNop())
	monitor.Check(context.Background())
	h := New(monitor, "cruzeta-api", "test")

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Data ReadyResponse `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Data.Ready || len(body.Data.Checks) != 2 || body.Data.Checks[1].Name != "store" {
		t.Errorf("unexpected readiness body %+v", body.Data)
	}

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status to answer 200 while degraded, got %d", rec.Code)
	}
}

func TestHandlersRequireActor(t *testing.T) {
	h := NewRequestHandler(nil)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without an actor, got %d", rec.Code)
	}
}
