package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cruzeta-api/internal/cache"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	operator = model.Actor{ID: 1, Name: "Ana Operadora", Role: model.RoleOperator}
	manager  = model.Actor{ID: 2, Name: "Bruno Gestor", Role: model.RoleManager}
	admin    = model.Actor{ID: 3, Name: "Carla Admin", Role: model.RoleAdmMaster}
)

// fakeClock returns a fixed time that tests advance by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingAudit accepts nothing.
type failingAudit struct{}

func (failingAudit) AppendAudit(context.Context, *model.AuditLogEntry) error {
	return errors.New("audit backend down")
}

func (failingAudit) QueryAudit(context.Context, model.AuditFilter) ([]model.AuditLogEntry, error) {
	return nil, errors.New("audit backend down")
}

type testEnv struct {
	store     *repository.MemoryStore
	clock     *fakeClock
	audit     *AuditService
	inventory *InventoryService
	workflow  *RequestWorkflow
	reports   *ReportService
	cache     *cache.MemoryCache
	users     *UserService
	tokens    *TokenService
	auth      *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithAudit(t, nil)
}

func newTestEnvWithAudit(t *testing.T, auditRepo repository.AuditRepository) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	if auditRepo == nil {
		auditRepo = store
	}
	clock := newFakeClock()
	logger := zap.NewNop()

	audit := NewAuditService(auditRepo, logger)
	audit.now = clock.Now

	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	users := NewUserService(store, c, time.Minute, audit, logger)
	tokens := NewTokenService(c, time.Hour)

	return &testEnv{
		store:     store,
		clock:     clock,
		audit:     audit,
		inventory: NewInventoryService(store, audit, logger),
		workflow:  NewRequestWorkflow(store, store, audit, WorkflowConfig{Clock: clock.Now}, logger),
		reports:   NewReportService(store, store, audit),
		cache:     c,
		users:     users,
		tokens:    tokens,
		auth:      NewAuthService(store, users, tokens, audit, logger),
	}
}

func (e *testEnv) addItem(t *testing.T, name, category string, current, min int) *model.InventoryItem {
	t.Helper()
	item, err := e.inventory.CreateItem(context.Background(), admin, NewItem{
		SKU:        "SKU-" + name,
		Name:       name,
		Category:   category,
		Unit:       "un",
		UnitPrice:  decimal.RequireFromString("25.00"),
		CurrentQty: current,
		MinQty:     min,
	})
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	return item
}

func (e *testEnv) request(t *testing.T, actor model.Actor, itemID int64, qty int) *model.MaterialRequest {
	t.Helper()
	res, err := e.workflow.Create(context.Background(), actor, NewRequest{
		Target:    model.ExistingItem{ItemID: itemID},
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString("12.00"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return res.Request
}

func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	entries, err := e.store.QueryAudit(context.Background(), model.AuditFilter{})
	if err != nil {
		t.Fatalf("QueryAudit failed: %v", err)
	}
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}
