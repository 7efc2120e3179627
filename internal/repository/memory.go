package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
)

type memoryUser struct {
	user model.User
	hash string
}

// MemoryStore implements Store in process memory. It is used for tests and
// STORE_TYPE=memory; everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[int64]*model.InventoryItem
	requests map[int64]*model.MaterialRequest
	users    map[int64]*memoryUser
	audit    []model.AuditLogEntry

	nextItem, nextRequest, nextUser, nextAudit int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[int64]*model.InventoryItem),
		requests: make(map[int64]*model.MaterialRequest),
		users:    make(map[int64]*memoryUser),
	}
}

// CreateItem onboards a new item.
func (s *MemoryStore) CreateItem(_ context.Context, item *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.SKU == item.SKU {
			return apperr.Conflict("item", 0, "sku %q already exists", item.SKU)
		}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt

	s.nextItem++
	item.ID = s.nextItem
	stored := *item
	s.items[item.ID] = &stored
	item.Refresh()
	return nil
}

// GetItem returns the item with the given ID.
func (s *MemoryStore) GetItem(_ context.Context, id int64) (*model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("item", id)
	}
	out := *item
	return out.Refresh(), nil
}

// ListItems returns all items in creation order.
func (s *MemoryStore) ListItems(_ context.Context) ([]model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		out := *item
		items = append(items, *out.Refresh())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) adjustLocked(id int64, delta int, at time.Time) (*model.InventoryItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("item", id)
	}
	if item.CurrentQty+delta < 0 {
		return nil, apperr.InsufficientStock(id, item.CurrentQty, delta)
	}
	item.CurrentQty += delta
	item.UpdatedAt = at
	out := *item
	return out.Refresh(), nil
}

// AdjustQuantity adds delta to the item's quantity, refusing to go negative.
func (s *MemoryStore) AdjustQuantity(_ context.Context, id int64, delta int) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(id, delta, time.Now().UTC())
}

// SetMinQuantity changes the item's minimum quantity.
func (s *MemoryStore) SetMinQuantity(_ context.Context, id int64, minQty int) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("item", id)
	}
	item.MinQty = minQty
	item.UpdatedAt = time.Now().UTC()
	out := *item
	return out.Refresh(), nil
}

// CreateRequest stores a new request.
func (s *MemoryStore) CreateRequest(_ context.Context, req *model.MaterialRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch t := req.Target.(type) {
	case model.ExistingItem:
		if _, ok := s.items[t.ItemID]; !ok {
			return apperr.NotFound("item", t.ItemID)
		}
	case model.ProposedItem:
	default:
		return apperr.InvalidInput("target", "request must reference an item or propose one")
	}
	if req.Version == 0 {
		req.Version = 1
	}
	req.UpdatedAt = req.CreatedAt

	s.nextRequest++
	req.ID = s.nextRequest
	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

// GetRequest returns the request with the given ID.
func (s *MemoryStore) GetRequest(_ context.Context, id int64) (*model.MaterialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("request", id)
	}
	out := *req
	return &out, nil
}

// categoryLocked resolves the category a request is filed under.
func (s *MemoryStore) categoryLocked(r *model.MaterialRequest) string {
	switch t := r.Target.(type) {
	case model.ExistingItem:
		if item, ok := s.items[t.ItemID]; ok {
			return item.Category
		}
	case model.ProposedItem:
		if t.Category != "" {
			return t.Category
		}
	}
	return model.UncategorizedLabel
}

// ListRequests returns matching requests, newest first.
func (s *MemoryStore) ListRequests(_ context.Context, f model.RequestFilter) ([]model.MaterialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.MaterialRequest{}
	for _, r := range s.requests {
		if !f.MatchesStored(r) {
			continue
		}
		if f.Category != "" && s.categoryLocked(r) != f.Category {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) checkTransitionLocked(t Transition) (*model.MaterialRequest, error) {
	req, ok := s.requests[t.RequestID]
	if !ok {
		return nil, apperr.NotFound("request", t.RequestID)
	}
	if req.Status != t.From {
		return nil, apperr.Conflict("request", t.RequestID, "status changed to %s concurrently", req.Status)
	}
	return req, nil
}

func applyTransition(req *model.MaterialRequest, t Transition) {
	req.Status = t.To
	if t.To == model.RequestRejected {
		req.RejectionReason = t.Reason
	}
	req.ReviewedByID = t.ActorID
	req.ReviewedByName = t.ActorName
	req.Version++
	req.UpdatedAt = t.At
}

// TransitionRequest compare-and-swaps the request status.
func (s *MemoryStore) TransitionRequest(_ context.Context, t Transition) (*model.MaterialRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.checkTransitionLocked(t)
	if err != nil {
		return nil, err
	}
	applyTransition(req, t)
	out := *req
	return &out, nil
}

// FulfillRequest marks the request purchased and receives its quantity into
// stock. Both happen under one lock, or neither does.
func (s *MemoryStore) FulfillRequest(_ context.Context, t Transition) (*model.MaterialRequest, *model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.checkTransitionLocked(t)
	if err != nil {
		return nil, nil, err
	}

	var item *model.InventoryItem
	if itemID, ok := req.ItemID(); ok {
		item, err = s.adjustLocked(itemID, req.Quantity, t.At)
		if err != nil {
			return nil, nil, err
		}
	}

	applyTransition(req, t)
	out := *req
	return &out, item, nil
}

// AppendAudit stores an audit entry.
func (s *MemoryStore) AppendAudit(_ context.Context, entry *model.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.nextAudit++
	entry.ID = s.nextAudit
	s.audit = append(s.audit, *entry)
	return nil
}

// QueryAudit returns matching entries, most recent first.
func (s *MemoryStore) QueryAudit(_ context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.AuditLogEntry{}
	for i := range s.audit {
		if f.Matches(&s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return model.AuditNewerFirst(&out[i], &out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CreateUser stores a new user.
func (s *MemoryStore) CreateUser(_ context.Context, user *model.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.user.Email, user.Email) {
			return apperr.Conflict("user", 0, "email %q already registered", user.Email)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Role = model.ParseRole(string(user.Role))

	s.nextUser++
	user.ID = s.nextUser
	s.users[user.ID] = &memoryUser{user: *user, hash: passwordHash}
	return nil
}

// GetUser returns the user with the given ID.
func (s *MemoryStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	out := u.user
	return &out, nil
}

// GetUserByEmail returns the user and its password hash.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.user.Email, email) {
			out := u.user
			return &out, u.hash, nil
		}
	}
	return nil, "", &apperr.Error{Kind: apperr.KindNotFound, Entity: "user", Message: "not found"}
}

// ListUsers returns all users ordered by ID.
func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// CountUsers returns the number of users.
func (s *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// UpdateUserRole changes the user's role.
func (s *MemoryStore) UpdateUserRole(_ context.Context, id int64, role model.Role) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	u.user.Role = role
	out := u.user
	return &out, nil
}

// UpdatePasswordHash replaces the user's password hash.
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user", id)
	}
	u.hash = hash
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// GetStats returns entity counts.
func (s *MemoryStore) GetStats(context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := map[string]int64{}
	for _, r := range s.requests {
		byStatus[string(r.Status)]++
	}
	return map[string]interface{}{
		"backend":            "memory",
		"items":              int64(len(s.items)),
		"requests":           int64(len(s.requests)),
		"audit_entries":      int64(len(s.audit)),
		"users":              int64(len(s.users)),
		"requests_by_status": byStatus,
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
