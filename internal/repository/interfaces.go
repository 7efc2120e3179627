package repository

import (
	"context"
	"time"

	"cruzeta-api/internal/model"
)

// InventoryRepository defines inventory item data access methods.
type InventoryRepository interface {
	// CreateItem onboards a new item and assigns its ID.
	CreateItem(ctx context.Context, item *model.InventoryItem) error

	// GetItem returns the item or an apperr NotFound.
	GetItem(ctx context.Context, id int64) (*model.InventoryItem, error)

	// ListItems returns all items in creation order.
	ListItems(ctx context.Context) ([]model.InventoryItem, error)

	// AdjustQuantity atomically adds delta to the item's quantity. It fails
	// with InsufficientStock, leaving the item untouched, if the result
	// would be negative.
	AdjustQuantity(ctx context.Context, id int64, delta int) (*model.InventoryItem, error)

	// SetMinQuantity changes the item's minimum quantity.
	SetMinQuantity(ctx context.Context, id int64, minQty int) (*model.InventoryItem, error)
}

// Transition describes a compare-and-swap on a request's status.
type Transition struct {
	RequestID int64
	From      model.RequestStatus
	To        model.RequestStatus
	Reason    string
	ActorID   int64
	ActorName string
	At        time.Time
}

// RequestRepository defines material request data access methods.
type RequestRepository interface {
	// CreateRequest stores a new request and assigns its ID.
	CreateRequest(ctx context.Context, req *model.MaterialRequest) error

	// GetRequest returns the request or an apperr NotFound.
	GetRequest(ctx context.Context, id int64) (*model.MaterialRequest, error)

	// ListRequests returns matching requests, newest first (ties by descending id).
	ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.MaterialRequest, error)

	// TransitionRequest moves the request from t.From to t.To. It fails with
	// Conflict if the stored status is no longer t.From.
	TransitionRequest(ctx context.Context, t Transition) (*model.MaterialRequest, error)

	// FulfillRequest performs t (APROVADO -> COMPRADO) and, when the request
	// targets an existing item, adds the requested quantity to that item, as
	// one atomic unit. The returned item is nil for proposed-item requests.
	FulfillRequest(ctx context.Context, t Transition) (*model.MaterialRequest, *model.InventoryItem, error)
}

// AuditRepository defines audit log data access methods. Entries are never
// updated or deleted.
type AuditRepository interface {
	// AppendAudit stores the entry and assigns a monotonically increasing ID.
	AppendAudit(ctx context.Context, entry *model.AuditLogEntry) error

	// QueryAudit returns matching entries, most recent first, ties broken by
	// descending ID.
	QueryAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditLogEntry, error)
}

// UserRepository defines user directory data access methods.
type UserRepository interface {
	// CreateUser stores a new user and assigns its ID. A duplicate email is a Conflict.
	CreateUser(ctx context.Context, user *model.User, passwordHash string) error

	// GetUser returns the user or an apperr NotFound.
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// GetUserByEmail returns the user and its password hash.
	GetUserByEmail(ctx context.Context, email string) (*model.User, string, error)

	// ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]model.User, error)

	// CountUsers returns the number of users.
	CountUsers(ctx context.Context) (int64, error)

	// UpdateUserRole changes the user's role.
	UpdateUserRole(ctx context.Context, id int64, role model.Role) (*model.User, error)

	// UpdatePasswordHash replaces the user's password hash.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Store is a durable backend holding items, requests, users and (by default)
// the audit log.
type Store interface {
	InventoryRepository
	RequestRepository
	UserRepository
	AuditRepository

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// GetStats returns statistics about the backend.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the backend connection.
	Close() error
}
