package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"

	"go.uber.org/zap"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name            string
	numbered        bool // $1, $2 placeholders instead of ?
	returningID     bool // INSERT ... RETURNING id instead of LastInsertId
	schema          []string
	uniqueViolation func(error) bool
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// SQLStore implements Store on database/sql. The SQLite, PostgreSQL and
// MySQL constructors differ only in driver, DSN and schema.
type SQLStore struct {
	db     *sql.DB
	d      dialect
	logger *zap.Logger
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLStore{db: db, d: d, logger: logger.Named(d.name)}, nil
}

// q rewrites ? placeholders for dialects that number them.
func (s *SQLStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) insert(ctx context.Context, ex execer, query string, args ...any) (int64, error) {
	if s.d.returningID {
		var id int64
		err := ex.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := ex.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStore) isUnique(err error) bool {
	return s.d.uniqueViolation != nil && s.d.uniqueViolation(err)
}

// Items

const itemColumns = `id, sku, name, category, unit, unit_price, current_qty, min_qty, created_at, updated_at`

func scanItem(sc scanner) (*model.InventoryItem, error) {
	var it model.InventoryItem
	if err := sc.Scan(&it.ID, &it.SKU, &it.Name, &it.Category, &it.Unit, &it.UnitPrice,
		&it.CurrentQty, &it.MinQty, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it.Refresh(), nil
}

// CreateItem onboards a new item.
func (s *SQLStore) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt

	id, err := s.insert(ctx, s.db, `
		INSERT INTO inventory_items (sku, name, category, unit, unit_price, current_qty, min_qty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SKU, item.Name, item.Category, item.Unit, item.UnitPrice,
		item.CurrentQty, item.MinQty, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if s.isUnique(err) {
			return apperr.Conflict("item", 0, "sku %q already exists", item.SKU)
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	item.ID = id
	item.Refresh()
	return nil
}

func (s *SQLStore) getItem(ctx context.Context, ex execer, id int64) (*model.InventoryItem, error) {
	row := ex.QueryRowContext(ctx, s.q(`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetItem returns the item with the given ID.
func (s *SQLStore) GetItem(ctx context.Context, id int64) (*model.InventoryItem, error) {
	return s.getItem(ctx, s.db, id)
}

// ListItems returns all items in creation order.
func (s *SQLStore) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []model.InventoryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *SQLStore) adjustQuantityTx(ctx context.Context, tx *sql.Tx, id int64, delta int, at time.Time) (*model.InventoryItem, error) {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE inventory_items
		SET current_qty = current_qty + ?, updated_at = ?
		WHERE id = ? AND current_qty + ? >= 0`),
		delta, at, id, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust quantity: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to adjust quantity: %w", err)
	}
	if rows == 0 {
		var current int
		err := tx.QueryRowContext(ctx, s.q(`SELECT current_qty FROM inventory_items WHERE id = ?`), id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("item", id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read quantity: %w", err)
		}
		return nil, apperr.InsufficientStock(id, current, delta)
	}

	return s.getItem(ctx, tx, id)
}

// AdjustQuantity adds delta to the item's quantity, refusing to go negative.
func (s *SQLStore) AdjustQuantity(ctx context.Context, id int64, delta int) (*model.InventoryItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.adjustQuantityTx(ctx, tx, id, delta, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, nil
}

// SetMinQuantity changes the item's minimum quantity.
func (s *SQLStore) SetMinQuantity(ctx context.Context, id int64, minQty int) (*model.InventoryItem, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE inventory_items SET min_qty = ?, updated_at = ? WHERE id = ?`),
		minQty, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set min quantity: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, apperr.NotFound("item", id)
	}
	return s.getItem(ctx, s.db, id)
}

// Requests

const requestColumns = `r.id, r.item_id, r.proposed_name, r.proposed_category, r.quantity, r.unit_price,
	r.observation, r.requester_id, r.requester_name, r.status, r.rejection_reason,
	r.reviewed_by_id, r.reviewed_by_name, r.version, r.created_at, r.updated_at`

func scanRequest(sc scanner) (*model.MaterialRequest, error) {
	var (
		r                       model.MaterialRequest
		itemID                  sql.NullInt64
		proposedName, proposedC sql.NullString
		reason                  sql.NullString
		status                  string
	)
	if err := sc.Scan(&r.ID, &itemID, &proposedName, &proposedC, &r.Quantity, &r.UnitPrice,
		&r.Observation, &r.RequesterID, &r.RequesterName, &status, &reason,
		&r.ReviewedByID, &r.ReviewedByName, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	if itemID.Valid {
		r.Target = model.ExistingItem{ItemID: itemID.Int64}
	} else {
		r.Target = model.ProposedItem{Name: proposedName.String, Category: proposedC.String}
	}
	r.Status = model.RequestStatus(status)
	r.RejectionReason = reason.String
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// CreateRequest stores a new request.
func (s *SQLStore) CreateRequest(ctx context.Context, req *model.MaterialRequest) error {
	var (
		itemID                 sql.NullInt64
		proposedName, proposed sql.NullString
	)
	switch t := req.Target.(type) {
	case model.ExistingItem:
		itemID = sql.NullInt64{Int64: t.ItemID, Valid: true}
	case model.ProposedItem:
		proposedName = sql.NullString{String: t.Name, Valid: true}
		proposed = sql.NullString{String: t.Category, Valid: t.Category != ""}
	default:
		return apperr.InvalidInput("target", "request must reference an item or propose one")
	}
	if req.Version == 0 {
		req.Version = 1
	}

	id, err := s.insert(ctx, s.db, `
		INSERT INTO material_requests (item_id, proposed_name, proposed_category, quantity, unit_price,
			observation, requester_id, requester_name, status, reviewed_by_id, reviewed_by_name,
			version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?, ?)`,
		itemID, proposedName, proposed, req.Quantity, req.UnitPrice,
		req.Observation, req.RequesterID, req.RequesterName, string(req.Status),
		req.Version, req.CreatedAt, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ID = id
	req.UpdatedAt = req.CreatedAt
	return nil
}

func (s *SQLStore) getRequest(ctx context.Context, ex execer, id int64) (*model.MaterialRequest, error) {
	row := ex.QueryRowContext(ctx, s.q(`SELECT `+requestColumns+` FROM material_requests r WHERE r.id = ?`), id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetRequest returns the request with the given ID.
func (s *SQLStore) GetRequest(ctx context.Context, id int64) (*model.MaterialRequest, error) {
	return s.getRequest(ctx, s.db, id)
}

// ListRequests returns matching requests, newest first.
func (s *SQLStore) ListRequests(ctx context.Context, f model.RequestFilter) ([]model.MaterialRequest, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + requestColumns + `
		FROM material_requests r
		LEFT JOIN inventory_items i ON i.id = r.item_id
		WHERE 1 = 1`)
	var args []any

	if f.RequesterID != 0 {
		b.WriteString(` AND r.requester_id = ?`)
		args = append(args, f.RequesterID)
	}
	if f.Status != "" {
		b.WriteString(` AND r.status = ?`)
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		b.WriteString(` AND r.created_at >= ?`)
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		b.WriteString(` AND r.created_at <= ?`)
		args = append(args, f.To.UTC())
	}
	if f.Category != "" {
		b.WriteString(` AND COALESCE(i.category, r.proposed_category, ?) = ?`)
		args = append(args, model.UncategorizedLabel, f.Category)
	}
	b.WriteString(` ORDER BY r.created_at DESC, r.id DESC`)

	rows, err := s.db.QueryContext(ctx, s.q(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []model.MaterialRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (s *SQLStore) transitionTx(ctx context.Context, tx *sql.Tx, t Transition) (*model.MaterialRequest, error) {
	var reason sql.NullString
	if t.To == model.RequestRejected {
		reason = sql.NullString{String: t.Reason, Valid: true}
	}

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE material_requests
		SET status = ?, rejection_reason = ?, reviewed_by_id = ?, reviewed_by_name = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(t.To), reason, t.ActorID, t.ActorName, t.At, t.RequestID, string(t.From))
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	if rows == 0 {
		current, err := s.getRequest(ctx, tx, t.RequestID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("request", t.RequestID, "status changed to %s concurrently", current.Status)
	}

	return s.getRequest(ctx, tx, t.RequestID)
}

// TransitionRequest compare-and-swaps the request status.
func (s *SQLStore) TransitionRequest(ctx context.Context, t Transition) (*model.MaterialRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := s.transitionTx(ctx, tx, t)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return req, nil
}

// FulfillRequest marks the request purchased and receives its quantity into
// stock in one transaction.
func (s *SQLStore) FulfillRequest(ctx context.Context, t Transition) (*model.MaterialRequest, *model.InventoryItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := s.transitionTx(ctx, tx, t)
	if err != nil {
		return nil, nil, err
	}

	var item *model.InventoryItem
	if itemID, ok := req.ItemID(); ok {
		item, err = s.adjustQuantityTx(ctx, tx, itemID, req.Quantity, t.At)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return req, item, nil
}

// Audit log

// AppendAudit stores an audit entry.
func (s *SQLStore) AppendAudit(ctx context.Context, entry *model.AuditLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	id, err := s.insert(ctx, s.db, `
		INSERT INTO audit_log (created_at, user_id, user_name, action, description)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.UserID, entry.UserName, entry.Action, entry.Description)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	entry.ID = id
	return nil
}

// QueryAudit returns matching entries, most recent first.
func (s *SQLStore) QueryAudit(ctx context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, created_at, user_id, user_name, action, description FROM audit_log WHERE 1 = 1`)
	var args []any

	if f.UserID != 0 {
		b.WriteString(` AND user_id = ?`)
		args = append(args, f.UserID)
	}
	if !f.From.IsZero() {
		b.WriteString(` AND created_at >= ?`)
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		b.WriteString(` AND created_at <= ?`)
		args = append(args, f.To.UTC())
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.UserName, &e.Action, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Users

const userColumns = `id, name, email, role, department, created_at`

func scanUser(sc scanner, extra ...any) (*model.User, error) {
	var u model.User
	var role string
	dest := append([]any{&u.ID, &u.Name, &u.Email, &role, &u.Department, &u.CreatedAt}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	u.Role = model.ParseRole(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser stores a new user.
func (s *SQLStore) CreateUser(ctx context.Context, user *model.User, passwordHash string) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Role = model.ParseRole(string(user.Role))

	id, err := s.insert(ctx, s.db, `
		INSERT INTO users (name, email, role, department, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, string(user.Role), user.Department, passwordHash, user.CreatedAt)
	if err != nil {
		if s.isUnique(err) {
			return apperr.Conflict("user", 0, "email %q already registered", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetUser returns the user with the given ID.
func (s *SQLStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user and its password hash.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, string, error) {
	var hash string
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+`, password_hash FROM users WHERE email = ?`), email)
	u, err := scanUser(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &apperr.Error{Kind: apperr.KindNotFound, Entity: "user", Message: "not found"}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	return u, hash, nil
}

// ListUsers returns all users ordered by ID.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users.
func (s *SQLStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateUserRole changes the user's role.
func (s *SQLStore) UpdateUserRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET role = ? WHERE id = ?`), string(role), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, apperr.NotFound("user", id)
	}
	return s.GetUser(ctx, id)
}

// UpdatePasswordHash replaces the user's password hash.
func (s *SQLStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetStats returns statistics about the database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": s.d.name}

	counts := map[string]string{
		"items":         `SELECT COUNT(*) FROM inventory_items`,
		"requests":      `SELECT COUNT(*) FROM material_requests`,
		"audit_entries": `SELECT COUNT(*) FROM audit_log`,
		"users":         `SELECT COUNT(*) FROM users`,
	}
	for key, query := range counts {
		var n int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM material_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byStatus := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		byStatus[status] = n
	}
	stats["requests_by_status"] = byStatus

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}

	return stats, rows.Err()
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
