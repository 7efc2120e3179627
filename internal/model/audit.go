package model

import "time"

// Audit action labels.
const (
	ActionRequestCreated   = "Solicitação Criada"
	ActionRequestApproved  = "Solicitação Aprovada"
	ActionRequestRejected  = "Solicitação Rejeitada"
	ActionRequestPurchased = "Material Comprado"
	ActionItemCreated      = "Item Cadastrado"
	ActionMinQtyChanged    = "Estoque Mínimo Alterado"
	ActionPasswordChanged  = "Alteração de Senha"
	ActionRoleChanged      = "Alteração de Perfil"
	ActionExportPDF        = "Exportação PDF"
	ActionExportCSV        = "Exportação CSV"
)

// AuditLogEntry is an append-only record of a state-changing action.
type AuditLogEntry struct {
	ID          int64     `json:"id" bson:"_id"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	UserID      int64     `json:"user_id" bson:"user_id"`
	UserName    string    `json:"user_name" bson:"user_name"`
	Action      string    `json:"action" bson:"action"`
	Description string    `json:"description" bson:"description"`
}

// AuditFilter narrows an audit query. Zero values mean "any"; Limit <= 0 means no limit.
type AuditFilter struct {
	From   time.Time
	To     time.Time
	UserID int64
	Limit  int
}

// Matches reports whether e passes the filter.
func (f AuditFilter) Matches(e *AuditLogEntry) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// AuditNewerFirst orders a before b when a is more recent, ties broken by
// descending id.
func AuditNewerFirst(a, b *AuditLogEntry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}
