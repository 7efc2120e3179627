package service

import (
	"context"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/repository"

	"go.uber.org/zap"
)

// MaxAuditLimit caps a single audit query.
const MaxAuditLimit = 1000

// AuditService appends and queries the activity log.
type AuditService struct {
	repo   repository.AuditRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewAuditService creates an audit service.
func NewAuditService(repo repository.AuditRepository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, now: time.Now, logger: logger.Named("audit")}
}

// Record appends an entry for actor.
func (s *AuditService) Record(ctx context.Context, actor model.Actor, action, description string) (*model.AuditLogEntry, error) {
	entry := &model.AuditLogEntry{
		Timestamp:   s.now().UTC(),
		UserID:      actor.ID,
		UserName:    actor.Name,
		Action:      action,
		Description: description,
	}
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// recordCommitted appends an entry for a change that has already been
// committed. A failure cannot undo the change, so it is logged instead of
// returned.
func (s *AuditService) recordCommitted(ctx context.Context, actor model.Actor, action, description string) {
	if _, err := s.Record(ctx, actor, action, description); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", action),
			zap.Int64("user_id", actor.ID),
			zap.String("description", description),
			zap.Error(err))
	}
}

// Query returns matching entries, most recent first.
func (s *AuditService) Query(ctx context.Context, actor model.Actor, filter model.AuditFilter) ([]model.AuditLogEntry, error) {
	if err := policy.Require(actor, policy.ViewReports); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperr.InvalidInput("to", "must not be before from")
	}
	if filter.Limit <= 0 || filter.Limit > MaxAuditLimit {
		filter.Limit = MaxAuditLimit
	}
	return s.repo.QueryAudit(ctx, filter)
}
