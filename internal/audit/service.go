package audit

import (
	"context"

	"readearn/internal/domain"
	"readearn/internal/logger"
)

// Service handles audit logging
type Service struct {
	repo Store
}

// NewService creates a new audit service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Log creates a new audit log entry. Failures are logged, never returned.
func (s *Service) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	s.create(ctx, &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	})
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *Service) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]interface{}) {
	s.create(ctx, &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	})
}

// LogLogin logs a user login
func (s *Service) LogLogin(ctx context.Context, userID int64, ip, userAgent string) {
	s.LogWithRequest(ctx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, ip, userAgent, nil)
}

// LogAdminAction logs a moderation or payment decision
func (s *Service) LogAdminAction(ctx context.Context, adminID int64, action string, targetID int64, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["target_id"] = targetID
	s.Log(ctx, adminID, action, domain.AuditCategoryAdmin, details)
}

// UserLogs returns a user's entries, newest first.
func (s *Service) UserLogs(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	return s.Logs(ctx, Filter{UserID: userID, Limit: limit})
}

// RecentLogs returns the newest entries of every user.
func (s *Service) RecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.Logs(ctx, Filter{Limit: limit})
}

// Logs returns the entries matching f. A nil service has no entries.
func (s *Service) Logs(ctx context.Context, f Filter) ([]*domain.AuditLog, error) {
	if s == nil || s.repo == nil {
		return nil, nil
	}
	return s.repo.Query(ctx, f)
}

func (s *Service) create(ctx context.Context, log *domain.AuditLog) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Create(ctx, log); err != nil {
		logger.WithContext(ctx).Error("failed to create audit log", "error", err, "action", log.Action, "user_id", log.UserID)
	}
}
