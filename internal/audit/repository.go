package audit

import (
	"context"
	"fmt"
	"strings"

	"readearn/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Filter selects journal entries. Zero fields match everything; results are
// newest first.
type Filter struct {
	UserID   int64
	Category string
	Limit    int
}

func (f Filter) match(l *domain.AuditLog) bool {
	if f.UserID != 0 && l.UserID != f.UserID {
		return false
	}
	return f.Category == "" || l.Category == f.Category
}

// Store persists audit entries.
type Store interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	Query(ctx context.Context, f Filter) ([]*domain.AuditLog, error)
}

// Repository keeps the journal in the audit_logs table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, log *domain.AuditLog) error {
	details := log.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, log.UserID, log.Action, log.Category, details, log.IP, log.UserAgent).Scan(&log.ID, &log.CreatedAt)
}

func (r *Repository) Query(ctx context.Context, f Filter) ([]*domain.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	var q strings.Builder
	q.WriteString(`SELECT id, user_id, action, category, details, ip, user_agent, created_at FROM audit_logs`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.AuditLog])
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}
	return logs, nil
}
