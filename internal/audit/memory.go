package audit

import (
	"context"
	"sync"
	"time"

	"readearn/internal/domain"
)

// MemoryRepository keeps the newest entries in process memory. It is used
// when no DATABASE_URL is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	max     int
	nextID  int64
	entries []*domain.AuditLog
}

func NewMemoryRepository(limit int) *MemoryRepository {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryRepository{max: limit}
}

func (r *MemoryRepository) Create(_ context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry := *log
	entry.ID = r.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	log.ID, log.CreatedAt = entry.ID, entry.CreatedAt

	r.entries = append(r.entries, &entry)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
	return nil
}

func (r *MemoryRepository) Query(_ context.Context, f Filter) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for i := len(r.entries) - 1; i >= 0 && (f.Limit <= 0 || len(out) < f.Limit); i-- {
		if f.match(r.entries[i]) {
			copied := *r.entries[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}
