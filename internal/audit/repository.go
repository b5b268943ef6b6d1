package audit

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func (r *GormRepo) Append(ctx context.Context, e Event) error {
	return r.db.WithContext(ctx).Create(&e).Error
}

// List returns the newest events first, optionally for one target user.
func (r *GormRepo) List(ctx context.Context, targetUserID string, limit int) ([]Event, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if targetUserID != "" {
		q = q.Where("target_user_id = ?", targetUserID)
	}
	var out []Event
	return out, q.Find(&out).Error
}

// MemoryRepo is an in-memory append-only repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
