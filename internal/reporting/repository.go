package reporting

import (
	"context"
	"time"

	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/wallet"

	"gorm.io/gorm"
)

// Repository reads the immutable or append-mostly sources reports are built from.
// Ranges are half-open: [from, to).
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error)
	ListLedger(ctx context.Context, from, to time.Time) ([]wallet.Entry, error)
	ListEarnings(ctx context.Context, from, to time.Time) ([]earnings.Earning, error)
	ListBonuses(ctx context.Context, from, to time.Time) ([]earnings.Bonus, error)
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func (r *GormRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error) {
	var out []calls.Call
	err := r.db.WithContext(ctx).Where("created_at >= ? AND created_at < ?", from, to).Find(&out).Error
	return out, err
}

func (r *GormRepo) ListLedger(ctx context.Context, from, to time.Time) ([]wallet.Entry, error) {
	var out []wallet.Entry
	err := r.db.WithContext(ctx).Where("created_at >= ? AND created_at < ?", from, to).Find(&out).Error
	return out, err
}

func (r *GormRepo) ListEarnings(ctx context.Context, from, to time.Time) ([]earnings.Earning, error) {
	var out []earnings.Earning
	err := r.db.WithContext(ctx).Where("processed_at >= ? AND processed_at < ?", from, to).Find(&out).Error
	return out, err
}

func (r *GormRepo) ListBonuses(ctx context.Context, from, to time.Time) ([]earnings.Bonus, error) {
	var out []earnings.Bonus
	err := r.db.WithContext(ctx).Where("credited_at >= ? AND credited_at < ?", from, to).Find(&out).Error
	return out, err
}
