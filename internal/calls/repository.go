package calls

import (
	"context"
	"errors"
	"time"

	"chatcall-platform/internal/billing"

	"gorm.io/gorm"
)

// Repository is the GORM-backed call store. It also satisfies
// billing.ChargeRecorder so the charge lands in the billing transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ billing.ChargeRecorder = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, c *Call) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) Get(ctx context.Context, callID string) (Call, error) {
	var c Call
	err := r.db.WithContext(ctx).Where("id = ?", callID).Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

// ListForUser returns calls where userID is either participant, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Call, error) {
	var out []Call
	err := r.db.WithContext(ctx).
		Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// RecordCharge stamps coins_charged once. A second stamp returns billing.ErrAlreadyBilled.
func (r *Repository) RecordCharge(ctx context.Context, tx *gorm.DB, callID string, coins int64) error {
	res := tx.WithContext(ctx).Model(&Call{}).
		Where("id = ? AND coins_charged IS NULL", callID).
		Updates(map[string]any{"coins_charged": coins, "billing_error": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.WithContext(ctx).Model(&Call{}).Where("id = ?", callID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return billing.ErrAlreadyBilled
	}
	return nil
}

// compareAndSetStatus moves the call from `from` to `to` only if nobody else
// moved it first. ErrStaleStatus means another writer won.
func (r *Repository) compareAndSetStatus(ctx context.Context, callID string, from, to Status, extra map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&Call{}).
		Where("id = ? AND status = ?", callID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *Repository) setBillingError(ctx context.Context, callID, msg string) error {
	return r.db.WithContext(ctx).Model(&Call{}).
		Where("id = ? AND coins_charged IS NULL", callID).
		Update("billing_error", truncate(msg, 255)).Error
}

// setRating records the caller's rating once, inside tx.
func setRating(ctx context.Context, tx *gorm.DB, callID, callerID string, stars int, now time.Time) error {
	res := tx.WithContext(ctx).Model(&Call{}).
		Where("id = ? AND caller_id = ? AND status = ? AND caller_rating IS NULL", callID, callerID, StatusCompleted).
		Updates(map[string]any{"caller_rating": stars, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyRated
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
