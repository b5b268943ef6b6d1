package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidMessage = errors.New("invalid outbox message")

// Enqueue writes a pending message on tx. It commits or rolls back with the
// business change that produced it.
func Enqueue(ctx context.Context, tx *gorm.DB, topic, key string, payload any) error {
	if tx == nil || topic == "" || key == "" {
		return ErrInvalidMessage
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	now := time.Now().UTC()
	msg := Message{
		Topic:      topic,
		MessageKey: key,
		Payload:    string(b),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return tx.WithContext(ctx).Create(&msg).Error
}

func pendingMessages(ctx context.Context, db *gorm.DB, limit int) ([]Message, error) {
	var out []Message
	err := db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func markSent(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{"status": StatusSent, "last_error": ""}).Error
}

// markAttemptFailed bumps retry_count and flips to failed once maxRetry is reached.
func markAttemptFailed(ctx context.Context, db *gorm.DB, msg Message, cause error, maxRetry int) (Status, error) {
	status := StatusPending
	if msg.RetryCount+1 >= maxRetry {
		status = StatusFailed
	}
	err := db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND status = ?", msg.ID, StatusPending).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"status":      status,
			"last_error":  cause.Error(),
		}).Error
	return status, err
}
