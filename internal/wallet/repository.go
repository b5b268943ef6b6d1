package wallet

import (
	"context"
	"errors"

	"chatcall-platform/internal/accounts"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Every helper here takes the transaction handle explicitly. Balance changes
// are single conditional UPDATE statements; there is no read-then-write.

func findEntryByIdempotency(ctx context.Context, tx *gorm.DB, key string) (Entry, bool, error) {
	var e Entry
	err := tx.WithContext(ctx).Where("idempotency_key = ?", key).Take(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

// insertEntry appends e. It reports false when another posting already owns
// the idempotency key.
func insertEntry(ctx context.Context, tx *gorm.DB, e *Entry) (bool, error) {
	q := tx.WithContext(ctx)
	if e.IdempotencyKey != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		})
	}
	res := q.Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// applyDelta changes coin_balance by delta. Negative deltas only apply when the
// balance covers them.
func applyDelta(ctx context.Context, tx *gorm.DB, userID string, delta int64) error {
	q := tx.WithContext(ctx).Model(&accounts.Account{}).Where("id = ?", userID)
	if delta < 0 {
		q = q.Where("coin_balance >= ?", -delta)
	}
	res := q.Update("coin_balance", gorm.Expr("coin_balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := tx.WithContext(ctx).Model(&accounts.Account{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInsufficientFunds
}

func readBalance(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var a accounts.Account
	err := db.WithContext(ctx).Select("id", "coin_balance").Where("id = ?", userID).Take(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return a.CoinBalance, nil
}

func sumLedger(ctx context.Context, db *gorm.DB, userID string) (sum int64, count int64, err error) {
	var row struct {
		Total int64
		N     int64
	}
	err = db.WithContext(ctx).Model(&Entry{}).
		Select("COALESCE(SUM(coin_delta), 0) AS total, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Scan(&row).Error
	return row.Total, row.N, err
}
