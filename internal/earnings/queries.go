package earnings

import (
	"context"
	"errors"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/pkg/utils"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Service) Summary(ctx context.Context, hostID string) (Summary, error) {
	if hostID == "" {
		return Summary{}, ErrInvalidArgument
	}
	var out Summary
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		a, err := accounts.NewStore(tx).Get(ctx, hostID)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !a.VerifiedHost() {
			return ErrNotAHost
		}

		var pending, bonuses int64
		if err := tx.WithContext(ctx).Model(&Withdrawal{}).
			Select("COALESCE(SUM(amount_minor), 0)").
			Where("host_id = ? AND status = ?", hostID, WithdrawalPending).
			Scan(&pending).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Model(&Bonus{}).
			Select("COALESCE(SUM(amount_minor), 0)").
			Where("host_id = ?", hostID).
			Scan(&bonuses).Error; err != nil {
			return err
		}

		out = Summary{
			HostID:                 hostID,
			TotalEarningsMinor:     a.TotalEarningsMinor,
			AvailableBalanceMinor:  a.AvailableBalanceMinor,
			TotalWithdrawnMinor:    a.TotalWithdrawnMinor,
			PendingWithdrawalMinor: pending,
			BonusTotalMinor:        bonuses,
			TotalCalls:             a.TotalCallsAsHost,
			TotalMinutes:           a.TotalMinutesAsHost,
			Rating:                 a.HostRating(),
		}
		return nil
	})
	return out, err
}

func (s *Service) ListEarnings(ctx context.Context, hostID string, limit, offset int) ([]Earning, error) {
	var out []Earning
	err := s.list(ctx, hostID, limit, offset, "processed_at DESC", &out)
	return out, err
}

func (s *Service) ListBonuses(ctx context.Context, hostID string, limit, offset int) ([]Bonus, error) {
	var out []Bonus
	err := s.list(ctx, hostID, limit, offset, "credited_at DESC", &out)
	return out, err
}

func (s *Service) ListWithdrawals(ctx context.Context, hostID string, limit, offset int) ([]Withdrawal, error) {
	var out []Withdrawal
	err := s.list(ctx, hostID, limit, offset, "requested_at DESC", &out)
	return out, err
}

func (s *Service) list(ctx context.Context, hostID string, limit, offset int, order string, dest any) error {
	if hostID == "" || offset < 0 {
		return ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order(order).
		Limit(limit).Offset(offset).
		Find(dest).Error
}
