package earnings

import (
	"context"
	"errors"
	"strings"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestWithdrawal reserves amountMinor of the host's available balance.
func (s *Service) RequestWithdrawal(ctx context.Context, hostID string, amountMinor int64) (Withdrawal, error) {
	if hostID == "" || amountMinor <= 0 {
		return Withdrawal{}, ErrInvalidArgument
	}
	if amountMinor < s.cfg.MinWithdrawalMinor {
		return Withdrawal{}, ErrInvalidArgument
	}
	if err := s.requireHost(ctx, hostID); err != nil {
		return Withdrawal{}, err
	}

	w := Withdrawal{
		ID:          uuid.NewString(),
		HostID:      hostID,
		AmountMinor: amountMinor,
		Status:      WithdrawalPending,
		RequestedAt: s.clock().UTC(),
	}
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&accounts.Account{}).
			Where("id = ? AND available_balance_minor >= ?", hostID, amountMinor).
			Update("available_balance_minor", gorm.Expr("available_balance_minor - ?", amountMinor))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}
		return tx.WithContext(ctx).Create(&w).Error
	})
	if err != nil {
		return Withdrawal{}, err
	}
	s.log.InfoContext(ctx, "withdrawal requested", "host_id", hostID, "withdrawal_id", w.ID, "amount_minor", amountMinor)
	return w, nil
}

// ApproveWithdrawal settles a pending request; the reserved amount moves to total_withdrawn.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID, reviewerID, payoutRef string) (Withdrawal, error) {
	return s.review(ctx, withdrawalID, reviewerID, WithdrawalApproved, strings.TrimSpace(payoutRef), "")
}

// RejectWithdrawal cancels a pending request and returns the amount to the available balance.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID, reviewerID, note string) (Withdrawal, error) {
	return s.review(ctx, withdrawalID, reviewerID, WithdrawalRejected, "", strings.TrimSpace(note))
}

func (s *Service) review(ctx context.Context, withdrawalID, reviewerID string, to WithdrawalStatus, payoutRef, note string) (Withdrawal, error) {
	if withdrawalID == "" || reviewerID == "" {
		return Withdrawal{}, ErrInvalidArgument
	}
	now := s.clock().UTC()

	var out Withdrawal
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("id = ?", withdrawalID).Take(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.WithContext(ctx).Model(&Withdrawal{}).
			Where("id = ? AND status = ?", withdrawalID, WithdrawalPending).
			Updates(map[string]any{
				"status":      to,
				"payout_ref":  payoutRef,
				"reviewed_by": reviewerID,
				"review_note": note,
				"reviewed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}

		var updates map[string]any
		switch to {
		case WithdrawalApproved:
			updates = map[string]any{"total_withdrawn_minor": gorm.Expr("total_withdrawn_minor + ?", out.AmountMinor)}
		case WithdrawalRejected:
			updates = map[string]any{"available_balance_minor": gorm.Expr("available_balance_minor + ?", out.AmountMinor)}
		default:
			return ErrInvalidState
		}
		if err := s.incrementHost(ctx, tx, out.HostID, updates); err != nil {
			return err
		}

		out.Status = to
		out.PayoutRef = payoutRef
		out.ReviewedBy = reviewerID
		out.ReviewNote = note
		out.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return Withdrawal{}, err
	}
	s.log.InfoContext(ctx, "withdrawal reviewed", "withdrawal_id", withdrawalID, "status", to, "reviewer", reviewerID)
	return out, nil
}

func (s *Service) requireHost(ctx context.Context, hostID string) error {
	ok, err := s.hosts.IsHost(ctx, hostID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !ok {
		return ErrNotAHost
	}
	return nil
}
