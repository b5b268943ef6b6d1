package earnings

import (
	"context"
	"fmt"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// evaluateBonuses runs after the earning increment on the same transaction.
// Both rules are independent and may fire together. Awards credit the host
// balance directly and never re-enter evaluation.
func (s *Service) evaluateBonuses(ctx context.Context, tx *gorm.DB, hostID string, now time.Time) ([]Bonus, error) {
	host := accounts.NewStore(tx)
	var out []Bonus

	count, err := host.GetHostCallCount(ctx, hostID)
	if err != nil {
		return nil, err
	}
	// The counter moved from count-1 to count in this transaction.
	for _, m := range s.cfg.Milestones {
		if count-1 >= m.Calls || count < m.Calls {
			continue
		}
		key := fmt.Sprintf("%s:milestone:%d", hostID, m.Calls)
		b := Bonus{
			HostID:      hostID,
			BonusType:   BonusMilestone,
			AmountMinor: m.AmountMinor,
			Description: fmt.Sprintf("Milestone bonus for %d calls", m.Calls),
			DedupeKey:   &key,
		}
		ok, err := s.award(ctx, tx, &b, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, b)
		}
	}

	rating, err := host.GetHostRating(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if rating >= s.cfg.HighRatingThreshold && s.cfg.HighRatingBonusMinor > 0 {
		var recent int64
		err := tx.WithContext(ctx).Model(&Bonus{}).
			Where("host_id = ? AND bonus_type = ? AND credited_at > ?", hostID, BonusHighRating, now.Add(-s.cfg.HighRatingWindow)).
			Count(&recent).Error
		if err != nil {
			return nil, err
		}
		if recent == 0 {
			b := Bonus{
				HostID:      hostID,
				BonusType:   BonusHighRating,
				AmountMinor: s.cfg.HighRatingBonusMinor,
				Description: fmt.Sprintf("High rating bonus (%.2f)", rating),
			}
			ok, err := s.award(ctx, tx, &b, now)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// award inserts the bonus and credits the host. It reports false when the
// dedupe key was already taken.
func (s *Service) award(ctx context.Context, tx *gorm.DB, b *Bonus, now time.Time) (bool, error) {
	b.ID = uuid.NewString()
	b.CreditedAt = now

	q := tx.WithContext(ctx)
	if b.DedupeKey != nil {
		q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true})
	}
	res := q.Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := s.incrementHost(ctx, tx, b.HostID, map[string]any{
		"total_earnings_minor":    gorm.Expr("total_earnings_minor + ?", b.AmountMinor),
		"available_balance_minor": gorm.Expr("available_balance_minor + ?", b.AmountMinor),
	}); err != nil {
		return false, err
	}

	return true, events.Enqueue(ctx, tx, events.TopicHostBonusCredited, b.HostID, events.HostBonusCredited{
		BonusID:     b.ID,
		HostID:      b.HostID,
		BonusType:   string(b.BonusType),
		AmountMinor: b.AmountMinor,
		CreditedAt:  now,
	})
}
