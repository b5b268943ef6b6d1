package earnings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/config"
	"chatcall-platform/internal/events"
	"chatcall-platform/internal/metrics"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateEarning = errors.New("earning already recorded for call")
	ErrNotAHost         = errors.New("user is not a verified host")
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidState     = errors.New("invalid state")
	// ErrInsufficientFunds is shared with the wallet so callers match one sentinel.
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
)

// HostChecker answers whether a user is currently a verified host.
type HostChecker interface {
	IsHost(ctx context.Context, userID string) (bool, error)
}

// Service is the host earnings ledger: per-call revenue share, bonuses and payouts.
//
// Host balance invariant:
// total_earnings = available_balance + total_withdrawn + pending withdrawals
type Service struct {
	db      *gorm.DB
	hosts   HostChecker
	cfg     config.BillingConfig
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewService(db *gorm.DB, hosts HostChecker, cfg config.BillingConfig, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, hosts: hosts, cfg: cfg, log: log, metrics: m, clock: time.Now}
}

// RecordEarning credits the host's share of a billed call. It returns nil, nil
// when hostID is not a verified host, and ErrDuplicateEarning when the call
// already produced an earning.
func (s *Service) RecordEarning(ctx context.Context, callID, hostID string, callType pricing.CallType, durationSeconds, coinsCharged int64) (*Earning, error) {
	if callID == "" || hostID == "" || durationSeconds < 0 || coinsCharged < 0 {
		return nil, ErrInvalidArgument
	}
	share, err := s.sharePercent(callType)
	if err != nil {
		return nil, err
	}

	isHost, err := s.hosts.IsHost(ctx, hostID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !isHost {
		s.metrics.ObserveEarning(string(callType), "not_host", 0)
		return nil, nil
	}

	now := s.clock().UTC()
	revenue := coinsCharged * s.cfg.CoinToMinorRate
	e := Earning{
		ID:                  uuid.NewString(),
		HostID:              hostID,
		CallID:              callID,
		CallType:            callType,
		CallDurationSeconds: durationSeconds,
		CoinsCharged:        coinsCharged,
		TotalRevenueMinor:   revenue,
		HostSharePercent:    share,
		HostEarningMinor:    revenue * share / 100,
		Status:              EarningStatusCompleted,
		ProcessedAt:         now,
	}

	var awarded []Bonus
	err = utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "call_id"}}, DoNothing: true}).
			Create(&e)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateEarning
		}

		// This update takes the host row lock; concurrent earnings for the same
		// host serialize here, before bonus evaluation reads anything.
		if err := s.incrementHost(ctx, tx, hostID, map[string]any{
			"total_earnings_minor":    gorm.Expr("total_earnings_minor + ?", e.HostEarningMinor),
			"available_balance_minor": gorm.Expr("available_balance_minor + ?", e.HostEarningMinor),
			"total_calls_as_host":     gorm.Expr("total_calls_as_host + 1"),
			"total_minutes_as_host":   gorm.Expr("total_minutes_as_host + ?", ceilMinutes(durationSeconds)),
		}); err != nil {
			return err
		}

		b, err := s.evaluateBonuses(ctx, tx, hostID, now)
		if err != nil {
			return fmt.Errorf("bonus evaluation: %w", err)
		}
		awarded = b

		return events.Enqueue(ctx, tx, events.TopicHostEarningRecorded, callID, events.HostEarningRecorded{
			EarningID:        e.ID,
			CallID:           callID,
			HostID:           hostID,
			CallType:         string(callType),
			TotalRevenue:     e.TotalRevenueMinor,
			HostSharePercent: share,
			HostEarning:      e.HostEarningMinor,
			ProcessedAt:      now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEarning) {
			s.metrics.ObserveEarning(string(callType), "duplicate", 0)
		}
		return nil, err
	}

	s.metrics.ObserveEarning(string(callType), "recorded", e.HostEarningMinor)
	for _, b := range awarded {
		s.metrics.IncBonus(string(b.BonusType))
		s.log.InfoContext(ctx, "host bonus credited", "host_id", hostID, "bonus_type", b.BonusType, "amount_minor", b.AmountMinor)
	}
	s.log.InfoContext(ctx, "host earning recorded",
		"call_id", callID,
		"host_id", hostID,
		"call_type", callType,
		"revenue_minor", revenue,
		"earning_minor", e.HostEarningMinor,
	)
	return &e, nil
}

func (s *Service) sharePercent(ct pricing.CallType) (int64, error) {
	switch ct {
	case pricing.CallTypeVideo:
		return s.cfg.VideoSharePercent, nil
	case pricing.CallTypeAudio:
		return s.cfg.AudioSharePercent, nil
	default:
		return 0, fmt.Errorf("%w: call type %q", ErrInvalidArgument, ct)
	}
}

func (s *Service) incrementHost(ctx context.Context, tx *gorm.DB, hostID string, updates map[string]any) error {
	res := tx.WithContext(ctx).Model(&accounts.Account{}).Where("id = ?", hostID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func ceilMinutes(sec int64) int64 {
	if sec <= 0 {
		return 0
	}
	return (sec + 59) / 60
}
