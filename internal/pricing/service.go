package pricing

import (
	"errors"

	"chatcall-platform/internal/config"
)

// Service prices calls in coins.
//
// Contract:
// - Partial minutes always round up
// - Premium discount rounds the final cost up (the platform never under-charges by a fraction)
// - Pure calculation; no persistence
type Service struct {
	card RateCard
}

func NewService(card RateCard) *Service {
	return &Service{card: card}
}

// FromBilling builds the rate card from billing configuration.
func FromBilling(b config.BillingConfig) RateCard {
	return RateCard{
		AudioPerMinute:         b.AudioRatePerMinute,
		VideoPerMinute:         b.VideoRatePerMinute,
		PremiumDiscountPercent: b.PremiumDiscountPercent,
	}
}

var ErrInvalidPricingReq = errors.New("invalid pricing request")

func (s *Service) RatePerMinute(ct CallType) (int64, error) {
	switch ct {
	case CallTypeAudio:
		return s.card.AudioPerMinute, nil
	case CallTypeVideo:
		return s.card.VideoPerMinute, nil
	default:
		return 0, ErrInvalidPricingReq
	}
}

// Quote prices a call of durationSeconds. Zero seconds costs nothing.
func (s *Service) Quote(ct CallType, durationSeconds int64, premium bool) (Quote, error) {
	if durationSeconds < 0 {
		return Quote{}, ErrInvalidPricingReq
	}
	rate, err := s.RatePerMinute(ct)
	if err != nil {
		return Quote{}, err
	}

	minutes := billableMinutesFromSeconds(durationSeconds)
	original := minutes * rate
	final := original
	if premium {
		final = s.applyDiscount(original)
	}

	return Quote{
		CallType:        ct,
		DurationSeconds: durationSeconds,
		BillableMinutes: minutes,
		RatePerMinute:   rate,
		Premium:         premium,
		OriginalCost:    original,
		Discount:        original - final,
		FinalCost:       final,
	}, nil
}

// MinuteCost is the price of the first started minute.
func (s *Service) MinuteCost(ct CallType, premium bool) (int64, error) {
	q, err := s.Quote(ct, 1, premium)
	if err != nil {
		return 0, err
	}
	return q.FinalCost, nil
}

// MaxAffordableSeconds is the longest call whose quote stays within balance.
func (s *Service) MaxAffordableSeconds(ct CallType, balance int64, premium bool) (int64, error) {
	perMinute, err := s.MinuteCost(ct, premium)
	if err != nil {
		return 0, err
	}
	if balance <= 0 || perMinute <= 0 {
		return 0, nil
	}
	// Discounted per-minute cost rounds up, so whole minutes are a safe lower bound.
	minutes := balance / perMinute
	for minutes > 0 {
		q, err := s.Quote(ct, (minutes+1)*60, premium)
		if err != nil {
			return 0, err
		}
		if q.FinalCost > balance {
			break
		}
		minutes++
	}
	return minutes * 60, nil
}

func (s *Service) applyDiscount(cost int64) int64 {
	pct := s.card.PremiumDiscountPercent
	if pct <= 0 {
		return cost
	}
	if pct >= 100 {
		return 0
	}
	return ceilDiv(cost*(100-pct), 100)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func billableMinutesFromSeconds(sec int64) int64 {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
