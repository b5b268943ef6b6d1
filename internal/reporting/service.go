package reporting

import (
	"context"
	"errors"

	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service builds admin analytics. Reports are internal-only.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, r TimeRange) (CallsSummary, error) {
	if !r.valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, r.From, r.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Range: r, ByStatus: map[calls.Status]int{}}
	var timed int64
	for _, c := range rows {
		out.TotalCalls++
		out.ByStatus[c.Status]++
		switch c.CallType {
		case pricing.CallTypeAudio:
			out.AudioCalls++
		case pricing.CallTypeVideo:
			out.VideoCalls++
		}
		if c.DurationSeconds != nil && *c.DurationSeconds > 0 {
			out.TotalDurationSeconds += *c.DurationSeconds
			timed++
		}
		if c.CoinsCharged != nil {
			out.BilledCalls++
			out.TotalCoinsCharged += *c.CoinsCharged
		} else if c.BillingError != "" {
			out.BillingFailures++
		}
		if c.CallerRating != nil {
			out.RatedCalls++
		}
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	return out, nil
}

func (s *Service) RevenueSummary(ctx context.Context, r TimeRange) (RevenueSummary, error) {
	if !r.valid() {
		return RevenueSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return RevenueSummary{}, errors.New("reporting: repository not configured")
	}

	entries, err := s.repo.ListLedger(ctx, r.From, r.To)
	if err != nil {
		return RevenueSummary{}, err
	}
	out := RevenueSummary{Range: r}
	for _, e := range entries {
		switch e.Kind {
		case wallet.KindPurchase:
			out.CoinsPurchased += e.CoinDelta
			out.PurchaseRevenue += e.AmountMinor
		case wallet.KindAudioCall, wallet.KindVideoCall:
			out.CoinsSpentOnCalls += -e.CoinDelta
		case wallet.KindRefund:
			out.CoinsRefunded += e.CoinDelta
		case wallet.KindBonus:
			out.CoinsBonus += e.CoinDelta
		case wallet.KindAdmin:
			out.AdminAdjustmentsNet += e.CoinDelta
		case wallet.KindDebit, wallet.KindTransfer:
			// user-to-user and generic debits do not change platform revenue
		}
	}

	earned, err := s.repo.ListEarnings(ctx, r.From, r.To)
	if err != nil {
		return RevenueSummary{}, err
	}
	for _, e := range earned {
		out.CallRevenueMinor += e.TotalRevenueMinor
		out.HostEarningsMinor += e.HostEarningMinor
	}

	bonuses, err := s.repo.ListBonuses(ctx, r.From, r.To)
	if err != nil {
		return RevenueSummary{}, err
	}
	for _, b := range bonuses {
		out.HostBonusesMinor += b.AmountMinor
	}

	out.PlatformShareMinor = out.CallRevenueMinor - out.HostEarningsMinor - out.HostBonusesMinor
	return out, nil
}
