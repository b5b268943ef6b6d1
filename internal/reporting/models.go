package reporting

import (
	"time"

	"chatcall-platform/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

type CallsSummary struct {
	Range TimeRange `json:"range"`

	TotalCalls int                  `json:"total_calls"`
	ByStatus   map[calls.Status]int `json:"by_status"`
	AudioCalls int                  `json:"audio_calls"`
	VideoCalls int                  `json:"video_calls"`

	TotalDurationSeconds   int64 `json:"total_duration_seconds"`
	AverageDurationSeconds int64 `json:"average_duration_seconds"`

	BilledCalls       int   `json:"billed_calls"`
	BillingFailures   int   `json:"billing_failures"`
	TotalCoinsCharged int64 `json:"total_coins_charged"`
	RatedCalls        int   `json:"rated_calls"`
}

// RevenueSummary splits coin and money flows over a range.
// Coin figures come from the wallet ledger; minor-unit figures are paise.
type RevenueSummary struct {
	Range TimeRange `json:"range"`

	CoinsPurchased      int64 `json:"coins_purchased"`
	PurchaseRevenue     int64 `json:"purchase_revenue_minor"`
	CoinsSpentOnCalls   int64 `json:"coins_spent_on_calls"`
	CoinsRefunded       int64 `json:"coins_refunded"`
	CoinsBonus          int64 `json:"coins_bonus"`
	AdminAdjustmentsNet int64 `json:"admin_adjustments_net"`

	CallRevenueMinor   int64 `json:"call_revenue_minor"`
	HostEarningsMinor  int64 `json:"host_earnings_minor"`
	HostBonusesMinor   int64 `json:"host_bonuses_minor"`
	PlatformShareMinor int64 `json:"platform_share_minor"`
}
