package pricing

// CallType is the closed set of billable call media.
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func ParseCallType(s string) (CallType, bool) {
	switch ct := CallType(s); ct {
	case CallTypeAudio, CallTypeVideo:
		return ct, true
	default:
		return "", false
	}
}

// RateCard holds per-minute coin rates. Amounts are whole coins.
type RateCard struct {
	AudioPerMinute int64
	VideoPerMinute int64

	// PremiumDiscountPercent is taken off the base cost for premium callers.
	PremiumDiscountPercent int64
}

// Quote is the priced breakdown of one call.
type Quote struct {
	CallType        CallType `json:"call_type"`
	DurationSeconds int64    `json:"duration_seconds"`
	BillableMinutes int64    `json:"billable_minutes"`
	RatePerMinute   int64    `json:"rate_per_minute"`
	Premium         bool     `json:"premium"`

	OriginalCost int64 `json:"original_cost"`
	Discount     int64 `json:"discount"`
	FinalCost    int64 `json:"final_cost"`
}
