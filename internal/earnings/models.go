package earnings

import (
	"time"

	"chatcall-platform/internal/pricing"
)

type EarningStatus string

const EarningStatusCompleted EarningStatus = "completed"

// Earning is a host's revenue share for one billed call. CallID is unique.
type Earning struct {
	ID                  string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	HostID              string           `gorm:"type:varchar(64);not null;index" json:"host_id"`
	CallID              string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"call_id"`
	CallType            pricing.CallType `gorm:"type:varchar(10);not null" json:"call_type"`
	CallDurationSeconds int64            `gorm:"not null" json:"call_duration_seconds"`
	CoinsCharged        int64            `gorm:"not null" json:"coins_charged"`
	TotalRevenueMinor   int64            `gorm:"not null" json:"total_revenue_minor"`
	HostSharePercent    int64            `gorm:"not null" json:"host_share_percent"`
	HostEarningMinor    int64            `gorm:"not null" json:"host_earning_minor"`
	Status              EarningStatus    `gorm:"type:varchar(16);not null" json:"status"`
	ProcessedAt         time.Time        `gorm:"not null;index" json:"processed_at"`
}

func (Earning) TableName() string { return "host_earnings" }

type BonusType string

const (
	BonusHighRating BonusType = "high_rating"
	BonusMilestone  BonusType = "milestone"
)

// Bonus is a currency credit to the host balance. It never touches coins.
type Bonus struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	HostID      string    `gorm:"type:varchar(64);not null;index:idx_host_bonuses_host_type_at,priority:1" json:"host_id"`
	BonusType   BonusType `gorm:"type:varchar(20);not null;index:idx_host_bonuses_host_type_at,priority:2" json:"bonus_type"`
	AmountMinor int64     `gorm:"not null" json:"amount_minor"`
	Description string    `gorm:"type:varchar(255);not null" json:"description"`
	// DedupeKey is "<host>:milestone:<n>" for milestone bonuses, nil otherwise.
	DedupeKey  *string   `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	CreditedAt time.Time `gorm:"not null;index:idx_host_bonuses_host_type_at,priority:3" json:"credited_at"`
}

func (Bonus) TableName() string { return "host_bonuses" }

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID          string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	HostID      string           `gorm:"type:varchar(64);not null;index" json:"host_id"`
	AmountMinor int64            `gorm:"not null" json:"amount_minor"`
	Status      WithdrawalStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	PayoutRef   string           `gorm:"type:varchar(128)" json:"payout_ref,omitempty"`
	ReviewedBy  string           `gorm:"type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewNote  string           `gorm:"type:varchar(255)" json:"review_note,omitempty"`
	RequestedAt time.Time        `gorm:"not null" json:"requested_at"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
}

func (Withdrawal) TableName() string { return "host_withdrawals" }

// Summary is the host dashboard view.
type Summary struct {
	HostID                 string  `json:"host_id"`
	TotalEarningsMinor     int64   `json:"total_earnings_minor"`
	AvailableBalanceMinor  int64   `json:"available_balance_minor"`
	TotalWithdrawnMinor    int64   `json:"total_withdrawn_minor"`
	PendingWithdrawalMinor int64   `json:"pending_withdrawal_minor"`
	BonusTotalMinor        int64   `json:"bonus_total_minor"`
	TotalCalls             int64   `json:"total_calls"`
	TotalMinutes           int64   `json:"total_minutes"`
	Rating                 float64 `json:"rating"`
}
