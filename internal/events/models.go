package events

import "time"

// Topics published through the outbox.
const (
	TopicCallBilled          = "call.billed"
	TopicHostEarningRecorded = "host.earning.recorded"
	TopicHostBonusCredited   = "host.bonus.credited"
	TopicCoinsPurchased      = "wallet.coins.purchased"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is an outbox row written in the same transaction as the state change it announces.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     Status    `gorm:"type:varchar(16);not null;index" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	LastError  string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Message) TableName() string { return "outbox_messages" }

type CallBilled struct {
	CallID       string    `json:"call_id"`
	UserID       string    `json:"user_id"`
	CallType     string    `json:"call_type"`
	Duration     int64     `json:"duration_seconds"`
	CoinsCharged int64     `json:"coins_charged"`
	OriginalCost int64     `json:"original_cost"`
	Discount     int64     `json:"discount"`
	NewBalance   int64     `json:"new_balance"`
	BilledAt     time.Time `json:"billed_at"`
}

type HostEarningRecorded struct {
	EarningID        string    `json:"earning_id"`
	CallID           string    `json:"call_id"`
	HostID           string    `json:"host_id"`
	CallType         string    `json:"call_type"`
	TotalRevenue     int64     `json:"total_revenue_minor"`
	HostSharePercent int64     `json:"host_share_percent"`
	HostEarning      int64     `json:"host_earning_minor"`
	ProcessedAt      time.Time `json:"processed_at"`
}

type HostBonusCredited struct {
	BonusID     string    `json:"bonus_id"`
	HostID      string    `json:"host_id"`
	BonusType   string    `json:"bonus_type"`
	AmountMinor int64     `json:"amount_minor"`
	CreditedAt  time.Time `json:"credited_at"`
}

type CoinsPurchased struct {
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	UserID      string    `json:"user_id"`
	Coins       int64     `json:"coins"`
	AmountMinor int64     `json:"amount_minor"`
	NewBalance  int64     `json:"new_balance"`
	PaidAt      time.Time `json:"paid_at"`
}
