package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block money flows on audit failures.
type Event struct {
	ID   string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type EventType `gorm:"type:varchar(40);not null;index" json:"type"`

	// ActorUserID is the authenticated staff member causing the event.
	ActorUserID string `gorm:"type:varchar(64)" json:"actor_user_id,omitempty"`
	// ActorRole may include hidden roles.
	ActorRole string `gorm:"type:varchar(32)" json:"actor_role,omitempty"`

	// IPAddress is the resolved client IP when available.
	IPAddress string `gorm:"type:varchar(64)" json:"ip_address,omitempty"`

	TargetUserID string `gorm:"type:varchar(64);index" json:"target_user_id,omitempty"`
	CallID       string `gorm:"type:varchar(64)" json:"call_id,omitempty"`

	Message  string `gorm:"type:varchar(255)" json:"message,omitempty"`
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Event) TableName() string { return "audit_events" }

type EventType string

const (
	EventTypeWalletAdjustment EventType = "admin_wallet_adjustment"
	EventTypeHostVerified     EventType = "host_verified"
	EventTypeWithdrawalReview EventType = "withdrawal_reviewed"
	EventTypeWalletReconcile  EventType = "wallet_reconciled"
	EventTypeCallSettled      EventType = "call_settled"
)
