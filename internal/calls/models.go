package calls

import (
	"time"

	"chatcall-platform/internal/pricing"
)

// Call is one caller-to-receiver voice or video session.
//
// Money invariant reminder: coins are never stored here as a balance. CoinsCharged
// mirrors the wallet ledger entry keyed "call:<id>" and is written at most once.
type Call struct {
	ID         string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CallerID   string           `gorm:"type:varchar(64);not null;index" json:"caller_id"`
	ReceiverID string           `gorm:"type:varchar(64);not null;index" json:"receiver_id"`
	CallType   pricing.CallType `gorm:"type:varchar(16);not null" json:"call_type"`
	Status     Status           `gorm:"type:varchar(16);not null;index" json:"status"`
	RoomName   string           `gorm:"type:varchar(100);not null" json:"room_name"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`

	// CoinsCharged stays nil until billing succeeds.
	CoinsCharged *int64 `json:"coins_charged,omitempty"`
	BillingError string `gorm:"type:varchar(255);not null;default:''" json:"billing_error,omitempty"`

	CallerRating *int `json:"caller_rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Call) TableName() string { return "calls" }

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusAnswered  Status = "answered"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusMissed    Status = "missed"
	StatusDeclined  Status = "declined"
	StatusFailed    Status = "failed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusInitiated, StatusRinging, StatusAnswered, StatusCompleted,
		StatusRejected, StatusMissed, StatusDeclined, StatusFailed:
		return st, true
	default:
		return "", false
	}
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusMissed, StatusDeclined, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is an edge of the call state machine.
func CanTransition(from, to Status) bool {
	if _, ok := ParseStatus(string(to)); !ok {
		return false
	}
	switch from {
	case StatusInitiated:
		return to != StatusInitiated
	case StatusRinging:
		return to == StatusAnswered || to.Terminal()
	case StatusAnswered:
		return to.Terminal()
	default:
		return false
	}
}

// RoomName is the RTC room both participants join.
func RoomName(callID string) string {
	return "call_" + callID
}
