package accounts

import "time"

// Account is the user row shared by the wallet and host ledgers.
// CoinBalance is only changed by wallet postings; the host balance fields
// are only changed by the earnings ledger.
type Account struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DisplayName string `gorm:"type:varchar(120);not null" json:"display_name"`

	CoinBalance int64 `gorm:"not null;default:0" json:"coin_balance"`

	IsPremium        bool       `gorm:"not null;default:false" json:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`

	IsHost         bool       `gorm:"not null;default:false" json:"is_host"`
	HostVerifiedAt *time.Time `json:"host_verified_at,omitempty"`

	HostRatingSum      int64 `gorm:"not null;default:0" json:"-"`
	HostRatingCount    int64 `gorm:"not null;default:0" json:"host_rating_count"`
	TotalCallsAsHost   int64 `gorm:"not null;default:0" json:"total_calls_as_host"`
	TotalMinutesAsHost int64 `gorm:"not null;default:0" json:"total_minutes_as_host"`

	// Host balance, minor currency units.
	TotalEarningsMinor    int64 `gorm:"not null;default:0" json:"total_earnings_minor"`
	AvailableBalanceMinor int64 `gorm:"not null;default:0" json:"available_balance_minor"`
	TotalWithdrawnMinor   int64 `gorm:"not null;default:0" json:"total_withdrawn_minor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// PremiumActive reports whether the premium subscription covers now.
func (a Account) PremiumActive(now time.Time) bool {
	if !a.IsPremium {
		return false
	}
	return a.PremiumExpiresAt == nil || a.PremiumExpiresAt.After(now)
}

// VerifiedHost is true only for hosts that passed verification.
func (a Account) VerifiedHost() bool {
	return a.IsHost && a.HostVerifiedAt != nil
}

// HostRating is the mean of received star ratings, 0 when unrated.
func (a Account) HostRating() float64 {
	if a.HostRatingCount == 0 {
		return 0
	}
	return float64(a.HostRatingSum) / float64(a.HostRatingCount)
}
