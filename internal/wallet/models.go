package wallet

import "time"

// Kind classifies a ledger entry. The set is closed; every switch over Kind
// must handle each value.
type Kind string

const (
	KindPurchase  Kind = "purchase"
	KindDebit     Kind = "debit"
	KindAudioCall Kind = "audio_call"
	KindVideoCall Kind = "video_call"
	KindBonus     Kind = "bonus"
	KindRefund    Kind = "refund"
	KindAdmin     Kind = "admin"
	KindTransfer  Kind = "transfer"
)

// Direction of a posting relative to the user's balance.
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	default:
		return "unknown"
	}
}

// Allows reports whether entries of kind k may move the balance in direction d.
func (k Kind) Allows(d Direction) bool {
	switch k {
	case KindPurchase, KindBonus, KindRefund:
		return d == DirectionCredit
	case KindDebit, KindAudioCall, KindVideoCall:
		return d == DirectionDebit
	case KindAdmin, KindTransfer:
		return d == DirectionCredit || d == DirectionDebit
	default:
		return false
	}
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	switch k {
	case KindPurchase, KindDebit, KindAudioCall, KindVideoCall, KindBonus, KindRefund, KindAdmin, KindTransfer:
		return k, true
	default:
		return "", false
	}
}

// Entry is an immutable wallet ledger row.
// Invariant: sum(CoinDelta) over a user's entries equals accounts.coin_balance.
type Entry struct {
	ID     string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID string `gorm:"type:varchar(64);not null;index:idx_wallet_ledger_user_created,priority:1" json:"user_id"`
	Kind   Kind   `gorm:"type:varchar(20);not null" json:"kind"`

	// CoinDelta is signed: credits positive, debits negative.
	CoinDelta int64 `gorm:"not null" json:"coin_delta"`

	// AmountMinor is the money paid for the coins (purchases), 0 otherwise.
	AmountMinor int64 `gorm:"not null;default:0" json:"amount_minor"`

	Description string `gorm:"type:varchar(255);not null" json:"description"`
	Metadata    string `gorm:"type:text" json:"metadata,omitempty"`

	// Reference links the entry to a call, payment order or peer user.
	Reference string `gorm:"type:varchar(64);index" json:"reference,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_wallet_ledger_user_created,priority:2" json:"created_at"`
}

func (Entry) TableName() string { return "wallet_ledger" }

// Options carry the optional attributes of a posting.
type Options struct {
	AmountMinor    int64
	Reference      string
	IdempotencyKey string
	Metadata       map[string]any
}

// Result is the outcome of one posting.
type Result struct {
	Entry   Entry `json:"entry"`
	Balance int64 `json:"balance"`
	// Replayed is set when the idempotency key matched an earlier posting.
	Replayed bool `json:"replayed"`
}

type TransferResult struct {
	From Result `json:"from"`
	To   Result `json:"to"`
}

type Reconciliation struct {
	UserID     string `json:"user_id"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledger_sum"`
	EntryCount int64  `json:"entry_count"`
	Consistent bool   `json:"consistent"`
}
