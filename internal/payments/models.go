package payments

import "time"

// CoinPackage is a purchasable bundle of coins.
type CoinPackage struct {
	ID         string `json:"id"`
	Coins      int64  `json:"coins"`
	PriceMinor int64  `json:"price_minor"`
}

// DefaultPackages is the catalog used when none is configured.
func DefaultPackages() []CoinPackage {
	return []CoinPackage{
		{ID: "coins_100", Coins: 100, PriceMinor: 1000},
		{ID: "coins_500", Coins: 500, PriceMinor: 4500},
		{ID: "coins_1200", Coins: 1200, PriceMinor: 9900},
	}
}

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// Order is a coin purchase awaiting or holding a gateway payment.
type Order struct {
	ID                string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID            string      `gorm:"type:varchar(64);not null;index" json:"user_id"`
	PackageID         string      `gorm:"type:varchar(32);not null" json:"package_id"`
	ProviderOrderID   string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"provider_order_id"`
	ProviderPaymentID *string     `gorm:"type:varchar(64);uniqueIndex" json:"provider_payment_id,omitempty"`
	Coins             int64       `gorm:"not null" json:"coins"`
	AmountMinor       int64       `gorm:"not null" json:"amount_minor"`
	Currency          string      `gorm:"type:varchar(8);not null" json:"currency"`
	Status            OrderStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	PaidAt            *time.Time  `json:"paid_at,omitempty"`
}

func (Order) TableName() string { return "payment_orders" }

// Confirmation is the result of a verified payment.
type Confirmation struct {
	Order      Order `json:"order"`
	NewBalance int64 `json:"new_balance"`
	// Replayed is set when the payment had already been applied.
	Replayed bool `json:"replayed"`
}
