package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatcall-platform/internal/events"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUnknownPackage   = errors.New("unknown coin package")
	ErrNotFound         = errors.New("payment order not found")
	ErrInvalidArgument  = errors.New("invalid payment request")
	ErrInvalidSignature = errors.New("payment signature mismatch")
	// ErrConflict means the order was settled by a different payment.
	ErrConflict = errors.New("payment order already settled")
)

// Ledger is the wallet surface used to credit purchased coins.
type Ledger interface {
	CreditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, kind wallet.Kind, description string, opts wallet.Options) (wallet.Result, error)
	Observe(r wallet.Result)
}

// Service sells coin packages. The gateway order call itself happens client-side;
// this service owns the order row and the verified credit.
type Service struct {
	db       *gorm.DB
	ledger   Ledger
	secret   string
	packages map[string]CoinPackage
	catalog  []CoinPackage
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(db *gorm.DB, ledger Ledger, keySecret string, packages []CoinPackage, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if len(packages) == 0 {
		packages = DefaultPackages()
	}
	byID := make(map[string]CoinPackage, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &Service{
		db:       db,
		ledger:   ledger,
		secret:   keySecret,
		packages: byID,
		catalog:  packages,
		log:      log,
		clock:    time.Now,
	}
}

func (s *Service) Packages() []CoinPackage {
	out := make([]CoinPackage, len(s.catalog))
	copy(out, s.catalog)
	return out
}

func (s *Service) CreateOrder(ctx context.Context, userID, packageID string) (Order, error) {
	if userID == "" {
		return Order{}, ErrInvalidArgument
	}
	pkg, ok := s.packages[packageID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownPackage, packageID)
	}

	now := s.clock().UTC()
	id := uuid.NewString()
	o := Order{
		ID:              id,
		UserID:          userID,
		PackageID:       pkg.ID,
		ProviderOrderID: "order_" + strings.ReplaceAll(id, "-", "")[:14],
		Coins:           pkg.Coins,
		AmountMinor:     pkg.PriceMinor,
		Currency:        "INR",
		Status:          OrderStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&o).Error; err != nil {
		return Order{}, err
	}
	s.log.InfoContext(ctx, "payment order created", "order_id", o.ID, "user_id", userID, "package_id", pkg.ID)
	return o, nil
}

// ConfirmPayment verifies the gateway signature, marks the order paid and
// credits the coins in one transaction. Confirming the same payment twice is
// a replay and credits nothing. userID, when set, must own the order.
func (s *Service) ConfirmPayment(ctx context.Context, userID, providerOrderID, paymentID, signature string) (Confirmation, error) {
	if providerOrderID == "" || paymentID == "" {
		return Confirmation{}, ErrInvalidArgument
	}
	if !VerifySignature(providerOrderID, paymentID, signature, s.secret) {
		return Confirmation{}, ErrInvalidSignature
	}

	var out Confirmation
	var posted wallet.Result
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		o, err := findByProviderOrder(ctx, tx, providerOrderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return ErrNotFound
		}

		if o.Status == OrderStatusPaid {
			if o.ProviderPaymentID == nil || *o.ProviderPaymentID != paymentID {
				return ErrConflict
			}
			bal, err := balanceOf(ctx, tx, o.UserID)
			if err != nil {
				return err
			}
			out = Confirmation{Order: o, NewBalance: bal, Replayed: true}
			return nil
		}
		if o.Status != OrderStatusCreated {
			return ErrConflict
		}

		now := s.clock().UTC()
		res := tx.WithContext(ctx).Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, OrderStatusCreated).
			Updates(map[string]any{
				"status":              OrderStatusPaid,
				"provider_payment_id": paymentID,
				"paid_at":             now,
				"updated_at":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		r, err := s.ledger.CreditTx(ctx, tx, o.UserID, o.Coins, wallet.KindPurchase, fmt.Sprintf("coin package %s", o.PackageID), wallet.Options{
			AmountMinor:    o.AmountMinor,
			Reference:      o.ID,
			IdempotencyKey: "payment:" + paymentID,
			Metadata:       map[string]any{"provider_order_id": providerOrderID, "payment_id": paymentID},
		})
		if err != nil {
			return err
		}
		posted = r

		o.Status = OrderStatusPaid
		o.ProviderPaymentID = &paymentID
		o.PaidAt = &now
		o.UpdatedAt = now
		out = Confirmation{Order: o, NewBalance: r.Balance}

		return events.Enqueue(ctx, tx, events.TopicCoinsPurchased, o.ID, events.CoinsPurchased{
			OrderID:     o.ID,
			PaymentID:   paymentID,
			UserID:      o.UserID,
			Coins:       o.Coins,
			AmountMinor: o.AmountMinor,
			NewBalance:  r.Balance,
			PaidAt:      now,
		})
	})
	if err != nil {
		return Confirmation{}, err
	}

	if !out.Replayed {
		s.ledger.Observe(posted)
		s.log.InfoContext(ctx, "coins purchased",
			"order_id", out.Order.ID,
			"user_id", out.Order.UserID,
			"coins", out.Order.Coins,
			"amount_minor", out.Order.AmountMinor,
		)
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", orderID, userID).Take(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func findByProviderOrder(ctx context.Context, tx *gorm.DB, providerOrderID string) (Order, error) {
	var o Order
	err := tx.WithContext(ctx).Where("provider_order_id = ?", providerOrderID).Take(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func balanceOf(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var bal int64
	err := tx.WithContext(ctx).Table("accounts").Select("coin_balance").Where("id = ?", userID).Scan(&bal).Error
	return bal, err
}
