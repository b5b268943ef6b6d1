package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Reader is the read side consumed by billing, earnings and call lifecycle.
type Reader interface {
	Get(ctx context.Context, userID string) (Account, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	IsHost(ctx context.Context, userID string) (bool, error)
	IsPremium(ctx context.Context, userID string) (bool, error)
	GetHostRating(ctx context.Context, userID string) (float64, error)
	GetHostCallCount(ctx context.Context, userID string) (int64, error)
}

// Store is the GORM-backed account store.
type Store struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

// WithTx returns a store bound to tx so reads observe uncommitted writes of the caller.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, clock: s.clock}
}

type CreateRequest struct {
	ID          string
	DisplayName string
	CoinBalance int64
}

// Create inserts a new account. A non-zero opening coin balance is rejected;
// coins only enter through wallet postings.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Account, error) {
	if req.CoinBalance != 0 {
		return Account{}, fmt.Errorf("%w: opening balance must be zero", ErrInvalidArgument)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	a := Account{ID: id, DisplayName: strings.TrimSpace(req.DisplayName)}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Store) Get(ctx context.Context, userID string) (Account, error) {
	if userID == "" {
		return Account{}, ErrInvalidArgument
	}
	var a Account
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (int64, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return a.CoinBalance, nil
}

func (s *Store) IsHost(ctx context.Context, userID string) (bool, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return a.VerifiedHost(), nil
}

func (s *Store) IsPremium(ctx context.Context, userID string) (bool, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return a.PremiumActive(s.clock().UTC()), nil
}

func (s *Store) GetHostRating(ctx context.Context, userID string) (float64, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return a.HostRating(), nil
}

func (s *Store) GetHostCallCount(ctx context.Context, userID string) (int64, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return a.TotalCallsAsHost, nil
}

// SetPremium turns premium on until the given time (nil = open ended) or off when active is false.
func (s *Store) SetPremium(ctx context.Context, userID string, active bool, until *time.Time) error {
	updates := map[string]any{"is_premium": active, "premium_expires_at": until}
	if !active {
		updates["premium_expires_at"] = nil
	}
	return s.update(ctx, userID, updates)
}

// VerifyHost marks the account as a verified host.
func (s *Store) VerifyHost(ctx context.Context, userID string) (Account, error) {
	now := s.clock().UTC()
	if err := s.update(ctx, userID, map[string]any{"is_host": true, "host_verified_at": now}); err != nil {
		return Account{}, err
	}
	return s.Get(ctx, userID)
}

// AddRating folds one star rating into the host aggregate with an atomic increment.
func (s *Store) AddRating(ctx context.Context, hostID string, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: stars must be 1..5", ErrInvalidArgument)
	}
	return s.update(ctx, hostID, map[string]any{
		"host_rating_sum":   gorm.Expr("host_rating_sum + ?", stars),
		"host_rating_count": gorm.Expr("host_rating_count + 1"),
	})
}

func (s *Store) update(ctx context.Context, userID string, updates map[string]any) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	res := s.db.WithContext(ctx).Model(&Account{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
