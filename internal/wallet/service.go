package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatcall-platform/internal/metrics"
	"chatcall-platform/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the coin wallet ledger.
//
// Money invariants:
// - No balance update without a ledger entry, in the same transaction
// - Ledger is append-only (immutable)
// - coin_balance never goes negative; debits are conditional updates
type Service struct {
	db      *gorm.DB
	log     *slog.Logger
	metrics *metrics.Metrics
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *gorm.DB, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, log: log, metrics: m, clock: time.Now}
}

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBadRequest        = errors.New("bad request")
	// ErrIdempotencyConflict means the key was already used for a different posting.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	return readBalance(ctx, s.db, userID)
}

// Credit adds amount coins to userID.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, kind Kind, description string, opts Options) (Result, error) {
	var out Result
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		r, err := s.CreditTx(ctx, tx, userID, amount, kind, description, opts)
		out = r
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.Observe(out)
	return out, nil
}

// Debit removes amount coins from userID, failing with ErrInsufficientFunds
// when the balance does not cover it.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, kind Kind, description string, opts Options) (Result, error) {
	var out Result
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		r, err := s.DebitTx(ctx, tx, userID, amount, kind, description, opts)
		out = r
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.Observe(out)
	return out, nil
}

// CreditTx posts a credit on the caller's transaction.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, kind Kind, description string, opts Options) (Result, error) {
	return s.post(ctx, tx, userID, amount, DirectionCredit, kind, description, opts)
}

// DebitTx posts a debit on the caller's transaction. On error the caller must
// roll back.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, kind Kind, description string, opts Options) (Result, error) {
	return s.post(ctx, tx, userID, amount, DirectionDebit, kind, description, opts)
}

// Transfer moves amount coins between two users as one unit of work.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, description string) (TransferResult, error) {
	if fromUserID == "" || toUserID == "" || amount <= 0 {
		return TransferResult{}, ErrInvalidArgument
	}
	if fromUserID == toUserID {
		return TransferResult{}, fmt.Errorf("%w: cannot transfer to self", ErrBadRequest)
	}
	if strings.TrimSpace(description) == "" {
		description = "coin transfer"
	}

	var out TransferResult
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		debit := func() error {
			r, err := s.post(ctx, tx, fromUserID, amount, DirectionDebit, KindTransfer, description, Options{Reference: toUserID})
			out.From = r
			return err
		}
		credit := func() error {
			r, err := s.post(ctx, tx, toUserID, amount, DirectionCredit, KindTransfer, description, Options{Reference: fromUserID})
			out.To = r
			return err
		}
		// Touch rows in id order so opposite transfers cannot deadlock.
		steps := []func() error{debit, credit}
		if toUserID < fromUserID {
			steps = []func() error{credit, debit}
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.Observe(out.From)
	s.Observe(out.To)
	return out, nil
}

// ListEntries returns a user's ledger, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if userID == "" || offset < 0 {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var out []Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}

// Reconcile compares the stored balance with the ledger sum.
func (s *Service) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	if userID == "" {
		return Reconciliation{}, ErrInvalidArgument
	}
	var out Reconciliation
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		bal, err := readBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		sum, n, err := sumLedger(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = Reconciliation{UserID: userID, Balance: bal, LedgerSum: sum, EntryCount: n, Consistent: bal == sum}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	if !out.Consistent {
		s.log.Error("wallet ledger drift", "user_id", userID, "balance", out.Balance, "ledger_sum", out.LedgerSum)
	}
	return out, nil
}

func (s *Service) post(ctx context.Context, tx *gorm.DB, userID string, amount int64, dir Direction, kind Kind, description string, opts Options) (Result, error) {
	if userID == "" || amount <= 0 || tx == nil {
		return Result{}, ErrInvalidArgument
	}
	if !kind.Allows(dir) {
		return Result{}, fmt.Errorf("%w: kind %q cannot %s", ErrInvalidArgument, kind, dir)
	}
	if opts.AmountMinor < 0 {
		return Result{}, ErrInvalidArgument
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = string(kind)
	}

	delta := amount
	if dir == DirectionDebit {
		delta = -amount
	}

	var key *string
	if k := strings.TrimSpace(opts.IdempotencyKey); k != "" {
		key = &k
		existing, ok, err := findEntryByIdempotency(ctx, tx, k)
		if err != nil {
			return Result{}, err
		}
		if ok {
			if existing.UserID != userID || existing.Kind != kind || existing.CoinDelta != delta {
				return Result{}, ErrIdempotencyConflict
			}
			bal, err := readBalance(ctx, tx, userID)
			if err != nil {
				return Result{}, err
			}
			return Result{Entry: existing, Balance: bal, Replayed: true}, nil
		}
	}

	var meta string
	if len(opts.Metadata) > 0 {
		b, err := json.Marshal(opts.Metadata)
		if err != nil {
			return Result{}, fmt.Errorf("%w: metadata: %v", ErrInvalidArgument, err)
		}
		meta = string(b)
	}

	if err := applyDelta(ctx, tx, userID, delta); err != nil {
		return Result{}, err
	}

	entry := Entry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		CoinDelta:      delta,
		AmountMinor:    opts.AmountMinor,
		Description:    description,
		Metadata:       meta,
		Reference:      opts.Reference,
		IdempotencyKey: key,
		CreatedAt:      s.clock().UTC(),
	}
	inserted, err := insertEntry(ctx, tx, &entry)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		// A concurrent posting committed the same key first.
		return Result{}, ErrIdempotencyConflict
	}

	bal, err := readBalance(ctx, tx, userID)
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: entry, Balance: bal}, nil
}

// Observe records a committed posting. Callers composing CreditTx/DebitTx
// call it after their transaction commits.
func (s *Service) Observe(r Result) {
	if r.Replayed || r.Entry.ID == "" {
		return
	}
	s.metrics.IncWalletPosting(string(r.Entry.Kind), r.Entry.CoinDelta > 0)
}
