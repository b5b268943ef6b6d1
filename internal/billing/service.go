package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatcall-platform/internal/events"
	"chatcall-platform/internal/metrics"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/utils"

	"gorm.io/gorm"
)

var (
	ErrInvalidArgument = errors.New("invalid billing request")
	// ErrAlreadyBilled means the call already carries a charge; nothing was debited.
	ErrAlreadyBilled = errors.New("call already billed")
)

// PremiumChecker is the slice of the account store billing needs.
type PremiumChecker interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// Ledger is the wallet surface used to debit callers.
type Ledger interface {
	DebitTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, kind wallet.Kind, description string, opts wallet.Options) (wallet.Result, error)
	Observe(r wallet.Result)
}

// ChargeRecorder stamps coins_charged on the call row. It must refuse (return
// ErrAlreadyBilled) when a charge is already recorded.
type ChargeRecorder interface {
	RecordCharge(ctx context.Context, tx *gorm.DB, callID string, coins int64) error
}

type Charge struct {
	CallID       string        `json:"call_id"`
	CoinsCharged int64         `json:"coins_charged"`
	OriginalCost int64         `json:"original_cost"`
	Discount     int64         `json:"discount"`
	NewBalance   int64         `json:"new_balance"`
	Quote        pricing.Quote `json:"quote"`
}

// Service charges callers for completed calls.
type Service struct {
	db       *gorm.DB
	pricing  *pricing.Service
	accounts PremiumChecker
	ledger   Ledger
	calls    ChargeRecorder
	log      *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

func NewService(db *gorm.DB, p *pricing.Service, accounts PremiumChecker, ledger Ledger, calls ChargeRecorder, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:       db,
		pricing:  p,
		accounts: accounts,
		ledger:   ledger,
		calls:    calls,
		log:      log,
		metrics:  m,
		clock:    time.Now,
	}
}

// ChargeForCall prices the call, debits the caller and records the charge on
// the call in one transaction. wallet.ErrInsufficientFunds means nothing was charged.
func (s *Service) ChargeForCall(ctx context.Context, userID string, callType pricing.CallType, durationSeconds int64, callID string) (Charge, error) {
	if userID == "" || callID == "" || durationSeconds <= 0 {
		return Charge{}, ErrInvalidArgument
	}
	kind, err := ledgerKind(callType)
	if err != nil {
		return Charge{}, err
	}

	premium, err := s.accounts.IsPremium(ctx, userID)
	if err != nil {
		return Charge{}, fmt.Errorf("premium lookup: %w", err)
	}
	q, err := s.pricing.Quote(callType, durationSeconds, premium)
	if err != nil {
		return Charge{}, err
	}

	out := Charge{
		CallID:       callID,
		CoinsCharged: q.FinalCost,
		OriginalCost: q.OriginalCost,
		Discount:     q.Discount,
		Quote:        q,
	}

	var posted wallet.Result
	err = utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		if err := s.calls.RecordCharge(ctx, tx, callID, q.FinalCost); err != nil {
			return err
		}

		if q.FinalCost > 0 {
			r, err := s.ledger.DebitTx(ctx, tx, userID, q.FinalCost, kind, describe(q), wallet.Options{
				Reference:      callID,
				IdempotencyKey: "call:" + callID,
				Metadata: map[string]any{
					"duration_seconds": durationSeconds,
					"billable_minutes": q.BillableMinutes,
					"original_cost":    q.OriginalCost,
					"discount":         q.Discount,
				},
			})
			if err != nil {
				return err
			}
			posted = r
			out.NewBalance = r.Balance
		}

		return events.Enqueue(ctx, tx, events.TopicCallBilled, callID, events.CallBilled{
			CallID:       callID,
			UserID:       userID,
			CallType:     string(callType),
			Duration:     durationSeconds,
			CoinsCharged: q.FinalCost,
			OriginalCost: q.OriginalCost,
			Discount:     q.Discount,
			NewBalance:   out.NewBalance,
			BilledAt:     s.clock().UTC(),
		})
	})
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			outcome = metrics.OutcomeInsufficientFunds
		} else if errors.Is(err, ErrAlreadyBilled) {
			outcome = metrics.OutcomeSkipped
		}
		s.metrics.ObserveBillingCharge(string(callType), outcome, 0)
		return Charge{}, err
	}

	s.ledger.Observe(posted)
	s.metrics.ObserveBillingCharge(string(callType), metrics.OutcomeCharged, q.FinalCost)
	s.log.InfoContext(ctx, "call billed",
		"call_id", callID,
		"user_id", userID,
		"call_type", callType,
		"duration_seconds", durationSeconds,
		"coins", q.FinalCost,
		"premium", premium,
	)
	return out, nil
}

func ledgerKind(ct pricing.CallType) (wallet.Kind, error) {
	switch ct {
	case pricing.CallTypeAudio:
		return wallet.KindAudioCall, nil
	case pricing.CallTypeVideo:
		return wallet.KindVideoCall, nil
	default:
		return "", fmt.Errorf("%w: call type %q", ErrInvalidArgument, ct)
	}
}

func describe(q pricing.Quote) string {
	d := fmt.Sprintf("%s call, %d min", q.CallType, q.BillableMinutes)
	if q.Discount > 0 {
		d += fmt.Sprintf(" (premium, %d off)", q.Discount)
	}
	return d
}
