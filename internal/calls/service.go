package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/billing"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/metrics"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidArgument   = errors.New("invalid call request")
	ErrInvalidTransition = errors.New("invalid call status transition")
	ErrStaleStatus       = errors.New("call status changed concurrently")
	ErrForbidden         = errors.New("not a participant of this call")
	ErrBusy              = errors.New("participant is in another call")
	ErrInvalidState      = errors.New("call is not in a rateable state")
	ErrAlreadyRated      = errors.New("call already rated")
)

// Charger bills a completed call.
type Charger interface {
	ChargeForCall(ctx context.Context, userID string, callType pricing.CallType, durationSeconds int64, callID string) (billing.Charge, error)
}

// EarningsRecorder credits the receiving host.
type EarningsRecorder interface {
	RecordEarning(ctx context.Context, callID, hostID string, callType pricing.CallType, durationSeconds, coinsCharged int64) (*earnings.Earning, error)
}

// TokenIssuer mints RTC room join tokens.
type TokenIssuer interface {
	JoinToken(room, identity, name string) (string, error)
}

type Deps struct {
	DB       *gorm.DB
	Repo     *Repository
	Accounts *accounts.Store
	Pricing  *pricing.Service
	Billing  Charger
	Earnings EarningsRecorder
	Busy     BusyGuard
	Tokens   TokenIssuer
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service owns the call lifecycle: initiation, status transitions and the
// billing plus earnings hook on the completed edge.
type Service struct {
	db       *gorm.DB
	repo     *Repository
	accounts *accounts.Store
	pricing  *pricing.Service
	billing  Charger
	earnings EarningsRecorder
	busy     BusyGuard
	tokens   TokenIssuer
	log      *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Repo == nil {
		d.Repo = NewRepository(d.DB)
	}
	if d.Busy == nil {
		d.Busy = NewMemoryBusyGuard()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Service{
		db:       d.DB,
		repo:     d.Repo,
		accounts: d.Accounts,
		pricing:  d.Pricing,
		billing:  d.Billing,
		earnings: d.Earnings,
		busy:     d.Busy,
		tokens:   d.Tokens,
		log:      d.Log,
		metrics:  d.Metrics,
		clock:    d.Clock,
	}
}

// Session is what a caller needs to start media after initiation.
type Session struct {
	Call               Call   `json:"call"`
	CallerToken        string `json:"caller_token,omitempty"`
	ReceiverToken      string `json:"receiver_token,omitempty"`
	MaxDurationSeconds int64  `json:"max_duration_seconds"`
}

// Initiate opens a call after checking both participants, the caller's balance
// for one billable minute and that neither side is already in a call.
func (s *Service) Initiate(ctx context.Context, callerID, receiverID string, callType pricing.CallType) (Session, error) {
	if callerID == "" || receiverID == "" {
		return Session{}, ErrInvalidArgument
	}
	if callerID == receiverID {
		return Session{}, fmt.Errorf("%w: cannot call yourself", ErrInvalidArgument)
	}
	if _, ok := pricing.ParseCallType(string(callType)); !ok {
		return Session{}, fmt.Errorf("%w: call type %q", ErrInvalidArgument, callType)
	}

	caller, err := s.accounts.Get(ctx, callerID)
	if err != nil {
		return Session{}, fmt.Errorf("caller: %w", err)
	}
	receiver, err := s.accounts.Get(ctx, receiverID)
	if err != nil {
		return Session{}, fmt.Errorf("receiver: %w", err)
	}

	now := s.clock().UTC()
	premium := caller.PremiumActive(now)
	minuteCost, err := s.pricing.MinuteCost(callType, premium)
	if err != nil {
		return Session{}, err
	}
	if caller.CoinBalance < minuteCost {
		return Session{}, fmt.Errorf("%w: need %d coins for one minute", wallet.ErrInsufficientFunds, minuteCost)
	}
	maxSeconds, err := s.pricing.MaxAffordableSeconds(callType, caller.CoinBalance, premium)
	if err != nil {
		return Session{}, err
	}

	callID := uuid.NewString()
	if ok, err := s.busy.Acquire(ctx, callerID, callID); err != nil {
		return Session{}, fmt.Errorf("busy guard: %w", err)
	} else if !ok {
		return Session{}, fmt.Errorf("%w: caller", ErrBusy)
	}
	if ok, err := s.busy.Acquire(ctx, receiverID, callID); err != nil || !ok {
		s.releaseSlots(ctx, callID, callerID)
		if err != nil {
			return Session{}, fmt.Errorf("busy guard: %w", err)
		}
		return Session{}, fmt.Errorf("%w: receiver", ErrBusy)
	}

	out := Session{MaxDurationSeconds: maxSeconds}
	room := RoomName(callID)
	if s.tokens != nil {
		if out.CallerToken, err = s.tokens.JoinToken(room, callerID, caller.DisplayName); err != nil {
			s.releaseSlots(ctx, callID, callerID, receiverID)
			return Session{}, fmt.Errorf("caller token: %w", err)
		}
		if out.ReceiverToken, err = s.tokens.JoinToken(room, receiverID, receiver.DisplayName); err != nil {
			s.releaseSlots(ctx, callID, callerID, receiverID)
			return Session{}, fmt.Errorf("receiver token: %w", err)
		}
	}

	c := Call{
		ID:         callID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     StatusInitiated,
		RoomName:   room,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		s.releaseSlots(ctx, callID, callerID, receiverID)
		return Session{}, err
	}

	out.Call = c

	s.metrics.IncCallTransition("", string(StatusInitiated))
	s.log.InfoContext(ctx, "call initiated",
		"call_id", callID,
		"caller_id", callerID,
		"receiver_id", receiverID,
		"call_type", callType,
		"max_duration_seconds", maxSeconds,
	)
	return out, nil
}

// OnCallStatusChanged applies a status report. On the edge into completed with a
// positive duration it bills the caller and then credits the receiving host.
// Settlement failures never undo the status change. Insufficient funds is
// stored on the call and absorbed; any other failure is stored and returned,
// and reporting completed again retries settlement.
// actingUserID, when set, must be one of the participants. Participant reports
// are billed on the server-observed answered time; durationSeconds is only
// honored from in-process callers, and never beyond the observed time.
func (s *Service) OnCallStatusChanged(ctx context.Context, callID string, newStatus Status, durationSeconds *int64, actingUserID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	if _, ok := ParseStatus(string(newStatus)); !ok {
		return Call{}, fmt.Errorf("%w: status %q", ErrInvalidArgument, newStatus)
	}
	if durationSeconds != nil && *durationSeconds < 0 {
		return Call{}, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if actingUserID != "" && actingUserID != c.CallerID && actingUserID != c.ReceiverID {
		return Call{}, ErrForbidden
	}
	if c.Status == newStatus {
		if newStatus == StatusCompleted {
			return c, s.settle(ctx, &c)
		}
		return c, nil
	}
	if !CanTransition(c.Status, newStatus) {
		return Call{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, newStatus)
	}

	now := s.clock().UTC()
	extra := map[string]any{"updated_at": now}
	switch newStatus {
	case StatusAnswered:
		if c.StartedAt == nil {
			extra["started_at"] = now
			c.StartedAt = &now
		}
	case StatusCompleted, StatusFailed:
		extra["ended_at"] = now
		c.EndedAt = &now
	}

	var duration int64
	if newStatus == StatusCompleted {
		duration = billableSeconds(c, durationSeconds, actingUserID, now)
		extra["duration_seconds"] = duration
		c.DurationSeconds = &duration
	}

	prev := c.Status
	if err := s.repo.compareAndSetStatus(ctx, callID, prev, newStatus, extra); err != nil {
		return Call{}, err
	}
	c.Status = newStatus
	c.UpdatedAt = now
	s.metrics.IncCallTransition(string(prev), string(newStatus))

	if newStatus.Terminal() {
		s.releaseSlots(ctx, callID, c.CallerID, c.ReceiverID)
	}

	if newStatus == StatusCompleted {
		if err := s.settle(ctx, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Settle retries billing and earnings for a completed call whose settlement did
// not finish. A call already absorbed as insufficient funds stays unbilled.
func (s *Service) Settle(ctx context.Context, callID string) (Call, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if c.Status != StatusCompleted {
		return Call{}, ErrInvalidState
	}
	if err := s.settle(ctx, &c); err != nil {
		return c, err
	}
	return c, nil
}

const billingErrInsufficientFunds = "insufficient_funds"

// settle bills the caller, then credits the host. Each step is idempotent per
// call, so it is safe to run again after a partial failure.
func (s *Service) settle(ctx context.Context, c *Call) error {
	if c.DurationSeconds == nil || *c.DurationSeconds <= 0 {
		return nil
	}
	if c.CoinsCharged == nil && c.BillingError == billingErrInsufficientFunds {
		return nil
	}
	log := s.log.With("call_id", c.ID, "caller_id", c.CallerID, "receiver_id", c.ReceiverID)

	if c.CoinsCharged == nil {
		charge, err := s.billing.ChargeForCall(ctx, c.CallerID, c.CallType, *c.DurationSeconds, c.ID)
		switch {
		case err == nil:
			coins := charge.CoinsCharged
			c.CoinsCharged = &coins
			c.BillingError = ""
		case errors.Is(err, billing.ErrAlreadyBilled):
			fresh, gerr := s.repo.Get(ctx, c.ID)
			if gerr != nil {
				return fmt.Errorf("reload billed call: %w", gerr)
			}
			c.CoinsCharged, c.BillingError = fresh.CoinsCharged, fresh.BillingError
		case errors.Is(err, wallet.ErrInsufficientFunds):
			s.recordBillingError(ctx, c, billingErrInsufficientFunds)
			log.WarnContext(ctx, "call billing failed", "err", err)
			return nil
		default:
			s.recordBillingError(ctx, c, err.Error())
			log.ErrorContext(ctx, "call billing failed", "err", err)
			return fmt.Errorf("bill call %s: %w", c.ID, err)
		}
	}

	if c.CoinsCharged == nil || s.earnings == nil {
		return nil
	}
	earning, err := s.earnings.RecordEarning(ctx, c.ID, c.ReceiverID, c.CallType, *c.DurationSeconds, *c.CoinsCharged)
	switch {
	case errors.Is(err, earnings.ErrDuplicateEarning):
		log.DebugContext(ctx, "host earning already recorded")
	case err != nil:
		log.ErrorContext(ctx, "host earning failed", "err", err)
		return fmt.Errorf("host earning for call %s: %w", c.ID, err)
	case earning == nil:
		log.DebugContext(ctx, "receiver is not a host; no earning")
	}
	return nil
}

func (s *Service) recordBillingError(ctx context.Context, c *Call, msg string) {
	c.BillingError = truncate(msg, 255)
	if err := s.repo.setBillingError(ctx, c.ID, msg); err != nil {
		s.log.ErrorContext(ctx, "record billing error failed", "call_id", c.ID, "err", err)
	}
}

// billableSeconds is the time since the call was answered. A report from an
// in-process caller (no acting user) may shorten it but never extend it.
// Calls that were never answered bill nothing.
func billableSeconds(c Call, reported *int64, actingUserID string, now time.Time) int64 {
	if c.StartedAt == nil {
		return 0
	}
	observed := int64(now.Sub(*c.StartedAt) / time.Second)
	if observed < 0 {
		observed = 0
	}
	if actingUserID == "" && reported != nil && *reported < observed {
		return *reported
	}
	return observed
}

func (s *Service) releaseSlots(ctx context.Context, callID string, userIDs ...string) {
	for _, id := range userIDs {
		if err := s.busy.Release(ctx, id, callID); err != nil {
			s.log.WarnContext(ctx, "release busy slot failed", "call_id", callID, "user_id", id, "err", err)
		}
	}
}

// Get returns the call when userID is a participant. An empty userID skips the check.
func (s *Service) Get(ctx context.Context, callID, userID string) (Call, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if userID != "" && userID != c.CallerID && userID != c.ReceiverID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Call, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, userID, limit, offset)
}

// Rate lets the caller rate a completed call once. Verified host receivers get
// the stars folded into their rating aggregate in the same transaction.
func (s *Service) Rate(ctx context.Context, callID, callerID string, stars int) (Call, error) {
	if stars < 1 || stars > 5 {
		return Call{}, fmt.Errorf("%w: stars must be 1..5", ErrInvalidArgument)
	}
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if c.CallerID != callerID {
		return Call{}, ErrForbidden
	}
	if c.Status != StatusCompleted {
		return Call{}, ErrInvalidState
	}
	if c.CallerRating != nil {
		return Call{}, ErrAlreadyRated
	}

	now := s.clock().UTC()
	err = utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *gorm.DB) error {
		if err := setRating(ctx, tx, callID, callerID, stars, now); err != nil {
			return err
		}
		store := s.accounts.WithTx(tx)
		receiver, err := store.Get(ctx, c.ReceiverID)
		if err != nil {
			return err
		}
		if !receiver.VerifiedHost() {
			return nil
		}
		return store.AddRating(ctx, c.ReceiverID, stars)
	})
	if err != nil {
		return Call{}, err
	}

	c.CallerRating = &stars
	c.UpdatedAt = now
	s.log.InfoContext(ctx, "call rated", "call_id", callID, "stars", stars)
	return c, nil
}
