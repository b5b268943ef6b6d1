package wallet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/testdb"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, users ...string) (*Service, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t, &accounts.Account{}, &Entry{})
	store := accounts.NewStore(db)
	for _, u := range users {
		if _, err := store.Create(context.Background(), accounts.CreateRequest{ID: u}); err != nil {
			t.Fatalf("create %s: %v", u, err)
		}
	}
	return NewService(db, nil, nil), db
}

func requireConsistent(t *testing.T, s *Service, userID string) Reconciliation {
	t.Helper()
	rec, err := s.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "balance %d != ledger sum %d", rec.Balance, rec.LedgerSum)
	return rec
}

func TestKindAllows(t *testing.T) {
	require.True(t, KindPurchase.Allows(DirectionCredit))
	require.False(t, KindPurchase.Allows(DirectionDebit))
	require.True(t, KindVideoCall.Allows(DirectionDebit))
	require.False(t, KindAudioCall.Allows(DirectionCredit))
	require.True(t, KindAdmin.Allows(DirectionDebit))
	require.True(t, KindTransfer.Allows(DirectionCredit))
	require.False(t, Kind("gift").Allows(DirectionCredit))

	_, ok := ParseKind("refund")
	require.True(t, ok)
	_, ok = ParseKind("gift")
	require.False(t, ok)
}

func TestCreditAndDebit(t *testing.T) {
	s, _ := newTestService(t, "u1")
	ctx := context.Background()

	r, err := s.Credit(ctx, "u1", 100, KindPurchase, "100 coins", Options{AmountMinor: 9900})
	require.NoError(t, err)
	require.Equal(t, int64(100), r.Balance)
	require.Equal(t, int64(100), r.Entry.CoinDelta)

	r, err = s.Debit(ctx, "u1", 30, KindAudioCall, "audio call", Options{Reference: "call-1"})
	require.NoError(t, err)
	require.Equal(t, int64(70), r.Balance)
	require.Equal(t, int64(-30), r.Entry.CoinDelta)

	entries, err := s.ListEntries(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	rec := requireConsistent(t, s, "u1")
	require.Equal(t, int64(2), rec.EntryCount)
}

func TestDebit_InsufficientFundsLeavesNoTrace(t *testing.T) {
	s, _ := newTestService(t, "u1")
	ctx := context.Background()

	_, err := s.Credit(ctx, "u1", 15, KindPurchase, "", Options{})
	require.NoError(t, err)

	_, err = s.Debit(ctx, "u1", 20, KindAudioCall, "audio call", Options{})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(15), bal)
	rec := requireConsistent(t, s, "u1")
	require.Equal(t, int64(1), rec.EntryCount)
}

func TestPost_RejectsBadInput(t *testing.T) {
	s, _ := newTestService(t, "u1")
	ctx := context.Background()

	_, err := s.Credit(ctx, "u1", 0, KindPurchase, "", Options{})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Credit(ctx, "u1", 10, KindVideoCall, "", Options{})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Debit(ctx, "u1", 10, KindBonus, "", Options{})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Credit(ctx, "ghost", 10, KindPurchase, "", Options{})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Debit(ctx, "ghost", 10, KindDebit, "", Options{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCredit_IdempotencyKeyReplays(t *testing.T) {
	s, _ := newTestService(t, "u1")
	ctx := context.Background()

	first, err := s.Credit(ctx, "u1", 50, KindPurchase, "", Options{IdempotencyKey: "payment:pay_1"})
	require.NoError(t, err)
	second, err := s.Credit(ctx, "u1", 50, KindPurchase, "", Options{IdempotencyKey: "payment:pay_1"})
	require.NoError(t, err)

	require.True(t, second.Replayed)
	require.Equal(t, first.Entry.ID, second.Entry.ID)
	require.Equal(t, int64(50), second.Balance)

	_, err = s.Credit(ctx, "u1", 70, KindPurchase, "", Options{IdempotencyKey: "payment:pay_1"})
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	requireConsistent(t, s, "u1")
}

func TestTransfer(t *testing.T) {
	s, _ := newTestService(t, "a", "b")
	ctx := context.Background()

	_, err := s.Credit(ctx, "b", 40, KindPurchase, "", Options{})
	require.NoError(t, err)

	res, err := s.Transfer(ctx, "b", "a", 25, "gift")
	require.NoError(t, err)
	require.Equal(t, int64(15), res.From.Balance)
	require.Equal(t, int64(25), res.To.Balance)

	_, err = s.Transfer(ctx, "b", "a", 16, "")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = s.Transfer(ctx, "a", "a", 1, "")
	require.ErrorIs(t, err, ErrBadRequest)

	a := requireConsistent(t, s, "a")
	b := requireConsistent(t, s, "b")
	require.Equal(t, int64(25), a.Balance)
	require.Equal(t, int64(15), b.Balance)
}

func TestTransfer_UnknownReceiverRollsBackDebit(t *testing.T) {
	s, _ := newTestService(t, "a")
	ctx := context.Background()

	_, err := s.Credit(ctx, "a", 10, KindPurchase, "", Options{})
	require.NoError(t, err)

	_, err = s.Transfer(ctx, "a", "zz", 5, "")
	require.ErrorIs(t, err, ErrNotFound)

	rec := requireConsistent(t, s, "a")
	require.Equal(t, int64(10), rec.Balance)
}

func TestDebit_ConcurrentNeverNegative(t *testing.T) {
	s, _ := newTestService(t, "u1")
	ctx := context.Background()

	const start, each, workers = 100, 7, 40
	_, err := s.Credit(ctx, "u1", start, KindPurchase, "", Options{})
	require.NoError(t, err)

	var ok, declined atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Debit(ctx, "u1", each, KindDebit, "", Options{})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientFunds):
				declined.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(start/each), ok.Load())
	require.Equal(t, int64(workers-start/each), declined.Load())

	rec := requireConsistent(t, s, "u1")
	require.Equal(t, int64(start%each), rec.Balance)
	require.GreaterOrEqual(t, rec.Balance, int64(0))
}

func TestDebitTx_RollsBackWithCaller(t *testing.T) {
	s, db := newTestService(t, "u1")
	ctx := context.Background()

	_, err := s.Credit(ctx, "u1", 10, KindPurchase, "", Options{})
	require.NoError(t, err)

	boom := errors.New("downstream failed")
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.DebitTx(ctx, tx, "u1", 10, KindVideoCall, "", Options{}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec := requireConsistent(t, s, "u1")
	require.Equal(t, int64(10), rec.Balance)
}
