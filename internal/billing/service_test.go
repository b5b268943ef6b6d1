package billing

import (
	"context"
	"testing"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/config"
	"chatcall-platform/internal/events"
	"chatcall-platform/internal/metrics"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/testdb"
	"chatcall-platform/internal/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type billedCall struct {
	ID           string `gorm:"primaryKey"`
	CoinsCharged *int64
}

type callRecorder struct{}

func (callRecorder) RecordCharge(ctx context.Context, tx *gorm.DB, callID string, coins int64) error {
	res := tx.WithContext(ctx).Model(&billedCall{}).
		Where("id = ? AND coins_charged IS NULL", callID).
		Update("coins_charged", coins)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyBilled
	}
	return nil
}

type fixture struct {
	db      *gorm.DB
	store   *accounts.Store
	wallet  *wallet.Service
	billing *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t, &accounts.Account{}, &wallet.Entry{}, &events.Message{}, &billedCall{})
	store := accounts.NewStore(db)
	m := metrics.New(prometheus.NewRegistry())
	w := wallet.NewService(db, nil, m)
	p := pricing.NewService(pricing.FromBilling(config.DefaultBilling()))
	return &fixture{
		db:      db,
		store:   store,
		wallet:  w,
		billing: NewService(db, p, store, w, callRecorder{}, nil, m),
	}
}

func (f *fixture) user(t *testing.T, id string, coins int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.Create(ctx, accounts.CreateRequest{ID: id})
	require.NoError(t, err)
	if coins > 0 {
		_, err = f.wallet.Credit(ctx, id, coins, wallet.KindPurchase, "seed", wallet.Options{})
		require.NoError(t, err)
	}
}

func (f *fixture) call(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&billedCall{ID: id}).Error)
}

func (f *fixture) coinsCharged(t *testing.T, id string) *int64 {
	t.Helper()
	var c billedCall
	require.NoError(t, f.db.Where("id = ?", id).Take(&c).Error)
	return c.CoinsCharged
}

func TestChargeForCall_Rounding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "caller", 1000)

	f.call(t, "c1")
	ch, err := f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeAudio, 61, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(20), ch.CoinsCharged)
	require.Equal(t, int64(980), ch.NewBalance)

	f.call(t, "c2")
	ch, err = f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeVideo, 60, "c2")
	require.NoError(t, err)
	require.Equal(t, int64(60), ch.CoinsCharged)
	require.Zero(t, ch.Discount)
	require.Equal(t, int64(60), *f.coinsCharged(t, "c2"))
}

func TestChargeForCall_PremiumDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "vip", 100)
	require.NoError(t, f.store.SetPremium(ctx, "vip", true, nil))

	f.call(t, "c1")
	ch, err := f.billing.ChargeForCall(ctx, "vip", pricing.CallTypeVideo, 60, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(30), ch.CoinsCharged)
	require.Equal(t, int64(60), ch.OriginalCost)
	require.Equal(t, int64(30), ch.Discount)
	require.Equal(t, int64(70), ch.NewBalance)
}

func TestChargeForCall_InsufficientFundsChargesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "caller", 15)
	f.call(t, "c1")

	_, err := f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeAudio, 65, "c1")
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	require.Nil(t, f.coinsCharged(t, "c1"))
	bal, err := f.wallet.GetBalance(ctx, "caller")
	require.NoError(t, err)
	require.Equal(t, int64(15), bal)

	var n int64
	require.NoError(t, f.db.Model(&events.Message{}).Where("topic = ?", events.TopicCallBilled).Count(&n).Error)
	require.Zero(t, n)
}

func TestChargeForCall_SecondChargeRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "caller", 100)
	f.call(t, "c1")

	_, err := f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeAudio, 30, "c1")
	require.NoError(t, err)
	_, err = f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeAudio, 30, "c1")
	require.ErrorIs(t, err, ErrAlreadyBilled)

	rec, err := f.wallet.Reconcile(ctx, "caller")
	require.NoError(t, err)
	require.True(t, rec.Consistent)
	require.Equal(t, int64(90), rec.Balance)
}

func TestChargeForCall_EnqueuesBilledEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "caller", 100)
	f.call(t, "c1")

	_, err := f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeVideo, 90, "c1")
	require.NoError(t, err)

	var msg events.Message
	require.NoError(t, f.db.Where("topic = ?", events.TopicCallBilled).Take(&msg).Error)
	require.Equal(t, "c1", msg.MessageKey)
	require.Contains(t, msg.Payload, `"coins_charged":120`)
}

func TestChargeForCall_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.billing.ChargeForCall(ctx, "caller", pricing.CallTypeAudio, 0, "c1")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.billing.ChargeForCall(ctx, "caller", pricing.CallType("fax"), 10, "c1")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.billing.ChargeForCall(ctx, "ghost", pricing.CallTypeAudio, 10, "c1")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}
