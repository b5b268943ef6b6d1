package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chatcall-platform/internal/testdb"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, topic+"/"+key)
	return nil
}

func enqueue(t *testing.T, db *gorm.DB, topic, key string) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return Enqueue(context.Background(), tx, topic, key, map[string]string{"k": key})
	})
	require.NoError(t, err)
}

func TestEnqueue_RollsBackWithTransaction(t *testing.T) {
	db := testdb.Open(t, &Message{})
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := Enqueue(context.Background(), tx, TopicCallBilled, "call-1", CallBilled{CallID: "call-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, db.Model(&Message{}).Count(&n).Error)
	require.Zero(t, n)

	require.ErrorIs(t, Enqueue(context.Background(), db, "", "k", nil), ErrInvalidMessage)
}

func TestRelay_PublishesPendingInOrder(t *testing.T) {
	db := testdb.Open(t, &Message{})
	enqueue(t, db, TopicCallBilled, "call-1")
	enqueue(t, db, TopicHostEarningRecorded, "call-1")

	pub := &fakePublisher{}
	r := NewRelay(db, pub, nil, nil, RelayConfig{})

	n, err := r.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"call.billed/call-1", "host.earning.recorded/call-1"}, pub.sent)

	n, err = r.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRelay_MarksFailedAfterMaxRetries(t *testing.T) {
	db := testdb.Open(t, &Message{})
	enqueue(t, db, TopicHostBonusCredited, "host-1")

	pub := &fakePublisher{err: errors.New("broker down")}
	r := NewRelay(db, pub, nil, nil, RelayConfig{MaxRetries: 2})

	for i := 0; i < 3; i++ {
		_, err := r.ProcessOnce(context.Background())
		require.NoError(t, err)
	}

	var msg Message
	require.NoError(t, db.First(&msg).Error)
	require.Equal(t, StatusFailed, msg.Status)
	require.Equal(t, 2, msg.RetryCount)
	require.Equal(t, "broker down", msg.LastError)
}

func TestKafkaPublisher_SendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"call_id":"c1"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer)
	require.NoError(t, p.Publish(context.Background(), TopicCallBilled, "c1", []byte(`{"call_id":"c1"}`)))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PropagatesBrokerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer)
	err := p.Publish(context.Background(), TopicCallBilled, "c1", []byte(`{}`))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
