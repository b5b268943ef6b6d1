package events

import (
	"context"
	"log/slog"
	"time"

	"chatcall-platform/internal/metrics"

	"gorm.io/gorm"
)

type RelayConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

func (c RelayConfig) withDefaults() RelayConfig {
	out := c
	if out.Interval <= 0 {
		out.Interval = time.Second
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 5
	}
	return out
}

// Relay drains pending outbox rows to a Publisher. It is the only background
// worker in the process.
type Relay struct {
	db      *gorm.DB
	pub     Publisher
	log     *slog.Logger
	metrics *metrics.Metrics
	cfg     RelayConfig
}

func NewRelay(db *gorm.DB, pub Publisher, log *slog.Logger, m *metrics.Metrics, cfg RelayConfig) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{db: db, pub: pub, log: log, metrics: m, cfg: cfg.withDefaults()}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("outbox relay started", "interval", r.cfg.Interval.String())
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("outbox relay batch failed", "err", err)
			}
		}
	}
}

// ProcessOnce publishes one batch and returns how many messages were sent.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	msgs, err := pendingMessages(ctx, r.db, r.cfg.BatchSize)
	if err != nil {
		r.metrics.IncDBError("outbox_fetch", err)
		return 0, err
	}

	sent := 0
	for _, msg := range msgs {
		pubErr := r.pub.Publish(ctx, msg.Topic, msg.MessageKey, []byte(msg.Payload))
		r.metrics.IncOutboxPublish(msg.Topic, pubErr)
		if pubErr == nil {
			if err := markSent(ctx, r.db, msg.ID); err != nil {
				r.log.Error("outbox mark sent failed", "id", msg.ID, "err", err)
				continue
			}
			sent++
			continue
		}

		status, err := markAttemptFailed(ctx, r.db, msg, pubErr, r.cfg.MaxRetries)
		if err != nil {
			r.log.Error("outbox retry bookkeeping failed", "id", msg.ID, "err", err)
			continue
		}
		if status == StatusFailed {
			r.log.Error("outbox message exhausted retries", "id", msg.ID, "topic", msg.Topic, "err", pubErr)
		} else {
			r.log.Warn("outbox publish failed", "id", msg.ID, "topic", msg.Topic, "attempt", msg.RetryCount+1, "err", pubErr)
		}
	}
	return sent, nil
}
