package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"chatcall-platform/internal/auth"

	"github.com/google/uuid"
)

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users.
// - Record is best-effort; Append returns errors for callers that must know.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event attributed to the identity and client IP found in
// ctx. Failures are logged, never returned.
func (s *Service) Record(ctx context.Context, typ EventType, targetUserID, callID, message string, metadata map[string]any) {
	if s == nil {
		return
	}
	actor, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	e := Event{
		Type:         typ,
		ActorUserID:  actor,
		ActorRole:    role,
		IPAddress:    ClientIPFromContext(ctx),
		TargetUserID: targetUserID,
		CallID:       callID,
		Message:      message,
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = string(b)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.WarnContext(ctx, "audit append failed", "type", typ, "err", err)
	}
}
