package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to callers by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.CallID == "" && e.ActorUserID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallScheduled records a call being scheduled through the HTTP API.
func (s *Service) LogCallScheduled(ctx context.Context, callID, actorUserID, actorRole, ip string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallScheduled,
		CallID:      callID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     "call scheduled",
	})
}

// LogCallDispatched records a successful outbound call request.
func (s *Service) LogCallDispatched(ctx context.Context, callID, providerCallID string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeCallDispatched,
		CallID:         callID,
		ProviderCallID: providerCallID,
		Message:        "outbound call placed",
	})
}

// LogCallFailed records a dispatch failure with the provider's reason.
func (s *Service) LogCallFailed(ctx context.Context, callID, reason string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallFailed,
		CallID:  callID,
		Message: reason,
	})
}

// LogSurveyCompleted records a survey reaching completion.
func (s *Service) LogSurveyCompleted(ctx context.Context, callID, providerCallID string, turns int) error {
	return s.Append(ctx, Event{
		Type:           EventTypeSurveyCompleted,
		CallID:         callID,
		ProviderCallID: providerCallID,
		Message:        "survey completed",
		Metadata:       fmt.Sprintf(`{"turns":%d}`, turns),
	})
}
