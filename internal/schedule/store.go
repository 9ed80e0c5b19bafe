package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callsurvey/pkg/utils"

	"github.com/google/uuid"
)

// Store provides persistence for scheduled calls and their turn history.
//
// Status invariants:
// - pending -> in_progress happens only through ClaimDue (atomic, single statement)
// - in_progress -> completed happens only through Complete (idempotent)
// - terminal records are never rewritten
//
// Turn invariants:
// - a question is persisted before it is spoken to the caller
// - an answer only ever fills the newest open turn
type Store struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

var (
	ErrNotFound        = errors.New("schedule: not found")
	ErrInvalidArgument = errors.New("schedule: invalid argument")
)

// Create persists a new pending call record.
func (s *Store) Create(ctx context.Context, phoneNumber, surveyType string, scheduledAt time.Time) (CallRecord, error) {
	if phoneNumber == "" || surveyType == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	if scheduledAt.IsZero() {
		return CallRecord{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	r := CallRecord{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		SurveyType:  surveyType,
		Status:      StatusPending,
		ScheduledAt: scheduledAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := insertCall(ctx, s.db, r); err != nil {
		return CallRecord{}, err
	}
	return r, nil
}

// ClaimDue atomically claims up to limit due pending records for dispatch.
// A record returned here is already in_progress; the caller owns it.
func (s *Store) ClaimDue(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidArgument
	}
	return claimDue(ctx, s.db, s.clock().UTC(), limit)
}

// MarkDispatched records the provider call identifier after a successful
// outbound call request.
func (s *Store) MarkDispatched(ctx context.Context, id, providerCallID string) error {
	if id == "" || providerCallID == "" {
		return ErrInvalidArgument
	}
	return setDispatched(ctx, s.db, id, providerCallID, s.clock().UTC())
}

// MarkFailed records a dispatch or provider failure. Terminal records are
// left untouched.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return markFailed(ctx, s.db, id, reason, s.clock().UTC())
}

// Complete transitions the record to completed. Idempotent: re-invoking for a
// record that is already terminal changes nothing and returns false.
func (s *Store) Complete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrInvalidArgument
	}
	return completeCall(ctx, s.db, id, s.clock().UTC())
}

func (s *Store) Get(ctx context.Context, id string) (CallRecord, error) {
	if id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return getCall(ctx, s.db, id)
}

// GetByProviderCallID resolves a webhook's CallSid to our record.
func (s *Store) GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error) {
	if providerCallID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return getCallByProviderID(ctx, s.db, providerCallID)
}

// List returns records, newest scheduled first. Empty status means all.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return listCalls(ctx, s.db, status, limit)
}

// ListBetween returns records scheduled in [from, to), optionally filtered by
// survey type. Used by reporting.
func (s *Store) ListBetween(ctx context.Context, from, to time.Time, surveyType string) ([]CallRecord, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, ErrInvalidArgument
	}
	return listCallsBetween(ctx, s.db, from.UTC(), to.UTC(), surveyType)
}

// AppendQuestion persists the next question before it is spoken, assigning the
// next turn index under a transaction so concurrent webhook retries cannot
// create two open turns.
func (s *Store) AppendQuestion(ctx context.Context, callID, question string) (Turn, error) {
	if callID == "" || question == "" {
		return Turn{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var out Turn
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		n, err := countTurns(ctx, tx, callID)
		if err != nil {
			return err
		}
		t := Turn{
			CallID:    callID,
			Index:     n,
			Question:  question,
			CreatedAt: now,
		}
		if err := insertTurn(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// RecordAnswer fills the newest open turn with the caller's transcribed
// answer. Returns false when no turn was open (duplicate webhook delivery).
func (s *Store) RecordAnswer(ctx context.Context, callID, answer string) (bool, error) {
	if callID == "" || answer == "" {
		return false, ErrInvalidArgument
	}

	var ok bool
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		ok, err = answerOpenTurn(ctx, tx, callID, answer)
		return err
	})
	return ok, err
}

// Turns returns the full turn history for a call, oldest first.
func (s *Store) Turns(ctx context.Context, callID string) ([]Turn, error) {
	if callID == "" {
		return nil, ErrInvalidArgument
	}
	return listTurns(ctx, s.db, callID)
}
