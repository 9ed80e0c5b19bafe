package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - scheduled_calls
// - call_turns (append-per-question, answer filled in place)
//
// It also assumes:
// UNIQUE (call_id, turn_index) on call_turns
// UNIQUE (provider_call_id) on scheduled_calls where provider_call_id <> ''

const callColumns = `id, phone_number, survey_type, status, scheduled_at, provider_call_id, fail_reason, created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (CallRecord, error) {
	var r CallRecord
	err := row.Scan(
		&r.ID,
		&r.PhoneNumber,
		&r.SurveyType,
		&r.Status,
		&r.ScheduledAt,
		&r.ProviderCallID,
		&r.FailReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func insertCall(ctx context.Context, db *sql.DB, r CallRecord) error {
	const q = `
INSERT INTO scheduled_calls (
  id, phone_number, survey_type, status, scheduled_at, provider_call_id, fail_reason, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := db.ExecContext(ctx, q,
		r.ID,
		r.PhoneNumber,
		r.SurveyType,
		r.Status,
		r.ScheduledAt,
		r.ProviderCallID,
		r.FailReason,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return err
}

func getCall(ctx context.Context, db *sql.DB, id string) (CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE id = $1
`
	r, err := scanCall(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return r, nil
}

func getCallByProviderID(ctx context.Context, db *sql.DB, providerCallID string) (CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE provider_call_id = $1
`
	r, err := scanCall(db.QueryRowContext(ctx, q, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return r, nil
}

// claimDue atomically flips due pending records to in_progress and returns them.
// The claim is a single statement, so two overlapping ticks (or two processes)
// can never both dispatch the same record. SKIP LOCKED keeps a slow claimer
// from blocking the next tick.
func claimDue(ctx context.Context, db *sql.DB, now time.Time, limit int) ([]CallRecord, error) {
	const q = `
UPDATE scheduled_calls
SET status = $1, updated_at = $2
WHERE id IN (
  SELECT id FROM scheduled_calls
  WHERE status = $3 AND scheduled_at <= $2
  ORDER BY scheduled_at
  LIMIT $4
  FOR UPDATE SKIP LOCKED
)
RETURNING ` + callColumns + `
`
	rows, err := db.QueryContext(ctx, q, StatusInProgress, now, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		r, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func setDispatched(ctx context.Context, db *sql.DB, id, providerCallID string, now time.Time) error {
	const q = `
UPDATE scheduled_calls
SET provider_call_id = $1, updated_at = $2
WHERE id = $3 AND status = $4
`
	res, err := db.ExecContext(ctx, q, providerCallID, now, id, StatusInProgress)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func markFailed(ctx context.Context, db *sql.DB, id, reason string, now time.Time) error {
	// Only non-terminal records may fail; re-failing a terminal record is a no-op.
	const q = `
UPDATE scheduled_calls
SET status = $1, fail_reason = $2, updated_at = $3
WHERE id = $4 AND status IN ($5, $6)
`
	_, err := db.ExecContext(ctx, q, StatusFailed, reason, now, id, StatusPending, StatusInProgress)
	return err
}

// completeCall transitions in_progress -> completed. Returns false without
// error when the record was already terminal (idempotent re-invocation).
func completeCall(ctx context.Context, db *sql.DB, id string, now time.Time) (bool, error) {
	const q = `
UPDATE scheduled_calls
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4
`
	res, err := db.ExecContext(ctx, q, StatusCompleted, now, id, StatusInProgress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func listCalls(ctx context.Context, db *sql.DB, status Status, limit int) ([]CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE ($1 = '' OR status = $1)
ORDER BY scheduled_at DESC
LIMIT $2
`
	rows, err := db.QueryContext(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		r, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listCallsBetween(ctx context.Context, db *sql.DB, from, to time.Time, surveyType string) ([]CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM scheduled_calls
WHERE scheduled_at >= $1 AND scheduled_at < $2
  AND ($3 = '' OR survey_type = $3)
ORDER BY scheduled_at
`
	rows, err := db.QueryContext(ctx, q, from, to, surveyType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		r, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func countTurns(ctx context.Context, tx *sql.Tx, callID string) (int, error) {
	const q = `
SELECT COUNT(*) FROM call_turns WHERE call_id = $1
`
	var n int
	if err := tx.QueryRowContext(ctx, q, callID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func insertTurn(ctx context.Context, tx *sql.Tx, t Turn) error {
	const q = `
INSERT INTO call_turns (call_id, turn_index, question, answer, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := tx.ExecContext(ctx, q, t.CallID, t.Index, t.Question, t.Answer, t.CreatedAt)
	return err
}

// answerOpenTurn fills the answer of the newest unanswered turn.
// Returns false when there is no open turn (duplicate webhook delivery).
func answerOpenTurn(ctx context.Context, tx *sql.Tx, callID, answer string) (bool, error) {
	const q = `
UPDATE call_turns
SET answer = $1
WHERE call_id = $2
  AND turn_index = (
    SELECT MAX(turn_index) FROM call_turns WHERE call_id = $2 AND answer = ''
  )
  AND answer = ''
`
	res, err := tx.ExecContext(ctx, q, answer, callID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func listTurns(ctx context.Context, db *sql.DB, callID string) ([]Turn, error) {
	const q = `
SELECT call_id, turn_index, question, answer, created_at
FROM call_turns
WHERE call_id = $1
ORDER BY turn_index
`
	rows, err := db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.CallID, &t.Index, &t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
