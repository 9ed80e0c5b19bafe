package reporting

import (
	"context"
	"time"

	"callsurvey/internal/schedule"
)

// StoreRepo reads reporting data straight from the schedule store.
type StoreRepo struct {
	store *schedule.Store
}

func NewStoreRepo(store *schedule.Store) *StoreRepo { return &StoreRepo{store: store} }

func (r *StoreRepo) ListCalls(ctx context.Context, from, to time.Time, surveyType string) ([]schedule.CallRecord, error) {
	return r.store.ListBetween(ctx, from, to, surveyType)
}

func (r *StoreRepo) ListTurns(ctx context.Context, callID string) ([]schedule.Turn, error) {
	return r.store.Turns(ctx, callID)
}
