package reporting

import (
	"context"
	"sync"
	"time"

	"callsurvey/internal/schedule"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.

type MemoryRepo struct {
	mu sync.Mutex

	Calls []schedule.CallRecord
	Turns map[string][]schedule.Turn
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Turns: map[string][]schedule.Turn{}} }

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time, surveyType string) ([]schedule.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schedule.CallRecord, 0)
	for _, c := range r.Calls {
		if c.ScheduledAt.Before(from) || !c.ScheduledAt.Before(to) {
			continue
		}
		if surveyType != "" && c.SurveyType != surveyType {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListTurns(ctx context.Context, callID string) ([]schedule.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schedule.Turn, len(r.Turns[callID]))
	copy(out, r.Turns[callID])
	return out, nil
}
