package reporting

import (
	"context"
	"testing"
	"time"

	"callsurvey/internal/schedule"
)

func TestSurveySummary_Aggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []schedule.CallRecord{
		{ID: "c1", SurveyType: "satisfaction", Status: schedule.StatusCompleted, ScheduledAt: now},
		{ID: "c2", SurveyType: "satisfaction", Status: schedule.StatusCompleted, ScheduledAt: now},
		{ID: "c3", SurveyType: "satisfaction", Status: schedule.StatusFailed, ScheduledAt: now},
		{ID: "c4", SurveyType: "satisfaction", Status: schedule.StatusPending, ScheduledAt: now},
	}
	repo.Turns = map[string][]schedule.Turn{
		"c1": {
			{Index: 0, Question: "q", Answer: "a"},
			{Index: 1, Question: "q", Answer: "a"},
			{Index: 2, Question: "q", Answer: "a"},
		},
		"c2": {
			{Index: 0, Question: "q", Answer: "a"},
		},
	}
	svc := NewService(repo)

	out, err := svc.SurveySummary(context.Background(), SummaryRequest{
		Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.CompletedCalls != 2 || out.FailedCalls != 1 || out.PendingCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.CompletionRate != 0.5 {
		t.Fatalf("expected completion rate 0.5, got %v", out.CompletionRate)
	}
	if out.AverageTurns != 2 {
		t.Fatalf("expected average turns 2, got %v", out.AverageTurns)
	}
}

func TestSurveySummary_FiltersBySurveyType(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []schedule.CallRecord{
		{ID: "c1", SurveyType: "satisfaction", Status: schedule.StatusCompleted, ScheduledAt: now},
		{ID: "c2", SurveyType: "churn", Status: schedule.StatusCompleted, ScheduledAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SurveySummary(context.Background(), SummaryRequest{
		Range:      TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
		SurveyType: "churn",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
}

func TestSurveySummary_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.SurveySummary(context.Background(), SummaryRequest{}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.SurveySummary(context.Background(), SummaryRequest{
		Range: TimeRange{From: now, To: now},
	}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}
