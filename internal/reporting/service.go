package reporting

import (
	"context"
	"errors"
	"time"

	"callsurvey/internal/schedule"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should read from the same records the scheduler and
// conversation write; reporting never mutates anything.

type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, surveyType string) ([]schedule.CallRecord, error)
	ListTurns(ctx context.Context, callID string) ([]schedule.Turn, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// SurveySummary aggregates call outcomes for the requested range.
func (s *Service) SurveySummary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To, req.SurveyType)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{SurveyType: req.SurveyType}
	answeredTotal := 0
	for _, c := range rows {
		out.TotalCalls++
		switch c.Status {
		case schedule.StatusPending:
			out.PendingCalls++
		case schedule.StatusInProgress:
			out.InProgressCalls++
		case schedule.StatusCompleted:
			out.CompletedCalls++
		case schedule.StatusFailed:
			out.FailedCalls++
		}

		if c.Status == schedule.StatusCompleted {
			turns, err := s.repo.ListTurns(ctx, c.ID)
			if err != nil {
				return Summary{}, err
			}
			for _, t := range turns {
				if t.Answered() {
					answeredTotal++
				}
			}
		}
	}

	if out.TotalCalls > 0 {
		out.CompletionRate = float64(out.CompletedCalls) / float64(out.TotalCalls)
	}
	if out.CompletedCalls > 0 {
		out.AverageTurns = float64(answeredTotal) / float64(out.CompletedCalls)
	}
	return out, nil
}
