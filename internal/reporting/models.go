package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated survey metrics for calls scheduled in a
// time range, optionally filtered by survey type.

type SummaryRequest struct {
	Range      TimeRange `json:"range"`
	SurveyType string    `json:"survey_type,omitempty"`
}

type Summary struct {
	SurveyType string `json:"survey_type,omitempty"`

	TotalCalls      int `json:"total_calls"`
	PendingCalls    int `json:"pending_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`

	// CompletionRate is completed over total scheduled in the range.
	CompletionRate float64 `json:"completion_rate"`

	// AverageTurns is the mean answered turn count across completed surveys.
	AverageTurns float64 `json:"average_turns"`
}
