package httpapi

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"callsurvey/internal/audit"
	"callsurvey/internal/auth"
	"callsurvey/internal/reporting"
	"callsurvey/internal/schedule"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type ScheduleStore interface {
	Create(ctx context.Context, phoneNumber, surveyType string, scheduledAt time.Time) (schedule.CallRecord, error)
	Get(ctx context.Context, id string) (schedule.CallRecord, error)
	List(ctx context.Context, status schedule.Status, limit int) ([]schedule.CallRecord, error)
	Turns(ctx context.Context, callID string) ([]schedule.Turn, error)
}

type Reporter interface {
	SurveySummary(ctx context.Context, req reporting.SummaryRequest) (reporting.Summary, error)
}

type Handlers struct {
	Auth    *auth.Manager
	Store   ScheduleStore
	Reports Reporter
	Audit   *audit.Service
}

// E.164, as the telephony provider expects it.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Scheduled calls ---

type createCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	SurveyType  string `json:"survey_type"`
	ScheduledAt string `json:"scheduled_at"`
}

func (r createCallRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PhoneNumber, validation.Required, validation.Match(phonePattern).Error("must be E.164, e.g. +15551234567")),
		validation.Field(&r.SurveyType, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.ScheduledAt, validation.Required, validation.Date(time.RFC3339)),
	)
}

// CreateScheduledCall registers a call for the dispatch loop to pick up once
// its scheduled time arrives.
// RBAC: admin or operator.
func (h Handlers) CreateScheduledCall(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be RFC3339"})
		return
	}

	rec, err := h.Store.Create(c.Request.Context(), req.PhoneNumber, req.SurveyType, scheduledAt)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	if h.Audit != nil {
		actorID, _ := auth.UserID(c.Request.Context())
		actorRole, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogCallScheduled(c.Request.Context(), rec.ID, actorID, actorRole, c.ClientIP())
	}

	c.JSON(http.StatusCreated, rec)
}

// GetCall returns a call record with its full turn history.
func (h Handlers) GetCall(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	rec, err := h.Store.Get(c.Request.Context(), id)
	if errors.Is(err, schedule.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	turns, err := h.Store.Turns(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": rec, "turns": turns})
}

// ListCalls returns call records, newest scheduled first.
// Query: status (optional), limit (optional, default 100).
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	status := schedule.Status(c.Query("status"))
	switch status {
	case "", schedule.StatusPending, schedule.StatusInProgress, schedule.StatusCompleted, schedule.StatusFailed:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	records, err := h.Store.List(c.Request.Context(), status, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": records})
}

// --- Reporting ---

// SurveySummary aggregates outcomes over a time window.
// Query: from, to (RFC3339, required), survey_type (optional).
func (h Handlers) SurveySummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}

	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339"})
		return
	}

	out, err := h.Reports.SurveySummary(c.Request.Context(), reporting.SummaryRequest{
		Range:      reporting.TimeRange{From: from, To: to},
		SurveyType: c.Query("survey_type"),
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
