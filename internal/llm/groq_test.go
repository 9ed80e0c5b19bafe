package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callsurvey/internal/schedule"
)

func TestClient_GenerateQuestion(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		if r.Header.Get("Authorization") != "Bearer gsk_test" {
			t.Fatalf("expected bearer auth")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Thanks! Was delivery on time?"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("gsk_test", srv.URL, "llama-3.1-8b-instant", 120, time.Second)
	history := []schedule.Turn{
		{Question: "How was your experience?", Answer: "Good"},
	}
	q, done, err := c.GenerateQuestion(context.Background(), "satisfaction", history)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if done {
		t.Fatalf("expected survey to continue")
	}
	if q != "Thanks! Was delivery on time?" {
		t.Fatalf("unexpected question %q", q)
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.Model != "llama-3.1-8b-instant" {
		t.Fatalf("unexpected model %q", req.Model)
	}
	// system + assistant question + user answer
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(req.Messages))
	}
	if req.Messages[1].Role != "assistant" || req.Messages[2].Role != "user" {
		t.Fatalf("unexpected roles %q %q", req.Messages[1].Role, req.Messages[2].Role)
	}
}

func TestClient_GenerateQuestion_Sentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SURVEY_COMPLETE"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 0, time.Second)
	_, done, err := c.GenerateQuestion(context.Background(), "satisfaction", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !done {
		t.Fatalf("expected completion sentinel to end the survey")
	}
}

func TestClient_GenerateQuestion_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 0, time.Second)
	_, _, err := c.GenerateQuestion(context.Background(), "satisfaction", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	merr, ok := err.(*ModelError)
	if !ok {
		t.Fatalf("expected *ModelError, got %T", err)
	}
	if merr.StatusCode != http.StatusTooManyRequests || merr.Message != "rate limit" {
		t.Fatalf("unexpected model error: %v", merr)
	}
}

func TestClient_GenerateQuestion_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 0, time.Second)
	if _, _, err := c.GenerateQuestion(context.Background(), "satisfaction", nil); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}
