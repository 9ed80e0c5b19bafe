package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callsurvey/internal/metrics"
	"callsurvey/internal/schedule"

	"github.com/tidwall/gjson"
)

// CompletionSentinel is the distinguished reply the model is instructed to
// produce when the survey should end. Anywhere in the reply counts; small
// models are unreliable about replying with the marker alone.
const CompletionSentinel = "SURVEY_COMPLETE"

const systemPromptTemplate = `You are a friendly customer-support survey assistant on a phone call.
The customer scheduled this "%s" survey.
Ask exactly ONE short, phone-friendly follow-up question at a time, based on what the customer already said.
Briefly acknowledge their previous answer before the question.
Never ask multiple questions at once and never repeat a question already asked.
When you have enough feedback, or the customer has nothing to add, reply with exactly %s and nothing else.`

// ModelError is an LLM provider failure: timeout, non-2xx status, or a
// response we cannot interpret. The question flow degrades to a fixed closing
// question instead of surfacing this to the caller.
type ModelError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Op, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Client talks to an OpenAI-compatible chat-completions endpoint (Groq).
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the transport (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

func NewClient(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// GenerateQuestion asks the model for the next survey question given the
// answered history. Returns done=true when the model signals the completion
// sentinel.
func (c *Client) GenerateQuestion(ctx context.Context, surveyType string, history []schedule.Turn) (string, bool, error) {
	start := time.Now()
	defer func() { metrics.LLMDuration.Observe(time.Since(start).Seconds()) }()

	messages := []chatMessage{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, surveyType, CompletionSentinel)},
	}
	for _, t := range history {
		messages = append(messages, chatMessage{Role: "assistant", Content: t.Question})
		if t.Answered() {
			messages = append(messages, chatMessage{Role: "user", Content: t.Answer})
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", false, &ModelError{Op: "generate_question", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, &ModelError{Op: "generate_question", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "transport").Inc()
		return "", false, &ModelError{Op: "generate_question", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		return "", false, &ModelError{Op: "generate_question", StatusCode: resp.StatusCode, Message: msg}
	}

	reply := strings.TrimSpace(gjson.GetBytes(respBody, "choices.0.message.content").String())
	if reply == "" {
		return "", false, &ModelError{Op: "generate_question", StatusCode: resp.StatusCode, Message: "empty completion"}
	}

	if strings.Contains(reply, CompletionSentinel) {
		return "", true, nil
	}
	return reply, false, nil
}
