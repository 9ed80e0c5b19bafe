package survey

import (
	"context"
	"strings"

	"callsurvey/internal/schedule"
)

// QuestionGenerator produces an adaptive follow-up question from the
// conversation so far. Implemented by the LLM client; done=true signals the
// survey should end.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, surveyType string, history []schedule.Turn) (question string, done bool, err error)
}

// Defaults used when a survey type has no configured prefix or the generator
// is unavailable. The caller always gets asked something sensible.
const (
	defaultOpeningQuestion  = "How was your recent experience with our product?"
	defaultFallbackQuestion = "Is there anything else you would like to share about your experience?"
)

// Config tunes the question flow per deployment.
type Config struct {
	// Prefixes maps survey type to its deterministic opening questions.
	// The prefix always takes precedence over generation, so the opening
	// sequence is reviewable and stable across model changes.
	Prefixes map[string][]string

	// MaxTurns is the hard cap on question/answer exchanges.
	MaxTurns int

	// FallbackQuestion is asked instead of a generated follow-up when the
	// model is unavailable. Defaults to a generic closing question.
	FallbackQuestion string
}

// Policy decides the next question for a call: deterministic table lookup for
// the fixed prefix, then generator follow-ups until the sentinel or MaxTurns.
//
// Policy never returns a generator error to the conversation; model failures
// degrade to FallbackQuestion so the survey always terminates cleanly.
type Policy struct {
	prefixes map[string][]string
	maxTurns int
	fallback string
	gen      QuestionGenerator
}

func NewPolicy(cfg Config, gen QuestionGenerator) *Policy {
	p := &Policy{
		prefixes: cfg.Prefixes,
		maxTurns: cfg.MaxTurns,
		fallback: cfg.FallbackQuestion,
		gen:      gen,
	}
	if p.maxTurns <= 0 {
		p.maxTurns = 6
	}
	if strings.TrimSpace(p.fallback) == "" {
		p.fallback = defaultFallbackQuestion
	}
	return p
}

// FirstQuestion returns the deterministic opening question for a survey type.
func (p *Policy) FirstQuestion(surveyType string) string {
	if prefix := p.prefixes[surveyType]; len(prefix) > 0 {
		return prefix[0]
	}
	return defaultOpeningQuestion
}

// Next returns the question for the upcoming turn given the answered history,
// or done=true when the survey is over.
//
// Precedence: max-turn cap, then fixed prefix, then generator. A generator
// failure yields the fallback question rather than an error.
func (p *Policy) Next(ctx context.Context, surveyType string, history []schedule.Turn) (string, bool) {
	answered := 0
	for _, t := range history {
		if t.Answered() {
			answered++
		}
	}

	if answered >= p.maxTurns {
		return "", true
	}

	if prefix := p.prefixes[surveyType]; answered < len(prefix) {
		return prefix[answered], false
	}

	if p.gen == nil {
		return p.fallback, false
	}

	q, done, err := p.gen.GenerateQuestion(ctx, surveyType, history)
	if err != nil {
		// Model unavailable: keep the survey moving with the fixed fallback.
		// The max-turn cap guarantees termination even if it fails every turn.
		return p.fallback, false
	}
	if done {
		return "", true
	}
	return q, false
}

// MaxTurns reports the configured turn cap.
func (p *Policy) MaxTurns() int { return p.maxTurns }

// DefaultPrefixes returns the stock opening scripts per survey type. The
// scripted openers keep the start of every call reviewable; the generator only
// takes over once the script is exhausted.
func DefaultPrefixes() map[string][]string {
	return map[string][]string{
		"satisfaction": {
			"How was your recent experience with our product?",
			"On a scale of one to ten, how likely are you to recommend us to a friend?",
		},
		"churn": {
			"We noticed you have not used our service recently. Is there a reason you stopped?",
			"Is there anything we could change that would bring you back?",
		},
		"onboarding": {
			"How did the setup of your new account go?",
			"Was there any step that felt confusing or unnecessary?",
		},
	}
}
