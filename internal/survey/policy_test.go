package survey

import (
	"context"
	"errors"
	"testing"

	"callsurvey/internal/schedule"
)

type fakeGenerator struct {
	question string
	done     bool
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateQuestion(ctx context.Context, surveyType string, history []schedule.Turn) (string, bool, error) {
	f.calls++
	return f.question, f.done, f.err
}

func answeredTurns(n int) []schedule.Turn {
	out := make([]schedule.Turn, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schedule.Turn{Index: i, Question: "q", Answer: "a"})
	}
	return out
}

func TestPolicy_PrefixIsDeterministic(t *testing.T) {
	gen := &fakeGenerator{question: "generated"}
	p := NewPolicy(Config{
		Prefixes: map[string][]string{
			"satisfaction": {"How was your experience?", "Would you recommend us?"},
		},
		MaxTurns: 5,
	}, gen)

	for i := 0; i < 3; i++ {
		if got := p.FirstQuestion("satisfaction"); got != "How was your experience?" {
			t.Fatalf("run %d: unexpected first question %q", i, got)
		}
	}

	q, done := p.Next(context.Background(), "satisfaction", answeredTurns(1))
	if done || q != "Would you recommend us?" {
		t.Fatalf("expected second prefix question, got %q done=%v", q, done)
	}
	if gen.calls != 0 {
		t.Fatalf("prefix questions must not consult the generator")
	}
}

func TestPolicy_GeneratorAfterPrefix(t *testing.T) {
	gen := &fakeGenerator{question: "Was delivery on time?"}
	p := NewPolicy(Config{
		Prefixes: map[string][]string{"satisfaction": {"How was your experience?"}},
		MaxTurns: 5,
	}, gen)

	q, done := p.Next(context.Background(), "satisfaction", answeredTurns(1))
	if done || q != "Was delivery on time?" {
		t.Fatalf("expected generated question, got %q done=%v", q, done)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls)
	}
}

func TestPolicy_SentinelEndsSurvey(t *testing.T) {
	gen := &fakeGenerator{done: true}
	p := NewPolicy(Config{MaxTurns: 5}, gen)

	if _, done := p.Next(context.Background(), "satisfaction", answeredTurns(2)); !done {
		t.Fatalf("expected sentinel to end the survey")
	}
}

func TestPolicy_MaxTurnsEndsSurvey(t *testing.T) {
	gen := &fakeGenerator{question: "more?"}
	p := NewPolicy(Config{MaxTurns: 3}, gen)

	if _, done := p.Next(context.Background(), "satisfaction", answeredTurns(3)); !done {
		t.Fatalf("expected max turns to end the survey")
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not run past the turn cap")
	}
}

func TestPolicy_DegradesOnModelError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	p := NewPolicy(Config{
		Prefixes: map[string][]string{"satisfaction": {"How was your experience?"}},
		MaxTurns: 3,
	}, gen)

	// A survey with an always-failing model still terminates: fallback
	// questions until the cap.
	answered := 1
	for {
		q, done := p.Next(context.Background(), "satisfaction", answeredTurns(answered))
		if done {
			break
		}
		if q != defaultFallbackQuestion {
			t.Fatalf("expected fallback question, got %q", q)
		}
		answered++
		if answered > 10 {
			t.Fatalf("survey did not terminate")
		}
	}
	if answered != 3 {
		t.Fatalf("expected termination at max turns 3, got %d", answered)
	}
}

func TestPolicy_UnknownSurveyTypeGetsDefaultOpening(t *testing.T) {
	p := NewPolicy(Config{MaxTurns: 3}, nil)
	if got := p.FirstQuestion("unknown"); got != defaultOpeningQuestion {
		t.Fatalf("unexpected opening question %q", got)
	}
}

func TestPolicy_OpenTurnsDoNotCountTowardCap(t *testing.T) {
	p := NewPolicy(Config{MaxTurns: 1}, nil)
	history := []schedule.Turn{{Index: 0, Question: "q"}} // asked, unanswered
	if _, done := p.Next(context.Background(), "satisfaction", history); done {
		t.Fatalf("unanswered turn must not count toward the cap")
	}
}
