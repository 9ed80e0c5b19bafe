package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTypeAndSubject(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CallID: "c1"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeCallFailed}); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCallDispatched(context.Background(), "c1", "CA123"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogSurveyCompleted(context.Background(), "c1", "CA123", 4); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeCallDispatched || evs[0].ProviderCallID != "CA123" {
		t.Fatalf("unexpected dispatch event: %+v", evs[0])
	}
	if evs[1].Type != EventTypeSurveyCompleted || evs[1].Metadata != `{"turns":4}` {
		t.Fatalf("unexpected completion event: %+v", evs[1])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestService_LogCallScheduledCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCallScheduled(context.Background(), "c1", "u1", "operator", "1.2.3.4"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].ActorUserID != "u1" || evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected actor captured, got %+v", evs)
	}
}
