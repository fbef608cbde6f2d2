package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestService_AppendRequiresAction(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.LogAdminAction(context.Background(), Actor{}, EventAddCredits, ResourceOfficer, "o1", "x", nil); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing actor, got %v", err)
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogAdminAction(context.Background(),
		Actor{UserID: "admin-1", Role: "admin", IP: "10.0.0.7"},
		EventDeductCredits, ResourceOfficer, "officer-9", "Deducted 5 credits",
		map[string]any{"credits": 5, "transaction_id": "tx-1"},
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.ID == "" || ev.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned: %+v", ev)
	}
	if ev.IPAddress != "10.0.0.7" || ev.ResourceID != "officer-9" || ev.Action != EventDeductCredits {
		t.Fatalf("unexpected event: %+v", ev)
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(ev.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["transaction_id"] != "tx-1" {
		t.Fatalf("unexpected metadata: %v", meta)
	}

	// Events() returns a copy.
	evs[0].Message = "tampered"
	if repo.Events()[0].Message != "Deducted 5 credits" {
		t.Fatalf("repository must not expose its backing slice")
	}
}

func TestService_DefaultsEmptyMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	if err := svc.LogAdminAction(context.Background(), Actor{UserID: "u"}, EventLogin, ResourceAdmin, "u", "login", nil); err != nil {
		t.Fatal(err)
	}
	if got := repo.Events()[0].Metadata; got != "{}" {
		t.Fatalf("expected {}, got %q", got)
	}
}
