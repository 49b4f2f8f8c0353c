package feedback

import (
	"context"
	"testing"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/internal/calls"
)

func seededRepos(t *testing.T) (*calls.MemoryRepo, *MemoryRepo) {
	t.Helper()
	callRepo := calls.NewMemoryRepo()
	_, err := callRepo.Create(context.Background(), calls.Call{
		ID:             "call-1",
		ConversationID: "conv-1",
		AgentID:        "agent-1",
		StartTime:      time.Unix(1700000000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}
	return callRepo, NewMemoryRepo(callRepo)
}

func TestCreate_ValidatesRating(t *testing.T) {
	_, repo := seededRepos(t)
	svc := NewService(repo)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), "call-1", CreateInput{Rating: rating})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error for rating %d, got %v", rating, err)
		}
	}
	if len(repo.Rows) != 0 {
		t.Fatalf("invalid ratings must not write rows")
	}
}

func TestCreate_AcceptsBoundaryRatings(t *testing.T) {
	_, repo := seededRepos(t)
	svc := NewService(repo)

	for _, rating := range []int{1, 5} {
		fb, err := svc.Create(context.Background(), "call-1", CreateInput{Rating: rating})
		if err != nil {
			t.Fatalf("unexpected err for rating %d: %v", rating, err)
		}
		if fb.ID == "" || fb.CallID != "call-1" {
			t.Fatalf("unexpected feedback: %+v", fb)
		}
	}
}

func TestCreate_UnknownCallIsNotFound(t *testing.T) {
	_, repo := seededRepos(t)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "missing", CreateInput{Rating: 3})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestDelete_ReportsNotFound(t *testing.T) {
	_, repo := seededRepos(t)
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}

	fb, err := svc.Create(context.Background(), "call-1", CreateInput{Rating: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), fb.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.Rows) != 0 {
		t.Fatalf("expected row removed")
	}
}
