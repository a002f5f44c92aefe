package redis

import (
	"context"
	"testing"
	"time"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/domain"
	"assessment-session-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionRegistryMarksLiveAttempts(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	registry := NewSessionRegistry(newClient(mr), time.Hour, "node-a")
	session := app.NewSession(app.Started{
		Attempt:    domain.Attempt{ID: "a1", AssessmentID: "go-basics", ParticipantID: "p1", TotalItems: 2},
		Assessment: domain.Assessment{ID: "go-basics", DurationMinutes: 10},
		Items:      sampleItems(),
	}, app.SessionConfig{})

	registry.Put(session)
	if got, ok := registry.Get("a1"); !ok || got != session {
		t.Fatalf("expected local session")
	}
	live, err := registry.Live(context.Background(), "a1")
	if err != nil || !live {
		t.Fatalf("expected live marker, got %v, %v", live, err)
	}
	if mr.HGet("attempt:session:a1", "participant") != "p1" || mr.HGet("attempt:session:a1", "instance") != "node-a" {
		t.Fatalf("unexpected marker fields")
	}
	if ttl := mr.TTL("attempt:session:a1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}

	registry.Delete("a1")
	if _, ok := registry.Get("a1"); ok {
		t.Fatalf("session still registered")
	}
	if live, _ := registry.Live(context.Background(), "a1"); live {
		t.Fatalf("marker not removed")
	}
}

func TestOverviewSeesAttemptsLiveOnAnotherInstance(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	catalog := memory.NewCatalog(
		[]domain.Assessment{{ID: "go-basics", Title: "Go basics", DurationMinutes: 10}},
		sampleItems(),
	)
	attempts, responses := memory.NewAttemptStore(), memory.NewResponseStore()
	newService := func(instance string) *app.AttemptService {
		registry := NewSessionRegistry(newClient(mr), time.Hour, instance)
		return app.NewAttemptService(catalog, catalog, attempts, responses, registry, app.Options{TickInterval: time.Hour})
	}
	nodeA, nodeB := newService("node-a"), newService("node-b")

	learner := domain.Viewer{ID: "p1", Role: domain.RoleParticipant}
	view, err := nodeA.Start(ctx, learner, "go-basics")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	author := domain.Viewer{ID: "author-1", Role: domain.RoleAuthority}
	overview, err := nodeB.AuthorityOverview(ctx, author, "go-basics")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.Attempts) != 1 || !overview.Attempts[0].Live {
		t.Fatalf("expected the attempt running on node-a to be live, got %+v", overview.Attempts)
	}

	if _, err := nodeA.Submit(ctx, learner, view.AttemptID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	overview, err = nodeB.AuthorityOverview(ctx, author, "go-basics")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if row := overview.Attempts[0]; !row.Completed || row.Live {
		t.Fatalf("expected a completed row, got %+v", row)
	}
}
