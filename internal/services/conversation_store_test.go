package services

import (
	"context"
	"testing"

	"github.com/aulagpt/aulagpt-backend/internal/repos"
)

func TestConversationStoreCreatesOncePerUserCourse(t *testing.T) {
	db := newTestDB(t)
	log := testLogger(t)
	repo := repos.NewConversationRepo(db, log)
	ai := newFakeAI()
	store := NewConversationStore(db, log, repo, ai)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "u1", "c1", "asst_a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ThreadID == "" {
		t.Fatal("conversation has no thread id")
	}

	// A different assistant still reuses the same conversation thread.
	second, err := store.GetOrCreate(ctx, "u1", "c1", "asst_b")
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if second.ThreadID != first.ThreadID {
		t.Fatalf("thread changed on reuse: %q vs %q", second.ThreadID, first.ThreadID)
	}

	count, err := repo.CountByUserCourse(ctx, nil, "u1", "c1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("conversation rows = %d, want 1", count)
	}
	if ai.threadSeq != 1 {
		t.Fatalf("remote threads created = %d, want 1", ai.threadSeq)
	}
}

func TestConversationStoreSeparatesCourses(t *testing.T) {
	db := newTestDB(t)
	log := testLogger(t)
	repo := repos.NewConversationRepo(db, log)
	store := NewConversationStore(db, log, repo, newFakeAI())
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "u1", "c1", "asst_a")
	if err != nil {
		t.Fatalf("course c1: %v", err)
	}
	b, err := store.GetOrCreate(ctx, "u1", "c2", "asst_a")
	if err != nil {
		t.Fatalf("course c2: %v", err)
	}
	if a.ThreadID == b.ThreadID {
		t.Fatal("courses share a conversation thread")
	}
}
