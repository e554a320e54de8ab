package session

import (
	"context"
	"testing"
	"time"

	"quizsmith-backend/internal/models"
)

func testSession(id string, expiresAt time.Time) *models.QuizSession {
	return &models.QuizSession{
		SessionID:        id,
		UserID:           AnonymousUser,
		StartTime:        time.Now().UnixMilli(),
		TimeLimitSeconds: 600,
		Topic:            "go",
		Difficulty:       models.DifficultyBeginner,
		CreatedAt:        time.Now(),
		ExpiresAt:        expiresAt,
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := testSession("s1", time.Now().Add(time.Hour))
	if err := store.Put(ctx, "s1", sess, time.Hour); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.SessionID != "s1" {
		t.Fatalf("expected stored session back, got %+v", got)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err = store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing key")
	}
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "old", testSession("old", time.Now().Add(-time.Minute)), time.Hour)

	got, err := store.Get(ctx, "old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expired session must read as not found")
	}

	// The lazy read also removed the entry.
	count, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected nothing left to sweep, got %d", count)
	}
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "live", testSession("live", time.Now().Add(time.Hour)), time.Hour)
	store.Put(ctx, "dead1", testSession("dead1", time.Now().Add(-time.Second)), time.Hour)
	store.Put(ctx, "dead2", testSession("dead2", time.Now().Add(-time.Hour)), time.Hour)

	count, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 swept, got %d", count)
	}

	if got, _ := store.Get(ctx, "live"); got == nil {
		t.Error("live session must survive the sweep")
	}
}
