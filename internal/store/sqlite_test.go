package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return repo
}

func sampleSession(id string) *domain.Session {
	now := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC)
	sess := domain.NewSession(id, now)
	sess.Persona = "Confused Senior"
	sess.Confidence = domain.ConfidenceHigh
	sess.TurnCount = 2
	sess.Messages = []domain.Message{
		{Sender: domain.SenderCounterpart, Text: "pay to fraud@ybl", Timestamp: now},
		{Sender: domain.SenderAgent, Text: "what is this about?", Timestamp: now},
	}
	sess.Artifacts[domain.CategoryUPI]["fraud@ybl"] = 1
	sess.Artifacts[domain.CategoryKeyword]["urgent"] = 2
	return sess
}

func TestGetMissingSession(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	sess, err := repo.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess != nil {
		t.Fatalf("missing session returned %+v", sess)
	}
}

func TestUpsertRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	want := sampleSession("round-1")

	if err := repo.UpsertSession(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.GetSession(ctx, "round-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("session not found after upsert")
	}
	if got.Persona != want.Persona || got.Confidence != want.Confidence || got.TurnCount != want.TurnCount {
		t.Fatalf("scalar fields differ: %+v", got)
	}
	if !reflect.DeepEqual(got.Messages, want.Messages) {
		t.Fatalf("messages differ:\n%+v\n%+v", got.Messages, want.Messages)
	}
	if !reflect.DeepEqual(got.Artifacts, want.Artifacts) {
		t.Fatalf("artifacts differ:\n%+v\n%+v", got.Artifacts, want.Artifacts)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	sess := sampleSession("update-1")
	if err := repo.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	sess.TurnCount = 3
	sess.Terminal = true
	sess.FinalJSON = `{"conversationStatus":"FINISHED"}`
	if err := repo.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetSession(ctx, "update-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TurnCount != 3 || !got.Terminal {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.FinalJSON == "" {
		t.Fatal("final decision not stored")
	}

	// A later upsert without a final payload must not erase the stored one.
	sess.FinalJSON = ""
	if err := repo.UpsertSession(ctx, sess); err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	got, err = repo.GetSession(ctx, "update-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FinalJSON == "" {
		t.Fatal("stored final decision was erased by a later upsert")
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	if err := repo.UpsertSession(ctx, sampleSession("del-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.DeleteSession(ctx, "del-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := repo.GetSession(ctx, "del-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("session still present after delete")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	if err := repo.UpsertSession(ctx, sampleSession("old-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A generous TTL keeps fresh rows.
	deleted, err := repo.CleanupExpiredSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("fresh session deleted (%d rows)", deleted)
	}

	// A negative TTL puts the threshold in the future and expires all rows.
	deleted, err = repo.CleanupExpiredSessions(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d rows, want 1", deleted)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
