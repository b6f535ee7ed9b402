package memory

import (
	"testing"

	"quiz-desk/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	first := app.NewSession(app.SessionOptions{Username: "alice", Questions: sampleQuestions(), DurationSeconds: 60})
	if previous := store.Replace("alice", first); previous != nil {
		t.Fatalf("expected no previous session")
	}
	if got, ok := store.Get("alice"); !ok || got != first {
		t.Fatalf("expected first session present")
	}

	second := app.NewSession(app.SessionOptions{Username: "alice", Questions: sampleQuestions(), DurationSeconds: 60})
	if previous := store.Replace("alice", second); previous != first {
		t.Fatalf("expected first session displaced")
	}

	if store.DeleteIfCurrent("alice", first.ID()) {
		t.Fatalf("stale session id must not delete current entry")
	}
	if !store.DeleteIfCurrent("alice", second.ID()) {
		t.Fatalf("expected current session deleted")
	}
	if _, ok := store.Get("alice"); ok {
		t.Fatalf("expected session removed")
	}
}

