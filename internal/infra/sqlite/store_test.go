package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quiz-desk/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "quiz.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cred := domain.Credential{Username: "alice", Salt: []byte{1, 2, 3}, Key: []byte{4, 5, 6}}
	if err := store.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateCredential(ctx, cred); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}

	got, err := store.GetCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Salt) != string(cred.Salt) || string(got.Key) != string(cred.Key) {
		t.Fatalf("unexpected credential: %+v", got)
	}
	if _, err := store.GetCredential(ctx, "bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestQuestionsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mc, err := store.AddQuestion(ctx, domain.Question{
		Kind:          domain.KindMultipleChoice,
		Prompt:        "Pick the pipe",
		Choices:       []string{"a|b", "c"},
		CorrectAnswer: "a|b",
	})
	if err != nil {
		t.Fatalf("add mc: %v", err)
	}
	if mc.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if _, err := store.AddQuestion(ctx, domain.Question{Kind: domain.KindFillBlank, Prompt: "2+2?", CorrectAnswer: "4"}); err != nil {
		t.Fatalf("add fill: %v", err)
	}

	questions, err := store.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Kind != domain.KindMultipleChoice || len(questions[0].Choices) != 2 || questions[0].Choices[0] != "a|b" {
		t.Fatalf("unexpected first question: %+v", questions[0])
	}
	if questions[1].Choices != nil {
		t.Fatalf("expected no choices for fill in the blank, got %v", questions[1].Choices)
	}
}

func TestHistoryMostRecentFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i, score := range []int{1, 2, 3} {
		rec := domain.ScoreRecord{Username: "alice", Score: score, Total: 3, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if _, err := store.AppendScore(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := store.AppendScore(ctx, domain.ScoreRecord{Username: "bob", Score: 0, Total: 3, Timestamp: base}); err != nil {
		t.Fatalf("append bob: %v", err)
	}

	records, err := store.ListScores(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Score != 3 || records[2].Score != 1 {
		t.Fatalf("expected most recent first, got %+v", records)
	}
	if !records[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %s", records[0].Timestamp)
	}

	all, err := store.ListAllScores(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.CreateCredential(ctx, domain.Credential{Username: "alice", Salt: []byte{1}, Key: []byte{2}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetCredential(ctx, "alice"); err != nil {
		t.Fatalf("expected credential after reopen: %v", err)
	}
}
