package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quiz-desk/internal/app"
	"quiz-desk/internal/domain"
	"quiz-desk/internal/importer"
	"quiz-desk/internal/infra/memory"
)

func newTestService(seed ...domain.Question) *app.QuizService {
	questions := memory.NewQuestionStore(seed...)
	return app.NewQuizService(
		questions,
		memory.NewQuestionBank(questions, time.Minute),
		memory.NewSessionStore(),
		app.NewHistoryService(memory.NewHistoryStore()),
		app.Settings{Duration: 90 * time.Second, QuestionCount: 3, NewTimer: func() app.Timer { return &manualTimer{} }},
		nil,
	)
}

func TestStartQuizPicksQuestions(t *testing.T) {
	ctx := context.Background()
	service := newTestService(mixedQuestions()...)

	session, err := service.StartQuiz(ctx, " alice ", 0, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := session.Snapshot()
	if snap.Total != 3 || snap.Remaining != 90 || snap.Username != "alice" {
		t.Fatalf("expected configured defaults, got %+v", snap)
	}

	session, err = service.StartQuiz(ctx, "bob", 50, 30*time.Second)
	if err != nil {
		t.Fatalf("start bob: %v", err)
	}
	if snap := session.Snapshot(); snap.Total != 5 || snap.Remaining != 30 {
		t.Fatalf("expected whole bank and 30s, got %+v", snap)
	}

	got, err := service.Session("bob")
	if err != nil || got != session {
		t.Fatalf("expected bob's session to be registered, got %v %v", got, err)
	}
}

func TestStartQuizRequiresQuestions(t *testing.T) {
	service := newTestService()
	if _, err := service.StartQuiz(context.Background(), "alice", 0, 0); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions error, got %v", err)
	}
	if _, err := service.StartQuiz(context.Background(), "", 0, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestartClosesPreviousSession(t *testing.T) {
	ctx := context.Background()
	service := newTestService(mixedQuestions()...)

	first, err := service.StartQuiz(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := service.StartQuiz(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := first.SetAnswer("x"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected previous session closed, got %v", err)
	}

	// ending the stale session must not remove the new one
	service.EndQuiz("alice", first.ID())
	if got, err := service.Session("alice"); err != nil || got != second {
		t.Fatalf("expected second session to survive, got %v %v", got, err)
	}

	service.EndQuiz("alice", second.ID())
	if _, err := service.Session("alice"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
	if err := second.SetAnswer("x"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ended session closed, got %v", err)
	}
}

func TestAddQuestionRefreshesBank(t *testing.T) {
	ctx := context.Background()
	service := newTestService(mixedQuestions()[:1]...)

	// warm the cache
	if _, err := service.StartQuiz(ctx, "alice", 10, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	stored, err := service.AddQuestion(ctx, domain.Question{
		Kind:          domain.KindTrueFalse,
		Prompt:        " Go compiles to native code. ",
		CorrectAnswer: "true",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if stored.ID == 0 || stored.Prompt != "Go compiles to native code." || stored.CorrectAnswer != "True" {
		t.Fatalf("expected normalized stored question, got %+v", stored)
	}

	session, err := service.StartQuiz(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if total := session.Snapshot().Total; total != 2 {
		t.Fatalf("expected new question in the bank, got %d questions", total)
	}

	_, err = service.AddQuestion(ctx, domain.Question{Kind: domain.KindMultipleChoice, Prompt: "Pick", Choices: []string{"a"}, CorrectAnswer: "a"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for single choice, got %v", err)
	}
}

func TestImportQuestionsSkipsBadRows(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	body := `[
		{"type": "mc", "question": "2 + 3?", "options": ["4", "5"], "answer": "5"},
		{"type": "tf", "question": "Ice is cold", "answer": true},
		{"type": "mc", "question": "Missing answer", "options": ["a", "b"], "answer": "c"},
		{"type": "poll", "question": "Favourite colour?", "answer": "blue"},
		{"type": "fib", "question": "H2O is ____", "answer": "water"}
	]`
	result, err := service.ImportQuestions(ctx, strings.NewReader(body), importer.FormatJSON)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.TotalQuestions != 5 || result.ImportedQuestions != 3 || result.SkippedQuestions != 2 || len(result.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	questions, err := service.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(questions) != 3 || questions[1].CorrectAnswer != "True" {
		t.Fatalf("unexpected stored questions: %+v", questions)
	}
}

func TestImportQuestionsMalformedFile(t *testing.T) {
	service := newTestService()
	_, err := service.ImportQuestions(context.Background(), strings.NewReader(`{not json`), importer.FormatJSON)
	if !errors.Is(err, domain.ErrImportFormat) {
		t.Fatalf("expected import format error, got %v", err)
	}
}

func TestSessionNotFound(t *testing.T) {
	service := newTestService()
	if _, err := service.Session("ghost"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}
