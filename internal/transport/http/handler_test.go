package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-desk/internal/app"
	"quiz-desk/internal/auth"
	"quiz-desk/internal/domain"
	"quiz-desk/internal/infra/memory"
)

// manualTimer never fires; tests drive the countdown through Session.Tick.
type manualTimer struct{}

func (manualTimer) Start(func()) {}
func (manualTimer) Stop()        {}

type fixture struct {
	service *app.QuizService
	auth    *auth.Manager
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	questions := memory.NewQuestionStore(sampleQuestions()...)
	service := app.NewQuizService(
		questions,
		memory.NewQuestionBank(questions, time.Minute),
		memory.NewSessionStore(),
		app.NewHistoryService(memory.NewHistoryStore()),
		app.Settings{Duration: time.Minute, QuestionCount: 5, NewTimer: func() app.Timer { return manualTimer{} }},
		nil,
	)
	authManager := auth.NewManager(memory.NewCredentialStore(), nil)

	mux := http.NewServeMux()
	NewAPIHandler(service, authManager, nil).Routes(mux)
	mux.HandleFunc("/ws", NewWSHandler(service, authManager, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &fixture{service: service, auth: authManager, server: server}
}

func (f *fixture) registerUser(t *testing.T, username, password string) {
	t.Helper()
	if err := f.auth.Register(context.Background(), username, password); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Kind:          domain.KindMultipleChoice,
			Prompt:        "What is 2 + 2?",
			Choices:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
		},
	}
}
