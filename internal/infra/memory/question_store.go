package memory

import (
	"context"
	"sync"

	"quiz-desk/internal/domain"
)

// QuestionStore keeps questions in insertion order (useful for tests/demos).
type QuestionStore struct {
	mu        sync.RWMutex
	nextID    int64
	questions []domain.Question
}

func NewQuestionStore(seed ...domain.Question) *QuestionStore {
	s := &QuestionStore{}
	for _, q := range seed {
		_, _ = s.AddQuestion(context.Background(), q)
	}
	return s
}

func (s *QuestionStore) AddQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	q.Choices = append([]string(nil), q.Choices...)
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *QuestionStore) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out, nil
}
