package memory

import (
	"context"
	"sync"

	"quiz-desk/internal/domain"
)

// HistoryStore is an append-only in-memory score log.
type HistoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []domain.ScoreRecord
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) AppendScore(_ context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	s.records = append(s.records, record)
	return record, nil
}

func (s *HistoryStore) ListScores(_ context.Context, username string) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ScoreRecord{}
	for _, r := range s.records {
		if r.Username == username {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *HistoryStore) ListAllScores(_ context.Context) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoreRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
