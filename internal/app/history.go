package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quiz-desk/internal/domain"
)

// HistoryRepository stores score records. Records are append-only.
type HistoryRepository interface {
	AppendScore(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error)
	ListScores(ctx context.Context, username string) ([]domain.ScoreRecord, error)
	ListAllScores(ctx context.Context) ([]domain.ScoreRecord, error)
}

// HistoryService records finished quizzes and reads them back.
type HistoryService struct {
	repo HistoryRepository
	now  func() time.Time
}

func NewHistoryService(repo HistoryRepository) *HistoryService {
	return NewHistoryServiceWithClock(repo, time.Now)
}

// NewHistoryServiceWithClock allows deterministic timestamps in tests.
func NewHistoryServiceWithClock(repo HistoryRepository, now func() time.Time) *HistoryService {
	return &HistoryService{repo: repo, now: now}
}

// RecordScore appends a new record stamped with the service clock.
func (h *HistoryService) RecordScore(ctx context.Context, username string, score, total int) (domain.ScoreRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ScoreRecord{}, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if total < 0 || score < 0 || score > total {
		return domain.ScoreRecord{}, fmt.Errorf("%w: score %d out of range for total %d", domain.ErrValidation, score, total)
	}
	return h.repo.AppendScore(ctx, domain.ScoreRecord{
		Username:  username,
		Score:     score,
		Total:     total,
		Timestamp: h.now().UTC(),
	})
}

// HistoryFor returns every record of username, most recent first.
func (h *HistoryService) HistoryFor(ctx context.Context, username string) ([]domain.ScoreRecord, error) {
	records, err := h.repo.ListScores(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.ScoreRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Rankings orders all records by percentage, then by who got there first,
// then by name. A non-positive limit returns everything.
func (h *HistoryService) Rankings(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	records, err := h.repo.ListAllScores(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.ScoreRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		pi, pj := records[i].Percentage(), records[j].Percentage()
		if pi != pj {
			return pi > pj
		}
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Username < records[j].Username
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
