package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-desk/internal/domain"
	"quiz-desk/internal/importer"
	"quiz-desk/internal/metrics"
)

// QuestionRepository is the authoritative question store.
type QuestionRepository interface {
	AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank serves the question set for new quizzes, usually from a cache
// in front of a QuestionRepository.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Invalidate(ctx context.Context) error
}

// SessionRepository tracks the running session of each user (in-memory, Redis, etc).
type SessionRepository interface {
	// Replace installs session for username and returns the one it displaced.
	Replace(username string, session *Session) *Session
	Get(username string) (*Session, bool)
	// DeleteIfCurrent removes the entry only if it still holds sessionID.
	DeleteIfCurrent(username, sessionID string) bool
}

// Settings holds quiz defaults.
type Settings struct {
	Duration      time.Duration
	QuestionCount int
	// NewTimer builds the per-session countdown clock. Nil means one tick per second.
	NewTimer func() Timer
}

// QuizService contains the quiz use cases.
type QuizService struct {
	questions QuestionRepository
	bank      QuestionBank
	sessions  SessionRepository
	history   *HistoryService
	settings  Settings
	log       *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizService(questions QuestionRepository, bank QuestionBank, sessions SessionRepository, history *HistoryService, settings Settings, log *zap.Logger) *QuizService {
	if settings.Duration <= 0 {
		settings.Duration = 180 * time.Second
	}
	if settings.QuestionCount <= 0 {
		settings.QuestionCount = 10
	}
	if settings.NewTimer == nil {
		settings.NewTimer = NewSecondTimer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		questions: questions,
		bank:      bank,
		sessions:  sessions,
		history:   history,
		settings:  settings,
		log:       log,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartQuiz draws count random questions and starts a countdown of duration.
// Zero values fall back to the configured defaults. Any session the user
// already had is torn down first.
func (s *QuizService) StartQuiz(ctx context.Context, username string, count int, duration time.Duration) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if count <= 0 {
		count = s.settings.QuestionCount
	}
	if duration <= 0 {
		duration = s.settings.Duration
	}

	bank, err := s.bank.Questions(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrNoQuestions
	}

	session := NewSession(SessionOptions{
		Username:        username,
		Questions:       s.pick(bank, count),
		DurationSeconds: int(duration / time.Second),
		Recorder:        s.history,
		Timer:           s.settings.NewTimer(),
		Logger:          s.log,
	})
	if previous := s.sessions.Replace(username, session); previous != nil {
		previous.Close()
	}
	session.Start(ctx)
	metrics.SessionsStarted.Inc()

	s.log.Info("quiz started",
		zap.String("session", session.ID()),
		zap.String("username", username),
		zap.Int("questions", len(session.questions)),
		zap.Duration("duration", duration),
	)
	return session, nil
}

func (s *QuizService) pick(bank []domain.Question, count int) []domain.Question {
	shuffled := make([]domain.Question, len(bank))
	copy(shuffled, bank)

	s.rndMu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	s.rndMu.Unlock()

	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}

// Session returns the user's running session.
func (s *QuizService) Session(username string) (*Session, error) {
	session, ok := s.sessions.Get(strings.TrimSpace(username))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// EndQuiz tears down the session if it is still the user's current one.
func (s *QuizService) EndQuiz(username, sessionID string) {
	session, ok := s.sessions.Get(username)
	if !ok || session.ID() != sessionID {
		return
	}
	session.Close()
	s.sessions.DeleteIfCurrent(username, sessionID)
}

// AddQuestion validates and stores an authored question.
func (s *QuizService) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	q, err := domain.ValidateQuestion(q)
	if err != nil {
		return domain.Question{}, err
	}
	stored, err := s.questions.AddQuestion(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.bank.Invalidate(ctx); err != nil {
		s.log.Warn("question bank invalidation failed", zap.Error(err))
	}
	return stored, nil
}

// ListQuestions returns every stored question.
func (s *QuizService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.questions.ListQuestions(ctx)
}

// ImportQuestions adds every valid question in r. Invalid rows are skipped
// and reported; a storage failure stops the import but keeps what was
// already inserted.
func (s *QuizService) ImportQuestions(ctx context.Context, r io.Reader, format importer.Format) (domain.ImportResult, error) {
	result := domain.ImportResult{Errors: []string{}}
	rows, err := importer.Parse(r, format)
	result.TotalQuestions = len(rows)
	defer func() {
		metrics.QuestionsImported.WithLabelValues(string(format)).Add(float64(result.ImportedQuestions))
	}()

	for _, row := range rows {
		if row.Err != nil {
			result.SkippedQuestions++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Line, row.Err))
			continue
		}
		if _, addErr := s.AddQuestion(ctx, row.Question); addErr != nil {
			if errors.Is(addErr, domain.ErrValidation) {
				result.SkippedQuestions++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Line, addErr))
				continue
			}
			return result, addErr
		}
		result.ImportedQuestions++
	}
	if err != nil {
		return result, err
	}

	s.log.Info("questions imported",
		zap.String("format", string(format)),
		zap.Int("imported", result.ImportedQuestions),
		zap.Int("skipped", result.SkippedQuestions),
	)
	return result, nil
}

// History exposes the score history use cases.
func (s *QuizService) History() *HistoryService {
	return s.history
}
