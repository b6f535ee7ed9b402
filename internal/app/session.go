package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-desk/internal/domain"
	"quiz-desk/internal/metrics"
)

// ScoreRecorder persists the score of a finished session.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, username string, score, total int) (domain.ScoreRecord, error)
}

// SessionOptions configures NewSession. A nil Timer means the session only
// advances its countdown through explicit Tick calls.
type SessionOptions struct {
	ID              string
	Username        string
	Questions       []domain.Question
	DurationSeconds int
	Recorder        ScoreRecorder
	Timer           Timer
	Logger          *zap.Logger
	Now             func() time.Time
}

// Session is one user's timed quiz. All transitions happen under mu so the
// timer goroutine and the user's actions never interleave.
type Session struct {
	id        string
	username  string
	questions []domain.Question
	createdAt time.Time
	recorder  ScoreRecorder
	timer     Timer
	log       *zap.Logger

	mu          sync.RWMutex
	state       domain.SessionState
	index       int
	answers     map[int]string
	remaining   int
	result      *domain.SessionResult
	closed      bool
	subscribers map[chan domain.SessionSnapshot]struct{}
}

func NewSession(opts SessionOptions) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Timer == nil {
		opts.Timer = noopTimer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	remaining := opts.DurationSeconds
	if remaining < 0 {
		remaining = 0
	}
	questions := make([]domain.Question, len(opts.Questions))
	copy(questions, opts.Questions)

	return &Session{
		id:          opts.ID,
		username:    opts.Username,
		questions:   questions,
		createdAt:   opts.Now(),
		recorder:    opts.Recorder,
		timer:       opts.Timer,
		log:         opts.Logger,
		state:       domain.StateActive,
		answers:     make(map[int]string),
		remaining:   remaining,
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Username() string { return s.username }

// Start begins the countdown. Ticks use a context detached from ctx's
// cancellation so an expiry can still be persisted.
func (s *Session) Start(ctx context.Context) {
	tickCtx := context.WithoutCancel(ctx)
	s.timer.Start(func() {
		if err := s.Tick(tickCtx); err != nil {
			s.log.Error("auto-submit failed", zap.String("session", s.id), zap.Error(err))
		}
	})
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Remaining returns the countdown in seconds.
func (s *Session) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining
}

// SetAnswer stores the trimmed answer for the current question.
func (s *Session) SetAnswer(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.answers[s.index] = strings.TrimSpace(text)
	s.broadcastLocked()
	return nil
}

// Advance moves to the next question; it is a no-op on the last one.
func (s *Session) Advance() error {
	return s.move(1)
}

// Retreat moves to the previous question; it is a no-op on the first one.
func (s *Session) Retreat() error {
	return s.move(-1)
}

func (s *Session) move(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	next := s.index + delta
	if next < 0 || next > len(s.questions)-1 {
		return nil
	}
	s.index = next
	s.broadcastLocked()
	return nil
}

// Review enters the read-only review overlay and summarizes the answers.
func (s *Session) Review() (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Review{}, domain.ErrSessionClosed
	}
	if s.state != domain.StateActive && s.state != domain.StateReviewing {
		return domain.Review{}, domain.ErrSessionNotActive
	}
	s.state = domain.StateReviewing

	review := domain.Review{Entries: make([]domain.ReviewEntry, 0, len(s.questions))}
	for i, q := range s.questions {
		answer := s.answers[i]
		answered := answer != ""
		if !answered {
			review.Unanswered++
		}
		review.Entries = append(review.Entries, domain.ReviewEntry{
			Index:    i,
			Prompt:   q.Prompt,
			Answer:   answer,
			Answered: answered,
		})
	}
	s.broadcastLocked()
	return review, nil
}

// Resume leaves the review overlay.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	switch s.state {
	case domain.StateActive:
		return nil
	case domain.StateReviewing:
		s.state = domain.StateActive
		s.broadcastLocked()
		return nil
	default:
		return domain.ErrSessionNotActive
	}
}

// Tick counts down one second. The countdown keeps running during review.
// Reaching zero expires the session and submits it as-is.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.state != domain.StateActive && s.state != domain.StateReviewing) {
		return nil
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		_, err := s.submitLocked(ctx, true)
		return err
	}
	s.broadcastLocked()
	return nil
}

// Submit grades the session and records the score. Calling it again after
// submission returns the first result without recording anything.
func (s *Session) Submit(ctx context.Context) (domain.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, false)
}

// Result returns the graded result once the session is submitted.
func (s *Session) Result() (domain.SessionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return domain.SessionResult{}, false
	}
	return *s.result, true
}

func (s *Session) submitLocked(ctx context.Context, expired bool) (domain.SessionResult, error) {
	if s.result != nil {
		return *s.result, nil
	}
	if s.closed {
		return domain.SessionResult{}, domain.ErrSessionClosed
	}
	if s.state != domain.StateActive && s.state != domain.StateReviewing {
		return domain.SessionResult{}, domain.ErrSessionNotActive
	}

	s.timer.Stop()
	reason := "submitted"
	if expired {
		s.state = domain.StateExpired
		s.remaining = 0
		reason = "expired"
	}

	result := s.gradeLocked()
	result.Expired = expired
	s.state = domain.StateSubmitted
	s.result = &result
	metrics.SessionsFinished.WithLabelValues(reason).Inc()

	var err error
	if s.recorder != nil {
		var record domain.ScoreRecord
		record, err = s.recorder.RecordScore(ctx, s.username, result.Score, result.Total)
		if err == nil {
			s.result.Record = record
		}
	}
	s.log.Info("quiz submitted",
		zap.String("session", s.id),
		zap.String("username", s.username),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
		zap.Bool("expired", expired),
	)
	s.broadcastLocked()
	return *s.result, err
}

func (s *Session) gradeLocked() domain.SessionResult {
	result := domain.SessionResult{
		Total:    len(s.questions),
		Feedback: make([]domain.AnswerFeedback, 0, len(s.questions)),
	}
	for i, q := range s.questions {
		answer := s.answers[i]
		correct := domain.IsCorrect(q, answer)
		if correct {
			result.Score++
		}
		result.Feedback = append(result.Feedback, domain.AnswerFeedback{
			Index:         i,
			Prompt:        q.Prompt,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
		})
	}
	return result
}

// Close tears the session down without grading it. The timer is stopped
// and subscribers are released; later ticks are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.timer.Stop()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) mutableLocked() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.state != domain.StateActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop the oldest snapshot, only the latest matters.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	answered := 0
	for _, a := range s.answers {
		if a != "" {
			answered++
		}
	}
	snap := domain.SessionSnapshot{
		SessionID: s.id,
		Username:  s.username,
		State:     s.state,
		Index:     s.index,
		Total:     len(s.questions),
		Remaining: s.remaining,
		Answered:  answered,
		Answer:    s.answers[s.index],
	}
	if len(s.questions) > 0 {
		snap.Question = s.questions[s.index].View()
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	return snap
}
