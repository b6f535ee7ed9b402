package domain

import (
	"strings"
	"time"
)

// Kind discriminates the three question variants.
type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindFillBlank      Kind = "fill_blank"
)

// ParseKind accepts the canonical kind names and the short aliases used by
// exported question files (mc, mcq, tf, truefalse, fib, fill).
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "multiple_choice", "mc", "mcq", "multiple choice":
		return KindMultipleChoice, true
	case "true_false", "tf", "truefalse", "true/false":
		return KindTrueFalse, true
	case "fill_blank", "fib", "fill", "fill in the blank":
		return KindFillBlank, true
	}
	return "", false
}

// Question is immutable once stored. Choices is only set for multiple choice.
type Question struct {
	ID            int64    `json:"id"`
	Kind          Kind     `json:"kind"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices,omitempty"`
	CorrectAnswer string   `json:"answer"`
}

// QuestionView is what a quiz taker sees: no correct answer.
type QuestionView struct {
	ID      int64    `json:"id"`
	Kind    Kind     `json:"kind"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
}

// View strips the answer. True/false questions get their two fixed choices.
func (q Question) View() QuestionView {
	choices := q.Choices
	if q.Kind == KindTrueFalse {
		choices = []string{"True", "False"}
	}
	return QuestionView{ID: q.ID, Kind: q.Kind, Prompt: q.Prompt, Choices: choices}
}

// Credential is the stored form of a registered user.
type Credential struct {
	Username string
	Salt     []byte
	Key      []byte
}

// ScoreRecord is one finished quiz.
type ScoreRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Percentage returns score/total*100, or 0 for an empty quiz.
func (r ScoreRecord) Percentage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.Total) * 100
}

// SessionState is the lifecycle state of a quiz session.
type SessionState string

const (
	StateActive    SessionState = "active"
	StateReviewing SessionState = "reviewing"
	StateSubmitted SessionState = "submitted"
	StateExpired   SessionState = "expired"
)

// AnswerFeedback is the per-question line of a graded quiz.
type AnswerFeedback struct {
	Index         int    `json:"index"`
	Prompt        string `json:"prompt"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// SessionResult is produced exactly once per session.
type SessionResult struct {
	Record   ScoreRecord      `json:"record"`
	Score    int              `json:"score"`
	Total    int              `json:"total"`
	Expired  bool             `json:"expired"`
	Feedback []AnswerFeedback `json:"feedback"`
}

// ReviewEntry lists one question in the review overlay.
type ReviewEntry struct {
	Index    int    `json:"index"`
	Prompt   string `json:"prompt"`
	Answer   string `json:"answer"`
	Answered bool   `json:"answered"`
}

// Review summarizes the answers before submission.
type Review struct {
	Entries    []ReviewEntry `json:"entries"`
	Unanswered int           `json:"unanswered"`
}

// SessionSnapshot is a point-in-time view pushed to subscribers.
type SessionSnapshot struct {
	SessionID string         `json:"sessionId"`
	Username  string         `json:"username"`
	State     SessionState   `json:"state"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	Remaining int            `json:"remaining"`
	Answered  int            `json:"answered"`
	Question  QuestionView   `json:"question"`
	Answer    string         `json:"answer"`
	Result    *SessionResult `json:"result,omitempty"`
}

// ImportResult reports a bulk question import.
type ImportResult struct {
	TotalQuestions    int      `json:"total_questions"`
	ImportedQuestions int      `json:"imported_questions"`
	SkippedQuestions  int      `json:"skipped_questions"`
	Errors            []string `json:"errors"`
}
