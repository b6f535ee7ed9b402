package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"quiz-desk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	salt          BLOB NOT NULL,
	password_hash BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS questions (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	kind    TEXT NOT NULL,
	prompt  TEXT NOT NULL,
	choices TEXT NOT NULL DEFAULT '[]',
	answer  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	username    TEXT NOT NULL,
	score       INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	taken_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS history_username_idx ON history (username, taken_at);
`

// Store is the single-file local backend: credentials, questions and score
// history all live in one SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and makes
// sure the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.PersistenceError("create database dir", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, domain.PersistenceError("open sqlite", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, domain.PersistenceError("create schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateCredential(ctx context.Context, cred domain.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, salt, password_hash) VALUES (?, ?, ?)`,
		cred.Username, cred.Salt, cred.Key)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.ErrDuplicateUsername
		}
		return domain.PersistenceError("insert user", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, username string) (domain.Credential, error) {
	cred := domain.Credential{Username: username}
	err := s.db.QueryRowContext(ctx,
		`SELECT salt, password_hash FROM users WHERE username = ?`, username).
		Scan(&cred.Salt, &cred.Key)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Credential{}, domain.PersistenceError("select user", err)
	}
	return cred, nil
}

func (s *Store) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	choices, err := encodeChoices(q.Choices)
	if err != nil {
		return domain.Question{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (kind, prompt, choices, answer) VALUES (?, ?, ?, ?)`,
		string(q.Kind), q.Prompt, choices, q.CorrectAnswer)
	if err != nil {
		return domain.Question{}, domain.PersistenceError("insert question", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Question{}, domain.PersistenceError("question id", err)
	}
	q.ID = id
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, prompt, choices, answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, domain.PersistenceError("select questions", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var (
			q       domain.Question
			kind    string
			choices string
		)
		if err := rows.Scan(&q.ID, &kind, &q.Prompt, &choices, &q.CorrectAnswer); err != nil {
			return nil, domain.PersistenceError("scan question", err)
		}
		q.Kind = domain.Kind(kind)
		if q.Choices, err = decodeChoices(choices); err != nil {
			return nil, domain.PersistenceError(fmt.Sprintf("decode choices of question %d", q.ID), err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate questions", err)
	}
	return questions, nil
}

func (s *Store) AppendScore(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (username, score, total, taken_at) VALUES (?, ?, ?, ?)`,
		rec.Username, rec.Score, rec.Total, rec.Timestamp.UTC())
	if err != nil {
		return domain.ScoreRecord{}, domain.PersistenceError("insert score", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ScoreRecord{}, domain.PersistenceError("score id", err)
	}
	rec.ID = id
	return rec, nil
}

func (s *Store) ListScores(ctx context.Context, username string) ([]domain.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, username, score, total, taken_at FROM history WHERE username = ? ORDER BY taken_at DESC, id DESC`,
		username)
}

func (s *Store) ListAllScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, username, score, total, taken_at FROM history ORDER BY taken_at DESC, id DESC`)
}

func (s *Store) queryScores(ctx context.Context, query string, args ...any) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("select history", err)
	}
	defer rows.Close()

	records := []domain.ScoreRecord{}
	for rows.Next() {
		var (
			rec domain.ScoreRecord
			at  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Score, &rec.Total, &at); err != nil {
			return nil, domain.PersistenceError("scan score", err)
		}
		rec.Timestamp = at.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate history", err)
	}
	return records, nil
}

func encodeChoices(choices []string) (string, error) {
	if len(choices) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(choices)
	if err != nil {
		return "", fmt.Errorf("encode choices: %w", err)
	}
	return string(raw), nil
}

func decodeChoices(raw string) ([]string, error) {
	var choices []string
	if err := json.Unmarshal([]byte(raw), &choices); err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return nil, nil
	}
	return choices, nil
}
