package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-desk/internal/domain"
)

const uniqueViolation = "23505"

// Store keeps credentials, questions and score history in Postgres.
// The schema comes from the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateCredential(ctx context.Context, cred domain.Credential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, salt, password_hash) VALUES ($1, $2, $3)`,
		cred.Username, cred.Salt, cred.Key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateUsername
		}
		return domain.PersistenceError("insert user", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, username string) (domain.Credential, error) {
	cred := domain.Credential{Username: username}
	err := s.pool.QueryRow(ctx,
		`SELECT salt, password_hash FROM users WHERE username = $1`, username).
		Scan(&cred.Salt, &cred.Key)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Credential{}, domain.PersistenceError("select user", err)
	}
	return cred, nil
}

func (s *Store) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	choices := q.Choices
	if choices == nil {
		choices = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (kind, prompt, choices, answer) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(q.Kind), q.Prompt, choices, q.CorrectAnswer).Scan(&q.ID)
	if err != nil {
		return domain.Question{}, domain.PersistenceError("insert question", err)
	}
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, prompt, choices, answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, domain.PersistenceError("select questions", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var (
			q    domain.Question
			kind string
		)
		if err := rows.Scan(&q.ID, &kind, &q.Prompt, &q.Choices, &q.CorrectAnswer); err != nil {
			return nil, domain.PersistenceError("scan question", err)
		}
		q.Kind = domain.Kind(kind)
		if len(q.Choices) == 0 {
			q.Choices = nil
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate questions", err)
	}
	return questions, nil
}

func (s *Store) AppendScore(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO history (username, score, total, taken_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.Username, rec.Score, rec.Total, rec.Timestamp.UTC()).Scan(&rec.ID)
	if err != nil {
		return domain.ScoreRecord{}, domain.PersistenceError("insert score", err)
	}
	return rec, nil
}

func (s *Store) ListScores(ctx context.Context, username string) ([]domain.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, username, score, total, taken_at FROM history WHERE username = $1 ORDER BY taken_at DESC, id DESC`,
		username)
}

func (s *Store) ListAllScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, username, score, total, taken_at FROM history ORDER BY taken_at DESC, id DESC`)
}

func (s *Store) queryScores(ctx context.Context, query string, args ...interface{}) ([]domain.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("select history", err)
	}
	defer rows.Close()

	records := []domain.ScoreRecord{}
	for rows.Next() {
		var rec domain.ScoreRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Score, &rec.Total, &rec.Timestamp); err != nil {
			return nil, domain.PersistenceError("scan score", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate history", err)
	}
	return records, nil
}
