package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-desk/internal/domain"
)

// QuestionLoader fetches questions from the authoritative store (SQLite, Postgres).
type QuestionLoader interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// BankKey is the hash that holds the cached question set:
// HSET quiz:bank {questionID} {question JSON}
const BankKey = "quiz:bank"

// BankGenerationKey counts invalidations. A fill is only written when the
// generation it loaded under is still current.
const BankGenerationKey = "quiz:bank:gen"

// QuestionBank caches the question set in Redis and falls back to a loader on miss.
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := b.cached(ctx); ok {
		return questions, nil
	}

	gen, err := b.generation(ctx)
	if err != nil {
		// without a generation the fill cannot be fenced; serve uncached
		return b.loader.ListQuestions(ctx)
	}

	result, err, _ := b.sf.Do(BankKey+":"+strconv.FormatInt(gen, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := b.cached(ctx); ok {
			return questions, nil
		}

		questions, err := b.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}
		if err := b.fill(ctx, gen, questions); err != nil {
			return nil, err
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// fill writes questions to the bank hash unless an invalidation happened
// since gen was read.
func (b *QuestionBank) fill(ctx context.Context, gen int64, questions []domain.Question) error {
	fields := make([]interface{}, 0, 2*len(questions))
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %d: %w", q.ID, err)
		}
		fields = append(fields, strconv.FormatInt(q.ID, 10), raw)
	}
	ttl := b.ttlWithJitter()

	// a skipped or failed cache fill only costs a reload next time
	_ = b.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generationOf(tx.Get(ctx, BankGenerationKey))
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, BankKey, fields...)
			if ttl > 0 {
				pipe.Expire(ctx, BankKey, ttl)
			}
			return nil
		})
		return err
	}, BankGenerationKey)
	return nil
}

var errStaleFill = errors.New("question bank invalidated during load")

// Invalidate removes the cached set and bumps the generation so in-flight
// fills are dropped; the next Questions call reloads it.
func (b *QuestionBank) Invalidate(ctx context.Context) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, BankGenerationKey)
		pipe.Del(ctx, BankKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate question bank: %w", err)
	}
	return nil
}

func (b *QuestionBank) generation(ctx context.Context) (int64, error) {
	gen, err := generationOf(b.client.Get(ctx, BankGenerationKey))
	if err != nil {
		return 0, fmt.Errorf("read question bank generation: %w", err)
	}
	return gen, nil
}

func generationOf(cmd *redis.StringCmd) (int64, error) {
	gen, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (b *QuestionBank) cached(ctx context.Context) ([]domain.Question, bool) {
	entries, err := b.client.HGetAll(ctx, BankKey).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(entries))
	for _, raw := range entries {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, false
		}
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
