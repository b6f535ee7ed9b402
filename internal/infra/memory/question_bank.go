package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-desk/internal/domain"
)

// QuestionLoader fetches the question set from a backing store.
type QuestionLoader interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the question set with a TTL to avoid repeated store hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu     sync.RWMutex
	cached *cachedBank
	// generation counts invalidations; a load started under an older
	// generation is not cached.
	generation uint64
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

const bankKey = "bank"

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := b.fresh(b.clock()); ok {
		return questions, nil
	}

	b.mu.RLock()
	gen := b.generation
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(bankKey+":"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		now := b.clock()
		if questions, ok := b.fresh(now); ok {
			return questions, nil
		}

		questions, err := b.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		if b.generation == gen {
			b.cached = &cachedBank{
				questions: questions,
				expiresAt: now.Add(b.ttlWithJitter()),
			}
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached set so the next read reloads it.
func (b *QuestionBank) Invalidate(_ context.Context) error {
	b.mu.Lock()
	b.cached = nil
	b.generation++
	b.mu.Unlock()
	return nil
}

func (b *QuestionBank) fresh(now time.Time) ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cached != nil && b.cached.expiresAt.After(now) {
		return b.cached.questions, true
	}
	return nil, false
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
