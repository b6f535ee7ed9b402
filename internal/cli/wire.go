package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-desk/internal/app"
	"quiz-desk/internal/auth"
	"quiz-desk/internal/config"
	"quiz-desk/internal/infra/memory"
	"quiz-desk/internal/infra/postgres"
	"quiz-desk/internal/infra/postgres/migrations"
	redisinfra "quiz-desk/internal/infra/redis"
	"quiz-desk/internal/infra/sqlite"
	"quiz-desk/internal/logging"
)

// store is everything a storage driver has to provide.
type store interface {
	auth.CredentialStore
	app.QuestionRepository
	app.HistoryRepository
}

type memoryStore struct {
	*memory.CredentialStore
	*memory.QuestionStore
	*memory.HistoryStore
}

// backend holds the wired services and the resources to release on exit.
type backend struct {
	cfg     config.Config
	log     *zap.Logger
	store   store
	service *app.QuizService
	auth    *auth.Manager
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	_ = b.log.Sync()
}

func loadBackend(ctx context.Context, path string) (*backend, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	b := &backend{cfg: cfg, log: log}
	if err := b.wire(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backend) wire(ctx context.Context) error {
	st, err := b.openStore(ctx)
	if err != nil {
		return err
	}
	b.store = st

	var redisClient *redis.Client
	if b.cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     b.cfg.Redis.Addr,
			Password: b.cfg.Redis.Password,
			DB:       b.cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", b.cfg.Redis.Addr, err)
		}
	}
	redisTTL := config.TTLDuration(b.cfg.Redis.TTL, 10*time.Minute)
	bankTTL := config.TTLDuration(b.cfg.Quiz.BankTTL, 10*time.Minute)

	var bank app.QuestionBank
	var sessions app.SessionRepository
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, st, bankTTL)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		bank = memory.NewQuestionBank(st, bankTTL)
		sessions = memory.NewSessionStore()
	}

	settings := app.Settings{
		Duration:      config.TTLDuration(b.cfg.Quiz.Duration, 180*time.Second),
		QuestionCount: b.cfg.Quiz.Questions,
	}
	b.service = app.NewQuizService(st, bank, sessions, app.NewHistoryService(st), settings, b.log)
	b.auth = auth.NewManager(st, b.log)
	return nil
}

func (b *backend) openStore(ctx context.Context) (store, error) {
	switch b.cfg.Storage.Driver {
	case config.DriverMemory:
		b.log.Info("using in-memory storage; data is lost on exit")
		return memoryStore{
			CredentialStore: memory.NewCredentialStore(),
			QuestionStore:   memory.NewQuestionStore(sampleQuestions()...),
			HistoryStore:    memory.NewHistoryStore(),
		}, nil
	case config.DriverPostgres:
		if _, err := migrations.Apply(ctx, b.cfg.Postgres.URL); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, b.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.log.Info("using postgres storage")
		return postgres.NewStore(pool), nil
	default:
		st, err := sqlite.Open(ctx, b.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = st.Close() })
		b.log.Info("using sqlite storage", zap.String("path", b.cfg.SQLite.Path))
		return st, nil
	}
}
