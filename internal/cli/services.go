package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"trivia-match/internal/app"
	"trivia-match/internal/config"
	"trivia-match/internal/infra/file"
	"trivia-match/internal/infra/memory"
	pgbank "trivia-match/internal/infra/postgres"
	redisstore "trivia-match/internal/infra/redis"
	"trivia-match/internal/store"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// services is everything a command needs to talk to rooms.
type services struct {
	store    store.Store
	registry *app.Registry
	ledger   *app.Ledger
	bank     app.QuestionBank
	bankID   string
	timing   app.Timing
	clock    clockwork.Clock
	count    int
	closers  []func()
}

func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	svc := &services{
		clock:  clockwork.NewRealClock(),
		bankID: cfg.Bank.ID,
		count:  cfg.QuestionCount(10),
	}
	if svc.bankID == "" {
		svc.bankID = file.DefaultBankID
	}
	def := app.DefaultTiming()
	svc.timing = app.Timing{
		TimePerQuestion:  config.TTLDuration(cfg.Match.TimePerQuestion, def.TimePerQuestion),
		ExplanationDelay: config.TTLDuration(cfg.Match.ExplanationDelay, def.ExplanationDelay),
		TickInterval:     config.TTLDuration(cfg.Match.TickInterval, def.TickInterval),
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			svc.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	var loader memory.BankLoader
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)
		loader = pgbank.NewBankLoader(pool)
	case cfg.Bank.Path != "":
		loader = file.NewBankLoader(cfg.Bank.Path)
	default:
		loader = memory.NewStaticBankLoader(sampleBank())
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	if redisClient != nil {
		docTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		svc.store = store.NewRetrying(redisstore.NewStore(redisClient, cfg.Redis.Prefix, docTTL), store.DefaultRetryPolicy())
		svc.bank = redisstore.NewBankRepository(redisClient, loader, cfg.Redis.Prefix, bankTTL)
	} else {
		log.Warn().Msg("no redis configured, rooms live in this process only")
		svc.store = memory.NewStore()
		svc.bank = memory.NewBankRepository(loader, bankTTL)
	}

	svc.registry = app.NewRegistry(svc.store, rand.New(rand.NewSource(time.Now().UnixNano())))
	svc.ledger = app.NewLedger(svc.store)
	return svc, nil
}

func (s *services) controllerDeps(p app.Presenter) app.ControllerDeps {
	return app.ControllerDeps{
		Registry:  s.registry,
		Ledger:    s.ledger,
		Bank:      s.bank,
		BankID:    s.bankID,
		Clock:     s.clock,
		Presenter: p,
		Timing:    s.timing,
	}
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
