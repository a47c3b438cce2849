package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-match/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches a question bank from a backing store (e.g. Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository caches whole question banks in Redis and falls back to a
// loader on cache miss, so every client process reads the same content.
// Banks are stored as: SET {prefix}bank:{bankID} <json> EX ttl
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	prefix string
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankRepository(client *redis.Client, loader BankLoader, prefix string, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		prefix: prefix,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.cached(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, bankID); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}
		if err := bank.Validate(); err != nil {
			return domain.Bank{}, fmt.Errorf("bank %s: %w", bankID, err)
		}

		raw, err := json.Marshal(bank)
		if err != nil {
			return domain.Bank{}, err
		}
		if err := r.client.Set(ctx, r.key(bankID), raw, r.ttlWithJitter()).Err(); err != nil {
			// the bank is usable even if caching failed
			log.Warn().Err(err).Str("bank_id", bankID).Msg("caching question bank failed")
		}
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (r *BankRepository) cached(ctx context.Context, bankID string) (domain.Bank, bool) {
	raw, err := r.client.Get(ctx, r.key(bankID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("bank_id", bankID).Msg("reading cached question bank failed")
		}
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, false
	}
	return bank, true
}

func (r *BankRepository) key(bankID string) string {
	return r.prefix + "bank:" + bankID
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
