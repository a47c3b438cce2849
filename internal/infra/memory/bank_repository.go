package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"trivia-match/internal/domain"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches a question bank from its backing source (file, Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository keeps validated question banks in process memory. Matches
// start in bursts (every client of a room resolves the same bank at once),
// so concurrent misses for one bank share a single load.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  clockwork.Clock
	loads  singleflight.Group

	mu    sync.RWMutex
	banks map[string]bankEntry
}

type bankEntry struct {
	bank    domain.Bank
	expires time.Time
}

func (e bankEntry) fresh(now time.Time) bool { return now.Before(e.expires) }

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return NewBankRepositoryWithClock(loader, ttl, clockwork.NewRealClock())
}

func NewBankRepositoryWithClock(loader BankLoader, ttl time.Duration, clock clockwork.Clock) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		banks:  make(map[string]bankEntry),
	}
}

// GetBank returns the bank, loading and validating it on a miss. A bank that
// fails validation is never cached.
func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.cached(bankID); ok {
		return bank, nil
	}
	v, err, _ := r.loads.Do(bankID, func() (any, error) {
		if bank, ok := r.cached(bankID); ok {
			return bank, nil
		}
		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return nil, err
		}
		if err := bank.Validate(); err != nil {
			return nil, fmt.Errorf("bank %s: %w", bankID, err)
		}
		r.mu.Lock()
		r.banks[bankID] = bankEntry{bank: bank, expires: r.clock.Now().Add(r.lifetime(bankID))}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return v.(domain.Bank), nil
}

func (r *BankRepository) cached(bankID string) (domain.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.banks[bankID]
	if !ok || !entry.fresh(r.clock.Now()) {
		return domain.Bank{}, false
	}
	return entry.bank, true
}

// lifetime stretches the TTL by up to 10%, derived from the bank id, so
// different banks do not all expire together.
func (r *BankRepository) lifetime(bankID string) time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(bankID))
	return r.ttl + time.Duration(uint64(h.Sum32())%uint64(r.ttl/10+1))
}

// StaticBanks serves fixed banks by id: tests and the built-in sample bank.
type StaticBanks map[string]domain.Bank

func NewStaticBankLoader(banks ...domain.Bank) StaticBanks {
	s := make(StaticBanks, len(banks))
	for _, b := range banks {
		s[b.ID] = b
	}
	return s
}

func (s StaticBanks) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	bank, ok := s[bankID]
	if !ok {
		return domain.Bank{}, fmt.Errorf("%w: %s", domain.ErrQuestionBankNotFound, bankID)
	}
	return bank, nil
}
