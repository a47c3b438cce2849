package app_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trivia-match/internal/app"
	"trivia-match/internal/domain"
	"trivia-match/internal/infra/memory"
	"trivia-match/internal/match"

	"github.com/jonboulle/clockwork"
)

var epoch = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *memory.Store
	clock    *clockwork.FakeClock
	registry *app.Registry
	ledger   *app.Ledger
	bank     *memory.BankRepository
	devices  *memory.LocalStates
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	st := memory.NewStoreWithClock(clock)
	return &testEnv{
		store:    st,
		clock:    clock,
		registry: app.NewRegistry(st, rand.New(rand.NewSource(42))),
		ledger:   app.NewLedger(st),
		bank:     memory.NewBankRepository(memory.NewStaticBankLoader(sampleBank(5)), time.Minute),
		devices:  memory.NewLocalStates(),
	}
}

func (e *testEnv) controller(sess *app.Session, p app.Presenter) *app.Controller {
	return app.NewController(sess, app.ControllerDeps{
		Registry:  e.registry,
		Ledger:    e.ledger,
		Bank:      e.bank,
		BankID:    "default",
		Clock:     e.clock,
		Rand:      rand.New(rand.NewSource(7)),
		Presenter: p,
		Timing:    app.DefaultTiming(),
	})
}

func sampleBank(n int) domain.Bank {
	bank := domain.Bank{ID: "default"}
	for i := 1; i <= n; i++ {
		bank.Questions = append(bank.Questions, domain.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: fmt.Sprintf("Question %d?", i),
			Options: map[domain.Choice]string{
				domain.ChoiceA: "one", domain.ChoiceB: "two", domain.ChoiceC: "three", domain.ChoiceD: "four",
			},
			CorrectOption: domain.ChoiceB,
			Explanation:   "because",
		})
	}
	return bank
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// recorder is a Presenter that remembers what it was asked to show.
type recorder struct {
	mu         sync.Mutex
	states     []match.State
	questions  []int
	current    int
	warnings   map[int][]int
	answers    []domain.AnswerRecord
	explained  int
	ranking    []domain.Standing
	ranked     bool
	errs       []error
	onQuestion func(index int, q domain.Question)
}

func newRecorder() *recorder {
	return &recorder{warnings: map[int][]int{}}
}

func (r *recorder) StateChanged(_, to match.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *recorder) ShowQuestion(index, _ int, q domain.Question) {
	r.mu.Lock()
	r.questions = append(r.questions, index)
	r.current = index
	hook := r.onQuestion
	r.mu.Unlock()
	if hook != nil {
		hook(index, q)
	}
}

func (r *recorder) ShowRemaining(time.Duration) {}

func (r *recorder) PlayWarning(second int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings[r.current] = append(r.warnings[r.current], second)
}

func (r *recorder) ShowAnswer(_ domain.Question, rec domain.AnswerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, rec)
}

func (r *recorder) ShowExplanation(domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explained++
}

func (r *recorder) ShowScoreboard([]domain.Standing) {}

func (r *recorder) ShowRanking(standings []domain.Standing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranking = standings
	r.ranked = true
}

func (r *recorder) ShowError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) shownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.questions)
}

func (r *recorder) explainedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.explained
}

func (r *recorder) hasRanking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ranked
}
