package redis

import (
	"context"
	"testing"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(sampleBank())}
	repo := NewBankRepository(newClient(mr), loader, "trivia:", time.Minute)

	bank, err := repo.GetBank(context.Background(), "default")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("trivia:bank:default") {
		t.Fatalf("expected bank cached in redis")
	}

	// A second repository (another process) hits the shared cache.
	other := NewBankRepository(newClient(mr), loader, "trivia:", time.Minute)
	cached, err := other.GetBank(context.Background(), "default")
	if err != nil {
		t.Fatalf("get cached bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[0].Prompt != bank.Questions[0].Prompt || cached.Questions[0].CorrectOption != domain.ChoiceB {
		t.Fatalf("expected full question content from cache, got %+v", cached.Questions[0])
	}
}

type countingLoader struct {
	memory.BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.Bank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.Bank {
	return domain.Bank{
		ID: "default",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "What is 2 + 2?",
				Options: map[domain.Choice]string{
					domain.ChoiceA: "3", domain.ChoiceB: "4", domain.ChoiceC: "5", domain.ChoiceD: "22",
				},
				CorrectOption: domain.ChoiceB,
				Explanation:   "Basic arithmetic.",
			},
		},
	}
}
