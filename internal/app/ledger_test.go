package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trivia-match/internal/domain"
)

func newRoomWithPlayers(t *testing.T, env *testEnv, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	room, err := env.registry.Create(ctx, "host-1", domain.Settings{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, id := range ids {
		if _, err := env.registry.AddPlayer(ctx, room.ID, id, "Player "+id, "Unit"); err != nil {
			t.Fatalf("add %s failed: %v", id, err)
		}
	}
	return room.ID
}

func TestRegisterAnswerScoring(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := newRoomWithPlayers(t, env, "p1")

	rec, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q1", domain.ChoiceB, domain.ChoiceB, 1500600*time.Microsecond)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !rec.Correct || rec.TimeMs != 1501 {
		t.Fatalf("expected correct answer in 1501ms, got %+v", rec)
	}

	if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q2", domain.ChoiceA, domain.ChoiceB, 2*time.Second); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q3", domain.ChoiceNone, domain.ChoiceB, 15*time.Second); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	p, _ := env.registry.GetPlayer(ctx, roomID, "p1")
	if p.Score != 10 || p.TotalResponseTimeMs != 1501 {
		t.Fatalf("expected 10 points and 1501ms, got %d/%d", p.Score, p.TotalResponseTimeMs)
	}
	if got := p.Answers["q3"]; got.Choice != domain.ChoiceNone || got.Correct || got.TimeMs != 15000 {
		t.Fatalf("timeout should be recorded as unanswered, got %+v", got)
	}
	if p.AnsweredCount() != 3 || p.CorrectCount() != 1 {
		t.Fatalf("unexpected counts %d/%d", p.AnsweredCount(), p.CorrectCount())
	}
}

func TestRegisterAnswerTwiceKeepsTotalsConsistent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := newRoomWithPlayers(t, env, "p1")

	for i := 0; i < 2; i++ {
		if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q1", domain.ChoiceB, domain.ChoiceB, time.Second); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	p, _ := env.registry.GetPlayer(ctx, roomID, "p1")
	if p.Score != 10 || p.TotalResponseTimeMs != 1000 {
		t.Fatalf("duplicate answer counted twice: %d/%d", p.Score, p.TotalResponseTimeMs)
	}

	if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q1", domain.ChoiceC, domain.ChoiceB, 3*time.Second); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	p, _ = env.registry.GetPlayer(ctx, roomID, "p1")
	if p.Score != 0 || p.TotalResponseTimeMs != 0 {
		t.Fatalf("replaced answer should drop its contribution, got %d/%d", p.Score, p.TotalResponseTimeMs)
	}
}

func TestRegisterAnswerUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := newRoomWithPlayers(t, env)

	_, err := env.ledger.RegisterAnswer(ctx, roomID, "ghost", "q1", domain.ChoiceA, domain.ChoiceB, time.Second)
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	players, _ := env.registry.Players(ctx, roomID)
	if len(players) != 0 {
		t.Fatalf("answer must not create a player, got %d", len(players))
	}
}

func TestConcurrentAnswersKeepScoreConsistent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := []string{"p1", "p2", "p3", "p4"}
	roomID := newRoomWithPlayers(t, env, ids...)

	var wg sync.WaitGroup
	for n, id := range ids {
		wg.Add(1)
		go func(id string, seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for q := 0; q < 20; q++ {
				choice := domain.Choices[rnd.Intn(len(domain.Choices))]
				elapsed := time.Duration(rnd.Intn(15000)) * time.Millisecond
				if _, err := env.ledger.RegisterAnswer(ctx, roomID, id, fmt.Sprintf("q%d", q%12), choice, domain.ChoiceB, elapsed); err != nil {
					t.Errorf("register failed: %v", err)
					return
				}
			}
		}(id, int64(n))
	}
	wg.Wait()

	players, _ := env.registry.Players(ctx, roomID)
	for _, p := range players {
		var correctMs int64
		for _, a := range p.Answers {
			if a.Correct {
				correctMs += a.TimeMs
			}
		}
		if p.Score != domain.PointsPerCorrect*p.CorrectCount() || p.TotalResponseTimeMs != correctMs {
			t.Fatalf("player %s out of sync: score %d correct %d time %d expected %d",
				p.ID, p.Score, p.CorrectCount(), p.TotalResponseTimeMs, correctMs)
		}
	}
}

func TestConcurrentAnswersForOnePlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := newRoomWithPlayers(t, env, "p1")

	const questions = 40
	var wg sync.WaitGroup
	for q := 0; q < questions; q++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", fmt.Sprintf("q%d", q), domain.ChoiceB, domain.ChoiceB, 100*time.Millisecond); err != nil {
				t.Errorf("register q%d failed: %v", q, err)
			}
		}(q)
	}
	wg.Wait()

	p, err := env.registry.GetPlayer(ctx, roomID, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.AnsweredCount() != questions {
		t.Fatalf("expected %d answers, got %d", questions, p.AnsweredCount())
	}
	if p.Score != questions*domain.PointsPerCorrect || p.TotalResponseTimeMs != questions*100 {
		t.Fatalf("lost updates: score %d time %d", p.Score, p.TotalResponseTimeMs)
	}
}

func TestConcurrentDuplicateAnswerCountsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	roomID := newRoomWithPlayers(t, env, "p1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.ledger.RegisterAnswer(ctx, roomID, "p1", "q1", domain.ChoiceB, domain.ChoiceB, 1200*time.Millisecond); err != nil {
				t.Errorf("register failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := env.registry.GetPlayer(ctx, roomID, "p1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.AnsweredCount() != 1 || p.CorrectCount() != 1 {
		t.Fatalf("expected a single correct record, got %+v", p.Answers)
	}
	if p.Score != domain.PointsPerCorrect*p.CorrectCount() || p.TotalResponseTimeMs != 1200 {
		t.Fatalf("duplicate counted more than once: score %d time %d", p.Score, p.TotalResponseTimeMs)
	}
}
